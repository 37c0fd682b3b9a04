package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"exitframe/internal/identity"
	"exitframe/internal/trust"
)

// SessionCookie carries the identity access token between requests.
const SessionCookie = "xf_session"

type AuthConfig struct {
	Identity        *identity.Client
	Trust           trust.Store
	FailRedirectURL string
	ChallengePath   string
	Logger          *log.Logger
}

type sessionKey struct{}

func (c AuthConfig) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Default()
}

func withSession(ctx context.Context, s identity.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func sessionFromContext(ctx context.Context) (identity.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(identity.Session)
	return s, ok
}

func requireSession(ctx context.Context) (identity.Session, huma.StatusError) {
	if s, ok := sessionFromContext(ctx); ok && s.UserID != "" {
		return s, nil
	}
	return identity.Session{}, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// sessionToken pulls the access token from the Authorization header or the
// session cookie, header first.
func sessionToken(req *http.Request) string {
	if authz := strings.TrimSpace(req.Header.Get("Authorization")); authz != "" {
		if token, ok := bearerToken(authz); ok {
			return token
		}
		return ""
	}
	if c, err := req.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

func trustTokenFromRequest(req *http.Request) string {
	if c, err := req.Cookie(trust.CookieName); err == nil {
		return c.Value
	}
	return ""
}

// newAuthMiddleware gates every API route behind the trust policy. Any
// failure to establish trust, whatever its cause, resolves to the same
// external redirect so callers learn nothing about which check tripped.
func newAuthMiddleware(basePath string, cfg AuthConfig) func(http.Handler) http.Handler {
	healthPath := path.Join(basePath, "health")
	loginPath := path.Join(basePath, "auth/login")
	challengeOnly := map[string]bool{
		path.Join(basePath, "auth/totp/challenge"): true,
		path.Join(basePath, "auth/totp/verify"):    true,
		path.Join(basePath, "auth/totp/enroll"):    true,
		path.Join(basePath, "auth/check-trust"):    true,
		path.Join(basePath, "auth/trust-device"):   true,
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if basePath != "" && !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}
			if req.URL.Path == healthPath {
				next.ServeHTTP(w, req)
				return
			}

			token := sessionToken(req)

			if req.URL.Path == loginPath {
				// Authenticated callers have no business on the login
				// endpoint: fully-trusted sessions go back to the app,
				// partially-authenticated ones to the TOTP challenge.
				if token != "" {
					if s, err := cfg.Identity.ParseSession(token); err == nil {
						ok, redirect := passesGate(req, cfg, s)
						if ok {
							http.Redirect(w, req, "/", http.StatusFound)
							return
						}
						if redirect != "" {
							http.Redirect(w, req, redirect, http.StatusFound)
							return
						}
					}
				}
				next.ServeHTTP(w, req)
				return
			}

			if token == "" {
				failClosed(w, req, cfg)
				return
			}
			session, err := cfg.Identity.ParseSession(token)
			if err != nil {
				failClosed(w, req, cfg)
				return
			}

			// TOTP endpoints need only a valid session: they exist to lift
			// an aal1 session to aal2.
			if challengeOnly[req.URL.Path] {
				next.ServeHTTP(w, req.WithContext(withSession(req.Context(), session)))
				return
			}

			ok, redirect := passesGate(req, cfg, session)
			if !ok {
				if redirect == "" {
					failClosed(w, req, cfg)
					return
				}
				http.Redirect(w, req, redirect, http.StatusFound)
				return
			}
			next.ServeHTTP(w, req.WithContext(withSession(req.Context(), session)))
		})
	}
}

// passesGate decides whether a valid session clears the trust policy. It
// returns (false, "") when the caller must be thrown out entirely and
// (false, challengePath) when a TOTP step-up would suffice.
func passesGate(req *http.Request, cfg AuthConfig, session identity.Session) (bool, string) {
	factors, err := cfg.Identity.ListFactors(req.Context(), session.Token)
	if err != nil {
		cfg.logger().Printf("auth gate: factor lookup failed for user %s: %v", session.UserID, err)
		return false, ""
	}
	if len(identity.VerifiedTOTPFactors(factors)) == 0 {
		return false, ""
	}
	if session.AAL == identity.AAL2 {
		return true, ""
	}
	if raw := trustTokenFromRequest(req); raw != "" {
		exists, err := cfg.Trust.Exists(req.Context(), trust.HashToken(raw))
		if err != nil {
			cfg.logger().Printf("auth gate: trust store lookup failed: %v", err)
			return false, ""
		}
		if exists {
			return true, ""
		}
	}
	return false, cfg.ChallengePath
}

func failClosed(w http.ResponseWriter, req *http.Request, cfg AuthConfig) {
	http.Redirect(w, req, cfg.FailRedirectURL, http.StatusFound)
}

func sessionCookie(token string) http.Cookie {
	return http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

func registerAuth(api huma.API, e Env) {
	huma.Register(api, huma.Operation{
		OperationID: "auth-login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Password login",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body LoginRequest `json:"body"`
	}) (*struct {
		SetCookie http.Cookie `header:"Set-Cookie"`
		Body      identity.TokenResponse
	}, error) {
		if input.Body.Email == "" || input.Body.Password == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "email and password are required", nil)
		}
		tok, err := e.Auth.Identity.PasswordGrant(ctx, input.Body.Email, input.Body.Password)
		if err != nil {
			return nil, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil)
		}
		return &struct {
			SetCookie http.Cookie `header:"Set-Cookie"`
			Body      identity.TokenResponse
		}{SetCookie: sessionCookie(tok.AccessToken), Body: tok}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "auth-totp-challenge",
		Method:      http.MethodPost,
		Path:        "/auth/totp/challenge",
		Summary:     "Start a TOTP challenge",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		Body ChallengeRequest `json:"body"`
	}) (*struct {
		Body identity.ChallengeResponse
	}, error) {
		session, authErr := requireSession(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.FactorID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "factor_id is required", nil)
		}
		ch, err := e.Auth.Identity.Challenge(ctx, session.Token, input.Body.FactorID)
		if err != nil {
			return nil, handleIdentityError(err)
		}
		return &struct {
			Body identity.ChallengeResponse
		}{Body: ch}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "auth-totp-verify",
		Method:      http.MethodPost,
		Path:        "/auth/totp/verify",
		Summary:     "Verify a TOTP code",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		Body VerifyRequest `json:"body"`
	}) (*struct {
		SetCookie http.Cookie `header:"Set-Cookie"`
		Body      identity.TokenResponse
	}, error) {
		session, authErr := requireSession(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.FactorID == "" || input.Body.ChallengeID == "" || input.Body.Code == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "factor_id, challenge_id and code are required", nil)
		}
		tok, err := e.Auth.Identity.Verify(ctx, session.Token, input.Body.FactorID, input.Body.ChallengeID, input.Body.Code)
		if err != nil {
			return nil, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil)
		}
		// First verification of a freshly enrolled factor retires every
		// older TOTP factor so exactly one remains.
		cleanupStaleFactors(ctx, e.Auth, session.UserID, input.Body.FactorID)
		return &struct {
			SetCookie http.Cookie `header:"Set-Cookie"`
			Body      identity.TokenResponse
		}{SetCookie: sessionCookie(tok.AccessToken), Body: tok}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "auth-totp-enroll",
		Method:      http.MethodPost,
		Path:        "/auth/totp/enroll",
		Summary:     "Enroll a new TOTP factor",
		Errors:      []int{http.StatusUnauthorized, http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		Body EnrollRequest `json:"body"`
	}) (*struct {
		Body identity.EnrollResponse
	}, error) {
		session, authErr := requireSession(ctx)
		if authErr != nil {
			return nil, authErr
		}
		name := input.Body.FriendlyName
		if name == "" {
			name = fmt.Sprintf("exitFrame TOTP %d", time.Now().UnixMilli())
		}
		resp, err := e.Auth.Identity.EnrollFactor(ctx, session.Token, name)
		if err != nil {
			return nil, handleIdentityError(err)
		}
		return &struct {
			Body identity.EnrollResponse
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "auth-check-trust",
		Method:      http.MethodGet,
		Path:        "/auth/check-trust",
		Summary:     "Check for a trusted device token",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Token string `cookie:"trusted_device"`
	}) (*struct {
		Body struct {
			Trusted bool `json:"trusted"`
		}
	}, error) {
		if _, authErr := requireSession(ctx); authErr != nil {
			return nil, authErr
		}
		out := &struct {
			Body struct {
				Trusted bool `json:"trusted"`
			}
		}{}
		if input.Token == "" {
			return out, nil
		}
		exists, err := e.Auth.Trust.Exists(ctx, trust.HashToken(input.Token))
		if err != nil {
			e.Auth.logger().Printf("check-trust: store lookup failed: %v", err)
			return out, nil
		}
		out.Body.Trusted = exists
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "auth-trust-device",
		Method:      http.MethodPost,
		Path:        "/auth/trust-device",
		Summary:     "Mark this device as trusted",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusInternalServerError},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		SetCookie http.Cookie `header:"Set-Cookie"`
		Body      struct {
			Success bool `json:"success"`
		}
	}, error) {
		session, authErr := requireSession(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if session.AAL != identity.AAL2 {
			return nil, newAPIError(http.StatusForbidden, "forbidden", "two-factor verification required", nil)
		}
		token, err := trust.NewToken()
		if err != nil {
			return nil, handleError(err)
		}
		if err := e.Auth.Trust.Put(ctx, trust.HashToken(token)); err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			SetCookie http.Cookie `header:"Set-Cookie"`
			Body      struct {
				Success bool `json:"success"`
			}
		}{SetCookie: http.Cookie{
			Name:     trust.CookieName,
			Value:    token,
			Path:     "/",
			MaxAge:   int(trust.TTL.Seconds()),
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteLaxMode,
		}}
		out.Body.Success = true
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "auth-reset-totp",
		Method:      http.MethodPost,
		Path:        "/auth/reset-totp",
		Summary:     "Delete all TOTP factors for the caller",
		Errors:      []int{http.StatusUnauthorized, http.StatusBadGateway},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body struct {
			Deleted int `json:"deleted"`
			Total   int `json:"total"`
		}
	}, error) {
		session, authErr := requireSession(ctx)
		if authErr != nil {
			return nil, authErr
		}
		factors, err := e.Auth.Identity.AdminListFactors(ctx, session.UserID)
		if err != nil {
			return nil, handleIdentityError(err)
		}
		out := &struct {
			Body struct {
				Deleted int `json:"deleted"`
				Total   int `json:"total"`
			}
		}{}
		for _, f := range factors {
			if f.FactorType != identity.FactorTypeTOTP {
				continue
			}
			out.Body.Total++
			if err := e.Auth.Identity.AdminDeleteFactor(ctx, session.UserID, f.ID); err != nil {
				e.Auth.logger().Printf("reset-totp: delete factor %s failed: %v", f.ID, err)
				continue
			}
			out.Body.Deleted++
		}
		return out, nil
	})
}

// cleanupStaleFactors deletes every TOTP factor other than keepID. Best
// effort: a failed delete is logged, never surfaced, and the next
// verification retries it.
func cleanupStaleFactors(ctx context.Context, cfg AuthConfig, userID, keepID string) {
	factors, err := cfg.Identity.AdminListFactors(ctx, userID)
	if err != nil {
		cfg.logger().Printf("factor cleanup: list failed for user %s: %v", userID, err)
		return
	}
	for _, f := range factors {
		if f.ID == keepID || f.FactorType != identity.FactorTypeTOTP {
			continue
		}
		if err := cfg.Identity.AdminDeleteFactor(ctx, userID, f.ID); err != nil {
			cfg.logger().Printf("factor cleanup: delete %s failed: %v", f.ID, err)
		}
	}
}
