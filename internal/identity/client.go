// Package identity talks to the external identity provider. The provider owns
// users, sessions, and TOTP factors; this service only reads assurance state
// per request and drives enrollment/challenge/verify flows through the
// provider's REST API.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// Assurance levels reported in session token claims.
	AAL1 = "aal1"
	AAL2 = "aal2"

	FactorTypeTOTP       = "totp"
	FactorStatusVerified = "verified"
)

// Client is an HTTP client for the identity provider. ServiceKey is the
// privileged credential used only for admin endpoints; it never leaves the
// server.
type Client struct {
	BaseURL    string
	JWTSecret  string
	ServiceKey string
	HTTPClient *http.Client
	Timeout    time.Duration
}

func New(baseURL, jwtSecret, serviceKey string) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		JWTSecret:  jwtSecret,
		ServiceKey: serviceKey,
		Timeout:    10 * time.Second,
	}
}

// Session is the per-request view of an authenticated caller, derived from
// the access token claims.
type Session struct {
	UserID string
	Email  string
	AAL    string
	Token  string
}

type Factor struct {
	ID           string `json:"id"`
	FriendlyName string `json:"friendly_name"`
	FactorType   string `json:"factor_type"`
	Status       string `json:"status"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

type EnrollResponse struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	TOTP struct {
		QRCode string `json:"qr_code"`
		Secret string `json:"secret"`
		URI    string `json:"uri"`
	} `json:"totp"`
}

type ChallengeResponse struct {
	ID        string `json:"id"`
	ExpiresAt int64  `json:"expires_at"`
}

// APIError wraps non-2xx provider responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("identity provider error: status=%d body=%s", e.StatusCode, e.Body)
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	AAL   string `json:"aal,omitempty"`
}

// ParseSession validates an access token offline and extracts the session
// view. Any parse or signature failure yields an error; callers treat every
// error identically (fail closed).
func (c *Client) ParseSession(token string) (Session, error) {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return Session{}, errors.New("identity jwt secret not configured")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &sessionClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(c.JWTSecret), nil
	})
	if err != nil {
		return Session{}, err
	}
	if !parsed.Valid {
		return Session{}, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return Session{}, errors.New("subject claim required")
	}
	aal := claims.AAL
	if aal == "" {
		aal = AAL1
	}
	return Session{
		UserID: claims.Subject,
		Email:  claims.Email,
		AAL:    aal,
		Token:  token,
	}, nil
}

// PasswordGrant exchanges credentials for a session token.
func (c *Client) PasswordGrant(ctx context.Context, email, password string) (TokenResponse, error) {
	var resp TokenResponse
	err := c.do(ctx, http.MethodPost, "/token?grant_type=password", "", map[string]any{
		"email":    email,
		"password": password,
	}, &resp)
	return resp, err
}

// Health pings the provider's unauthenticated health endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", "", nil, nil)
}

// ListFactors returns the caller's enrolled factors. The provider responds
// with a bare JSON array.
func (c *Client) ListFactors(ctx context.Context, userToken string) ([]Factor, error) {
	var factors []Factor
	if err := c.do(ctx, http.MethodGet, "/factors", userToken, nil, &factors); err != nil {
		return nil, err
	}
	return factors, nil
}

// VerifiedTOTPFactors filters a factor list down to verified TOTP entries.
func VerifiedTOTPFactors(factors []Factor) []Factor {
	var out []Factor
	for _, f := range factors {
		if f.FactorType == FactorTypeTOTP && f.Status == FactorStatusVerified {
			out = append(out, f)
		}
	}
	return out
}

// EnrollFactor starts TOTP enrollment under a unique friendly name.
func (c *Client) EnrollFactor(ctx context.Context, userToken, friendlyName string) (EnrollResponse, error) {
	var resp EnrollResponse
	err := c.do(ctx, http.MethodPost, "/factors", userToken, map[string]any{
		"factor_type":   FactorTypeTOTP,
		"issuer":        "exitFrame",
		"friendly_name": friendlyName,
	}, &resp)
	return resp, err
}

// Challenge creates a verification challenge for a factor.
func (c *Client) Challenge(ctx context.Context, userToken, factorID string) (ChallengeResponse, error) {
	var resp ChallengeResponse
	err := c.do(ctx, http.MethodPost, "/factors/"+factorID+"/challenge", userToken, map[string]any{}, &resp)
	return resp, err
}

// Verify submits a TOTP code. On success the provider issues a new session
// token at the completed assurance level.
func (c *Client) Verify(ctx context.Context, userToken, factorID, challengeID, code string) (TokenResponse, error) {
	var resp TokenResponse
	err := c.do(ctx, http.MethodPost, "/factors/"+factorID+"/verify", userToken, map[string]any{
		"challenge_id": challengeID,
		"code":         code,
	}, &resp)
	return resp, err
}

// AdminListFactors lists a user's factors with the service credential.
func (c *Client) AdminListFactors(ctx context.Context, userID string) ([]Factor, error) {
	if strings.TrimSpace(c.ServiceKey) == "" {
		return nil, errors.New("identity service key not configured")
	}
	var factors []Factor
	if err := c.do(ctx, http.MethodGet, "/admin/users/"+userID+"/factors", c.ServiceKey, nil, &factors); err != nil {
		return nil, err
	}
	return factors, nil
}

// AdminDeleteFactor removes a factor with the service credential. Deleting a
// factor normally requires the elevated assurance level; the service key
// bypasses that, which is exactly what reset and re-enrollment cleanup need.
func (c *Client) AdminDeleteFactor(ctx context.Context, userID, factorID string) error {
	if strings.TrimSpace(c.ServiceKey) == "" {
		return errors.New("identity service key not configured")
	}
	return c.do(ctx, http.MethodDelete, "/admin/users/"+userID+"/factors/"+factorID, c.ServiceKey, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path, bearer string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	client := c.HTTPClient
	if client == nil {
		timeout := c.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &APIError{StatusCode: res.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}
