package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"exitframe/internal/db"
	"exitframe/internal/domain"
	"exitframe/internal/engine"
	"exitframe/internal/identity"
	"exitframe/internal/migrate"
	"exitframe/internal/trust"
)

const testSecret = "test-secret"

// fakeIdP is a minimal stand-in for the identity provider REST surface.
type fakeIdP struct {
	mu      sync.Mutex
	factors []identity.Factor
	deleted []string
}

func (f *fakeIdP) setFactors(factors ...identity.Factor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.factors = factors
}

func (f *fakeIdP) handler() http.Handler {
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(v)
	}
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, identity.TokenResponse{AccessToken: signToken(testSecret, "u1", identity.AAL1)})
	})
	mux.HandleFunc("/factors", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if r.Method == http.MethodPost {
			writeJSON(w, identity.EnrollResponse{ID: "factor-new", Type: "totp"})
			return
		}
		writeJSON(w, f.factors)
	})
	mux.HandleFunc("/factors/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/challenge") {
			writeJSON(w, identity.ChallengeResponse{ID: "ch-1"})
			return
		}
		if strings.HasSuffix(r.URL.Path, "/verify") {
			writeJSON(w, identity.TokenResponse{AccessToken: signToken(testSecret, "u1", identity.AAL2)})
			return
		}
		http.NotFound(w, r)
	})
	mux.HandleFunc("/admin/users/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if r.Method == http.MethodDelete {
			parts := strings.Split(r.URL.Path, "/")
			id := parts[len(parts)-1]
			kept := f.factors[:0]
			for _, fac := range f.factors {
				if fac.ID == id {
					f.deleted = append(f.deleted, id)
					continue
				}
				kept = append(kept, fac)
			}
			f.factors = kept
			writeJSON(w, map[string]any{})
			return
		}
		writeJSON(w, f.factors)
	})
	return mux
}

func signToken(secret, sub, aal string) string {
	claims := jwt.MapClaims{
		"sub":   sub,
		"email": "u1@example.com",
		"aal":   aal,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		panic(err)
	}
	return s
}

type testServer struct {
	URL    string
	IdP    *fakeIdP
	Trust  *trust.MemoryStore
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	idp := &fakeIdP{}
	idpSrv := httptest.NewServer(idp.handler())
	store := trust.NewMemoryStore()

	e := engine.New(conn)
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/api",
		Auth: AuthConfig{
			Identity:        identity.New(idpSrv.URL, testSecret, "service-key"),
			Trust:           store,
			FailRedirectURL: "https://www.fbi.gov",
			ChallengePath:   "/auth/verify-totp",
		},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)

	ts := &testServer{
		URL:   "http://" + ln.Addr().String(),
		IdP:   idp,
		Trust: store,
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			idpSrv.Close()
			conn.Close()
		},
	}
	t.Cleanup(ts.close)
	return ts
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func verifiedFactor() identity.Factor {
	return identity.Factor{ID: "factor-1", FactorType: identity.FactorTypeTOTP, Status: identity.FactorStatusVerified}
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestHealthIsPublic(t *testing.T) {
	srv := newTestServer(t)
	res, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", res.StatusCode)
	}
}

func TestGateRedirectsWithoutSession(t *testing.T) {
	srv := newTestServer(t)
	res, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/clients", nil, nil)
	if res.StatusCode != http.StatusFound {
		t.Fatalf("status %d, want 302", res.StatusCode)
	}
	if loc := res.Header.Get("Location"); loc != "https://www.fbi.gov" {
		t.Fatalf("location %q", loc)
	}
}

func TestGateRedirectsOnInvalidToken(t *testing.T) {
	srv := newTestServer(t)
	res, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/clients", nil, bearer("garbage"))
	if res.StatusCode != http.StatusFound || res.Header.Get("Location") != "https://www.fbi.gov" {
		t.Fatalf("status %d location %q", res.StatusCode, res.Header.Get("Location"))
	}
	// wrong signing key is just as invalid
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/clients", nil, bearer(signToken("other-secret", "u1", identity.AAL2)))
	if res.StatusCode != http.StatusFound || res.Header.Get("Location") != "https://www.fbi.gov" {
		t.Fatalf("forged token: status %d location %q", res.StatusCode, res.Header.Get("Location"))
	}
}

func TestGateRedirectsWithoutVerifiedFactor(t *testing.T) {
	srv := newTestServer(t)
	srv.IdP.setFactors(identity.Factor{ID: "f", FactorType: identity.FactorTypeTOTP, Status: "unverified"})
	res, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/clients", nil, bearer(signToken(testSecret, "u1", identity.AAL2)))
	if res.StatusCode != http.StatusFound || res.Header.Get("Location") != "https://www.fbi.gov" {
		t.Fatalf("status %d location %q", res.StatusCode, res.Header.Get("Location"))
	}
}

func TestGateChallengesUnverifiedSession(t *testing.T) {
	srv := newTestServer(t)
	srv.IdP.setFactors(verifiedFactor())
	res, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/clients", nil, bearer(signToken(testSecret, "u1", identity.AAL1)))
	if res.StatusCode != http.StatusFound {
		t.Fatalf("status %d, want 302", res.StatusCode)
	}
	if loc := res.Header.Get("Location"); loc != "/auth/verify-totp" {
		t.Fatalf("location %q, want challenge path", loc)
	}
}

func TestGateAllowsVerifiedSession(t *testing.T) {
	srv := newTestServer(t)
	srv.IdP.setFactors(verifiedFactor())
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/clients", nil, bearer(signToken(testSecret, "u1", identity.AAL2)))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
}

func TestTrustedDeviceRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	srv.IdP.setFactors(verifiedFactor())
	aal2 := signToken(testSecret, "u1", identity.AAL2)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/auth/trust-device", nil, bearer(aal2))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("trust-device status %d: %s", res.StatusCode, string(data))
	}
	var cookie string
	for _, c := range res.Cookies() {
		if c.Name == trust.CookieName {
			cookie = c.Value
		}
	}
	if cookie == "" {
		t.Fatal("no trusted device cookie set")
	}

	// An aal1 session with the trusted cookie clears the gate.
	aal1 := signToken(testSecret, "u1", identity.AAL1)
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/clients", nil)
	req.Header.Set("Authorization", "Bearer "+aal1)
	req.AddCookie(&http.Cookie{Name: trust.CookieName, Value: cookie})
	got, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	got.Body.Close()
	if got.StatusCode != http.StatusOK {
		t.Fatalf("trusted aal1 status %d", got.StatusCode)
	}

	// A forged cookie value does not.
	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/api/clients", nil)
	req.Header.Set("Authorization", "Bearer "+aal1)
	req.AddCookie(&http.Cookie{Name: trust.CookieName, Value: "forged"})
	got, err = srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	got.Body.Close()
	if got.StatusCode != http.StatusFound {
		t.Fatalf("forged cookie status %d, want 302", got.StatusCode)
	}
}

func TestTrustDeviceRequiresAAL2(t *testing.T) {
	srv := newTestServer(t)
	srv.IdP.setFactors(verifiedFactor())
	res, _ := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/auth/trust-device", nil, bearer(signToken(testSecret, "u1", identity.AAL1)))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("status %d, want 403", res.StatusCode)
	}
}

func TestLoginRedirectsWhenAuthenticated(t *testing.T) {
	srv := newTestServer(t)
	srv.IdP.setFactors(verifiedFactor())
	res, _ := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/auth/login",
		map[string]string{"email": "u1@example.com", "password": "pw"},
		bearer(signToken(testSecret, "u1", identity.AAL2)))
	if res.StatusCode != http.StatusFound {
		t.Fatalf("status %d, want 302", res.StatusCode)
	}
	if loc := res.Header.Get("Location"); loc != "/" {
		t.Fatalf("location %q, want /", loc)
	}
}

func TestLoginChallengesPartialSession(t *testing.T) {
	srv := newTestServer(t)
	srv.IdP.setFactors(verifiedFactor())
	res, _ := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/auth/login",
		map[string]string{"email": "u1@example.com", "password": "pw"},
		bearer(signToken(testSecret, "u1", identity.AAL1)))
	if res.StatusCode != http.StatusFound {
		t.Fatalf("status %d, want 302", res.StatusCode)
	}
	if loc := res.Header.Get("Location"); loc != "/auth/verify-totp" {
		t.Fatalf("location %q, want /auth/verify-totp", loc)
	}
}

func TestResetTOTPCounts(t *testing.T) {
	srv := newTestServer(t)
	srv.IdP.setFactors(
		identity.Factor{ID: "f1", FactorType: identity.FactorTypeTOTP, Status: identity.FactorStatusVerified},
		identity.Factor{ID: "f2", FactorType: identity.FactorTypeTOTP, Status: "unverified"},
	)
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/auth/reset-totp", nil, bearer(signToken(testSecret, "u1", identity.AAL2)))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
	var out struct {
		Deleted int `json:"deleted"`
		Total   int `json:"total"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Deleted != 2 || out.Total != 2 {
		t.Fatalf("deleted=%d total=%d, want 2/2", out.Deleted, out.Total)
	}
}

func TestOnboardingRunEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.IdP.setFactors(verifiedFactor())
	auth := bearer(signToken(testSecret, "u1", identity.AAL2))
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/onboarding/run",
		map[string]string{"template_id": "nope", "client_id": "nope"}, auth)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("missing refs: status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/clients",
		map[string]string{"name": "Acme"}, auth)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create client: %d %s", res.StatusCode, string(data))
	}
	var created domain.Client
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatal(err)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/onboarding/templates", map[string]any{
		"name": "Standard",
		"steps": []map[string]any{
			{"action_type": "enable_service", "label": "Enable notes"},
			{"action_type": "send_welcome_email", "label": "Welcome"},
		},
	}, auth)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create template: %d %s", res.StatusCode, string(data))
	}
	var tpl domain.OnboardingTemplate
	if err := json.Unmarshal(data, &tpl); err != nil {
		t.Fatal(err)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/onboarding/run",
		map[string]string{"template_id": tpl.ID, "client_id": created.ID}, auth)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("run: %d %s", res.StatusCode, string(data))
	}
	var run domain.OnboardingRun
	if err := json.Unmarshal(data, &run); err != nil {
		t.Fatal(err)
	}
	if run.Status != "completed" || len(run.Results) != 2 {
		t.Fatalf("run status %q with %d results", run.Status, len(run.Results))
	}
}

func TestHeartbeatEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.IdP.setFactors(verifiedFactor())
	auth := bearer(signToken(testSecret, "u1", identity.AAL2))

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/time/heartbeat",
		map[string]string{"module": "notes", "client_id": "c1"}, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("first pulse: %d %s", res.StatusCode, string(data))
	}
	var first HeartbeatResponse
	if err := json.Unmarshal(data, &first); err != nil {
		t.Fatal(err)
	}
	if first.Action != "created" {
		t.Fatalf("first action %q", first.Action)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/time/heartbeat",
		map[string]string{"module": "notes", "client_id": "c1"}, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("second pulse: %d %s", res.StatusCode, string(data))
	}
	var second HeartbeatResponse
	if err := json.Unmarshal(data, &second); err != nil {
		t.Fatal(err)
	}
	if second.Action != "extended" || second.ID != first.ID {
		t.Fatalf("second pulse action %q id %q, want extended %q", second.Action, second.ID, first.ID)
	}
}

func TestReorderEndpointAtomic(t *testing.T) {
	srv := newTestServer(t)
	srv.IdP.setFactors(verifiedFactor())
	auth := bearer(signToken(testSecret, "u1", identity.AAL2))
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/tasks", map[string]string{"title": "one"}, auth)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create task: %d %s", res.StatusCode, string(data))
	}
	var task domain.Task
	if err := json.Unmarshal(data, &task); err != nil {
		t.Fatal(err)
	}

	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/api/tasks/reorder", map[string]any{
		"tasks": []map[string]any{
			{"id": task.ID, "sort_order": 3},
			{"id": "missing", "sort_order": 4},
		},
	}, auth)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("reorder with bad id: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/tasks/"+task.ID, nil, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get task: %d", res.StatusCode)
	}
	var got domain.Task
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.SortOrder != 0 {
		t.Fatalf("partial reorder applied: %d", got.SortOrder)
	}
}

func TestSystemHealthReportsServices(t *testing.T) {
	srv := newTestServer(t)
	srv.IdP.setFactors(verifiedFactor())
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/system-health", nil, bearer(signToken(testSecret, "u1", identity.AAL2)))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
	var body struct {
		Status   string `json:"status"`
		Services []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"services"`
		TableCounts []struct {
			Table string `json:"table"`
			Count int    `json:"count"`
		} `json:"table_counts"`
		Migrations []string `json:"migrations"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "healthy" {
		t.Fatalf("overall status %q: %s", body.Status, string(data))
	}
	if len(body.Services) != 3 {
		t.Fatalf("want 3 service checks, got %+v", body.Services)
	}
	for _, s := range body.Services {
		if s.Status != "healthy" {
			t.Fatalf("service %s reported %s", s.Name, s.Status)
		}
	}
	if len(body.TableCounts) == 0 {
		t.Fatalf("table counts missing: %s", string(data))
	}
	for _, tc := range body.TableCounts {
		if tc.Count != 0 {
			t.Fatalf("fresh db, table %s count %d", tc.Table, tc.Count)
		}
	}
	if len(body.Migrations) == 0 {
		t.Fatal("applied migrations missing")
	}
}
