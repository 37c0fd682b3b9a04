package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func sign(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestListFactorsDecodesBareArray(t *testing.T) {
	factors := []Factor{
		{ID: "f1", FactorType: FactorTypeTOTP, Status: FactorStatusVerified},
		{ID: "f2", FactorType: FactorTypeTOTP, Status: "unverified"},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/factors", "/admin/users/u1/factors":
			json.NewEncoder(w).Encode(factors)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "secret", "service-key")
	got, err := c.ListFactors(context.Background(), "user-token")
	if err != nil {
		t.Fatalf("list factors: %v", err)
	}
	if len(got) != 2 || got[0].ID != "f1" {
		t.Fatalf("unexpected factors: %+v", got)
	}
	if verified := VerifiedTOTPFactors(got); len(verified) != 1 || verified[0].ID != "f1" {
		t.Fatalf("unexpected verified filter: %+v", verified)
	}

	admin, err := c.AdminListFactors(context.Background(), "u1")
	if err != nil {
		t.Fatalf("admin list factors: %v", err)
	}
	if len(admin) != 2 {
		t.Fatalf("unexpected admin factors: %+v", admin)
	}
}

func TestParseSession(t *testing.T) {
	c := New("http://idp", "secret", "")
	tok := sign(t, "secret", jwt.MapClaims{
		"sub":   "u1",
		"email": "u1@example.com",
		"aal":   AAL2,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	s, err := c.ParseSession(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.UserID != "u1" || s.Email != "u1@example.com" || s.AAL != AAL2 {
		t.Fatalf("unexpected session: %+v", s)
	}
	if s.Token != tok {
		t.Fatal("raw token not retained")
	}
}

func TestParseSessionDefaultsAAL(t *testing.T) {
	c := New("http://idp", "secret", "")
	tok := sign(t, "secret", jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := c.ParseSession(tok)
	if err != nil {
		t.Fatal(err)
	}
	if s.AAL != AAL1 {
		t.Fatalf("aal %q, want aal1 default", s.AAL)
	}
}

func TestParseSessionRejections(t *testing.T) {
	c := New("http://idp", "secret", "")

	if _, err := c.ParseSession("not-a-token"); err == nil {
		t.Fatal("garbage accepted")
	}
	forged := sign(t, "wrong", jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(time.Hour).Unix()})
	if _, err := c.ParseSession(forged); err == nil {
		t.Fatal("forged signature accepted")
	}
	expired := sign(t, "secret", jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(-time.Hour).Unix()})
	if _, err := c.ParseSession(expired); err == nil {
		t.Fatal("expired token accepted")
	}
	noSubject := sign(t, "secret", jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	if _, err := c.ParseSession(noSubject); err == nil {
		t.Fatal("token without subject accepted")
	}
	empty := New("http://idp", "", "")
	if _, err := empty.ParseSession(sign(t, "secret", jwt.MapClaims{"sub": "u1"})); err == nil {
		t.Fatal("empty secret must refuse all tokens")
	}
}
