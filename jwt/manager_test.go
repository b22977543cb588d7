package jwt

import (
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func testConfig() Config {
	return Config{
		AccessSecret:  []byte("access-secret-access-secret-0001"),
		RefreshSecret: []byte("refresh-secret-refresh-secret-01"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(testConfig())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestNewManagerValidation(t *testing.T) {
	cfg := testConfig()
	cfg.RefreshSecret = cfg.AccessSecret
	if _, err := NewManager(cfg); err == nil {
		t.Fatal("expected identical secrets to be rejected")
	}

	cfg = testConfig()
	cfg.AccessSecret = nil
	if _, err := NewManager(cfg); err == nil {
		t.Fatal("expected missing access secret to be rejected")
	}

	cfg = testConfig()
	cfg.RefreshTTL = 0
	if _, err := NewManager(cfg); err == nil {
		t.Fatal("expected zero refresh TTL to be rejected")
	}

	cfg = testConfig()
	cfg.Leeway = time.Hour
	if _, err := NewManager(cfg); err == nil {
		t.Fatal("expected oversized leeway to be rejected")
	}
}

func TestAccessRoundTrip(t *testing.T) {
	m := newTestManager(t)

	token, issued, err := m.CreateAccess(Identity{Subject: "42", Email: "a@b.co", Roles: []string{"CUSTOMER"}})
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	if issued.ID == "" {
		t.Fatal("expected jti to be set")
	}

	claims, err := m.ParseAccess(token)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	if claims.Subject != "42" || claims.Email != "a@b.co" || claims.ID != issued.ID {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "CUSTOMER" {
		t.Fatalf("unexpected roles: %v", claims.Roles)
	}
}

func TestAccessRequiresRoles(t *testing.T) {
	m := newTestManager(t)

	token, _, err := m.CreateAccess(Identity{Subject: "42"})
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	if _, err := m.ParseAccess(token); !errors.Is(err, ErrMissingClaims) {
		t.Fatalf("expected ErrMissingClaims, got %v", err)
	}
}

func TestRefreshRoundTripAndDistinctness(t *testing.T) {
	m := newTestManager(t)

	first, err := m.CreateRefresh("42", "CUSTOMER")
	if err != nil {
		t.Fatalf("create refresh: %v", err)
	}
	second, err := m.CreateRefresh("42", "CUSTOMER")
	if err != nil {
		t.Fatalf("create refresh: %v", err)
	}
	if first == second {
		t.Fatal("expected refresh tokens minted back to back to differ")
	}

	claims, err := m.ParseRefresh(first)
	if err != nil {
		t.Fatalf("parse refresh: %v", err)
	}
	if claims.Subject != "42" || claims.Type != RefreshType || claims.Scope != "CUSTOMER" {
		t.Fatalf("unexpected refresh claims: %+v", claims)
	}
}

func TestTokensAreNotInterchangeable(t *testing.T) {
	m := newTestManager(t)

	access, _, err := m.CreateAccess(Identity{Subject: "42", Roles: []string{"CUSTOMER"}})
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	refresh, err := m.CreateRefresh("42", "")
	if err != nil {
		t.Fatalf("create refresh: %v", err)
	}

	if _, err := m.ParseRefresh(access); err == nil {
		t.Fatal("expected access token to be rejected as refresh token")
	}
	if _, err := m.ParseAccess(refresh); err == nil {
		t.Fatal("expected refresh token to be rejected as access token")
	}
}

func TestParseRefreshRejectsWrongType(t *testing.T) {
	m := newTestManager(t)

	claims := RefreshClaims{Type: "access", RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "42",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	signed, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(testConfig().RefreshSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.ParseRefresh(signed); !errors.Is(err, ErrWrongTokenType) {
		t.Fatalf("expected ErrWrongTokenType, got %v", err)
	}
}

func TestParseRejectsExpiredAndWrongAlgorithm(t *testing.T) {
	m := newTestManager(t)
	m.now = func() time.Time { return time.Now().Add(-time.Hour) }
	stale, _, err := m.CreateAccess(Identity{Subject: "42", Roles: []string{"CUSTOMER"}})
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	m.now = time.Now
	if _, err := m.ParseAccess(stale); err == nil {
		t.Fatal("expected expired token to fail")
	}

	claims := AccessClaims{Roles: []string{"CUSTOMER"}, RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "42",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	hs512, err := gjwt.NewWithClaims(gjwt.SigningMethodHS512, claims).SignedString(testConfig().AccessSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.ParseAccess(hs512); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}
}

func TestParseAccessIssuerAudience(t *testing.T) {
	cfg := testConfig()
	cfg.Issuer = "multiauth"
	cfg.Audience = "api"
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	token, _, err := m.CreateAccess(Identity{Subject: "42", Roles: []string{"ADMIN"}})
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	if _, err := m.ParseAccess(token); err != nil {
		t.Fatalf("expected valid token to parse: %v", err)
	}

	other := testConfig()
	other.Issuer = "someone-else"
	other.Audience = "api"
	m2, err := NewManager(other)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := m2.ParseAccess(token); err == nil {
		t.Fatal("expected wrong issuer to fail")
	}
}
