package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/multiauth"
	"github.com/MrEthical07/multiauth/jwt"
)

type fakeVerifier struct {
	claims map[string]*jwt.AccessClaims
	err    error
}

func (f fakeVerifier) VerifyAccess(_ context.Context, token string) (*jwt.AccessClaims, error) {
	if f.err != nil {
		return nil, f.err
	}
	claims, ok := f.claims[token]
	if !ok {
		return nil, multiauth.ErrInvalidAccessToken
	}
	return claims, nil
}

func claimsFor(sub string, roles ...string) *jwt.AccessClaims {
	return &jwt.AccessClaims{
		Roles:            roles,
		RegisteredClaims: gojwt.RegisteredClaims{Subject: sub},
	}
}

func newRouter(v Verifier) http.Handler {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(Guard(v))
		r.Get("/me", func(w http.ResponseWriter, r *http.Request) {
			claims, _ := ClaimsFromContext(r.Context())
			_, _ = w.Write([]byte(claims.Subject))
		})
		r.With(RequireRole("ADMIN")).Get("/admin", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	})
	return r
}

func do(t *testing.T, h http.Handler, path, authorization string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGuard(t *testing.T) {
	v := fakeVerifier{claims: map[string]*jwt.AccessClaims{
		"customer-token": claimsFor("7", "CUSTOMER"),
		"admin-token":    claimsFor("8", "CUSTOMER", "ADMIN"),
	}}
	h := newRouter(v)

	tests := []struct {
		name          string
		path          string
		authorization string
		wantStatus    int
		wantBody      string
	}{
		{name: "missing header", path: "/me", wantStatus: http.StatusUnauthorized},
		{name: "not bearer", path: "/me", authorization: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "empty bearer", path: "/me", authorization: "Bearer ", wantStatus: http.StatusUnauthorized},
		{name: "unknown token", path: "/me", authorization: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{name: "valid token", path: "/me", authorization: "Bearer customer-token", wantStatus: http.StatusOK, wantBody: "7"},
		{name: "scheme is case insensitive", path: "/me", authorization: "bearer customer-token", wantStatus: http.StatusOK, wantBody: "7"},
		{name: "missing role", path: "/admin", authorization: "Bearer customer-token", wantStatus: http.StatusForbidden},
		{name: "has role", path: "/admin", authorization: "Bearer admin-token", wantStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.path, tt.authorization)
			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestGuardStoreFailure(t *testing.T) {
	h := newRouter(fakeVerifier{err: errors.Join(multiauth.ErrInternal, errors.New("redis down"))})

	rec := do(t, h, "/me", "Bearer anything")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGuardRevokedToken(t *testing.T) {
	h := newRouter(fakeVerifier{err: multiauth.ErrTokenRevoked})

	rec := do(t, h, "/me", "Bearer anything")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRoleWithoutGuard(t *testing.T) {
	h := RequireRole("ADMIN")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := do(t, h, "/", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
