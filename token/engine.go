package token

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/MrEthical07/multiauth/cache"
	"github.com/MrEthical07/multiauth/jwt"
)

// TypeBearer is the token_type reported with every pair.
const TypeBearer = "Bearer"

var (
	// ErrInvalidRefreshToken is the only error Refresh reports to callers,
	// whatever the underlying cause.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrInvalidAccessToken is returned for access tokens that fail
	// signature, expiry, or claim checks.
	ErrInvalidAccessToken = errors.New("invalid access token")
	// ErrTokenRevoked is returned for access tokens whose jti is blacklisted.
	ErrTokenRevoked = errors.New("access token revoked")
)

// Subject is the identity a pair is minted for. A non-empty Scope pins the
// session to that one role; it is carried in the refresh token and must be
// preserved by every rotation.
type Subject struct {
	UserID   string
	Username string
	Email    string
	Phone    string
	Roles    []string
	Scope    string
}

// Pair is a freshly minted access/refresh pair.
type Pair struct {
	AccessToken  string
	RefreshToken string
	// ExpiresIn is the access-token lifetime in seconds.
	ExpiresIn int64
	TokenType string
	// Access holds the claims embedded in AccessToken.
	Access *jwt.AccessClaims
}

// Loader resolves the current subject for a user id during rotation. scope
// is the role the presented refresh token was scoped to, or empty.
type Loader func(ctx context.Context, userID, scope string) (Subject, error)

// Engine defines a public type used by multiauth APIs.
type Engine struct {
	cache cache.Cache
	jwt   *jwt.Manager
	now   func() time.Time
}

// NewEngine returns an Engine storing refresh pointers and blacklist
// entries in c.
func NewEngine(c cache.Cache, m *jwt.Manager) (*Engine, error) {
	if c == nil || m == nil {
		return nil, errors.New("token engine requires a cache and a jwt manager")
	}
	return &Engine{cache: c, jwt: m, now: time.Now}, nil
}

// Generate mints a pair for s and makes its refresh token the only live
// one for s.UserID.
func (e *Engine) Generate(ctx context.Context, s Subject) (Pair, error) {
	pair, err := e.mint(s)
	if err != nil {
		return Pair{}, err
	}
	if err := e.cache.Set(ctx, refreshKey(s.UserID), pair.RefreshToken, e.jwt.RefreshTTL()); err != nil {
		return Pair{}, fmt.Errorf("store refresh token: %w", err)
	}
	return pair, nil
}

// Refresh verifies presented, reloads the subject through load, and rotates
// both tokens. The stored pointer is swapped only if it still equals
// presented. Every failure is reported as ErrInvalidRefreshToken.
func (e *Engine) Refresh(ctx context.Context, presented string, load Loader) (Pair, Subject, error) {
	claims, err := e.jwt.ParseRefresh(presented)
	if err != nil {
		return Pair{}, Subject{}, ErrInvalidRefreshToken
	}

	// Cheap reject for superseded tokens before touching the loader.
	current, ok, err := e.cache.Get(ctx, refreshKey(claims.Subject))
	if err != nil || !ok || current != presented {
		return Pair{}, Subject{}, ErrInvalidRefreshToken
	}

	s, err := load(ctx, claims.Subject, claims.Scope)
	if err != nil || s.UserID != claims.Subject || s.Scope != claims.Scope {
		return Pair{}, Subject{}, ErrInvalidRefreshToken
	}

	pair, err := e.mint(s)
	if err != nil {
		return Pair{}, Subject{}, ErrInvalidRefreshToken
	}

	swapped, err := e.cache.CompareAndSwap(ctx, refreshKey(s.UserID), presented, pair.RefreshToken, e.jwt.RefreshTTL())
	if err != nil || !swapped {
		return Pair{}, Subject{}, ErrInvalidRefreshToken
	}

	return pair, s, nil
}

// Logout drops the live refresh token for userID. Logging out twice is fine.
func (e *Engine) Logout(ctx context.Context, userID string) error {
	if _, err := e.cache.Del(ctx, refreshKey(userID)); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

// Blacklist revokes jti until expiresAt. Tokens that have already expired
// are left alone since the parser rejects them anyway.
func (e *Engine) Blacklist(ctx context.Context, jti string, expiresAt time.Time) error {
	if jti == "" {
		return nil
	}
	remaining := expiresAt.Sub(e.now())
	if remaining <= 0 {
		return nil
	}
	ttl := time.Duration(math.Ceil(remaining.Seconds())) * time.Second
	if err := e.cache.Set(ctx, blacklistKey(jti), "1", ttl); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}
	return nil
}

// IsBlacklisted reports whether jti has been revoked.
func (e *Engine) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	ok, err := e.cache.Exists(ctx, blacklistKey(jti))
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}
	return ok, nil
}

// VerifyAccess is the per-request check: signature and expiry, non-empty
// sub and roles, and a jti that is not blacklisted. A blacklist lookup
// failure is returned as an error rather than letting the token through.
func (e *Engine) VerifyAccess(ctx context.Context, token string) (*jwt.AccessClaims, error) {
	claims, err := e.jwt.ParseAccess(token)
	if err != nil {
		return nil, ErrInvalidAccessToken
	}
	revoked, err := e.IsBlacklisted(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// RevokeAccess blacklists a still-valid access token and returns its
// claims. An unparseable or expired token is not an error: there is
// nothing left to revoke.
func (e *Engine) RevokeAccess(ctx context.Context, token string) (*jwt.AccessClaims, error) {
	claims, err := e.jwt.ParseAccess(token)
	if err != nil {
		return nil, nil
	}
	if claims.ExpiresAt == nil {
		return claims, nil
	}
	if err := e.Blacklist(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return nil, err
	}
	return claims, nil
}

func (e *Engine) mint(s Subject) (Pair, error) {
	access, claims, err := e.jwt.CreateAccess(jwt.Identity{
		Subject:  s.UserID,
		Username: s.Username,
		Email:    s.Email,
		Phone:    s.Phone,
		Roles:    s.Roles,
	})
	if err != nil {
		return Pair{}, fmt.Errorf("create access token: %w", err)
	}
	refresh, err := e.jwt.CreateRefresh(s.UserID, s.Scope)
	if err != nil {
		return Pair{}, fmt.Errorf("create refresh token: %w", err)
	}
	return Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(e.jwt.AccessTTL() / time.Second),
		TokenType:    TypeBearer,
		Access:       claims,
	}, nil
}

func refreshKey(userID string) string {
	return "refresh_token:" + userID
}

func blacklistKey(jti string) string {
	return "blacklist:" + jti
}
