package jwt

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RefreshType is the value of the "type" claim carried by refresh tokens.
const RefreshType = "refresh"

var (
	// ErrWrongTokenType is returned when a refresh parse sees a token whose
	// type claim is not "refresh".
	ErrWrongTokenType = errors.New("token is not a refresh token")
	// ErrMissingClaims is returned when an access token lacks sub or roles.
	ErrMissingClaims = errors.New("token is missing required claims")
)

// Config defines a public type used by multiauth APIs.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

// Manager defines a public type used by multiauth APIs.
//
// Manager instances are intended to be configured during initialization and then treated as immutable.
type Manager struct {
	config Config
	now    func() time.Time
}

// Identity is the subject an access token is minted for.
type Identity struct {
	Subject  string
	Username string
	Email    string
	Phone    string
	Roles    []string
}

// AccessClaims is the payload of an access token.
type AccessClaims struct {
	Username string   `json:"username,omitempty"`
	Email    string   `json:"email,omitempty"`
	Phone    string   `json:"phone,omitempty"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a refresh token. Scope is the single role
// a role-scoped session was opened for; it is empty for unscoped sessions.
type RefreshClaims struct {
	Type  string `json:"type"`
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if len(cfg.AccessSecret) == 0 {
		return nil, errors.New("access secret is required")
	}
	if len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("refresh secret is required")
	}
	if bytes.Equal(cfg.AccessSecret, cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}

	return &Manager{config: cfg, now: time.Now}, nil
}

// AccessTTL returns the configured access-token lifetime.
func (m *Manager) AccessTTL() time.Duration { return m.config.AccessTTL }

// RefreshTTL returns the configured refresh-token lifetime.
func (m *Manager) RefreshTTL() time.Duration { return m.config.RefreshTTL }

// CreateAccess signs an access token for id with a fresh jti.
func (m *Manager) CreateAccess(id Identity) (string, *AccessClaims, error) {
	if id.Subject == "" {
		return "", nil, ErrMissingClaims
	}

	now := m.now()
	claims := &AccessClaims{
		Username:         id.Username,
		Email:            id.Email,
		Phone:            id.Phone,
		Roles:            id.Roles,
		RegisteredClaims: m.registered(id.Subject, now, m.config.AccessTTL),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.AccessSecret)
	if err != nil {
		return "", nil, fmt.Errorf("sign access token: %w", err)
	}
	return signed, claims, nil
}

// CreateRefresh signs a refresh token for subject, bound to scope. The jti
// only makes two tokens minted within the same second distinct; it is not
// tracked.
func (m *Manager) CreateRefresh(subject, scope string) (string, error) {
	if subject == "" {
		return "", ErrMissingClaims
	}

	claims := &RefreshClaims{
		Type:             RefreshType,
		Scope:            scope,
		RegisteredClaims: m.registered(subject, m.now(), m.config.RefreshTTL),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.RefreshSecret)
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, nil
}

// ParseAccess verifies signature, expiry, issuer and audience of an access
// token and requires non-empty sub and roles.
func (m *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := m.parse(tokenStr, claims, m.config.AccessSecret); err != nil {
		return nil, err
	}
	if claims.Subject == "" || len(claims.Roles) == 0 {
		return nil, ErrMissingClaims
	}
	return claims, nil
}

// ParseRefresh verifies a refresh token against the refresh secret and
// requires type="refresh".
func (m *Manager) ParseRefresh(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := m.parse(tokenStr, claims, m.config.RefreshSecret); err != nil {
		return nil, err
	}
	if claims.Type != RefreshType {
		return nil, ErrWrongTokenType
	}
	if claims.Subject == "" {
		return nil, ErrMissingClaims
	}
	return claims, nil
}

func (m *Manager) registered(subject string, now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	rc := jwt.RegisteredClaims{
		Subject:   subject,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Issuer:    m.config.Issuer,
	}
	if m.config.Audience != "" {
		rc.Audience = jwt.ClaimStrings{m.config.Audience}
	}
	return rc
}

func (m *Manager) parse(tokenStr string, claims jwt.Claims, secret []byte) error {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	token, err := jwt.NewParser(options...).ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return secret, nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return jwt.ErrTokenInvalidClaims
	}
	return nil
}
