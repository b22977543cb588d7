package multiauth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/MrEthical07/multiauth/user"
)

// Config is the complete engine configuration. Every field has an env tag
// so a deployment can be configured from the environment alone with
// LoadConfigFromEnv.
type Config struct {
	JWT          JWTConfig
	Password     PasswordConfig
	Verification VerificationConfig
	Lockout      LockoutConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
	Security     SecurityConfig
	Cache        CacheConfig
	Notifier     NotifierConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig holds the HS256 secrets and token lifetimes. The access and
// refresh secrets must differ.
type JWTConfig struct {
	AccessSecret  string        `env:"JWT_SECRET"`
	RefreshSecret string        `env:"JWT_REFRESH_SECRET"`
	AccessTTL     time.Duration `env:"JWT_EXPIRES_IN" envDefault:"15m"`
	RefreshTTL    time.Duration `env:"JWT_REFRESH_EXPIRES_IN" envDefault:"168h"`
	Issuer        string        `env:"JWT_ISSUER"`
	Audience      string        `env:"JWT_AUDIENCE"`
	Leeway        time.Duration `env:"JWT_LEEWAY" envDefault:"0s"`
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds the bcrypt cost and the strength policy bounds.
type PasswordConfig struct {
	BcryptCost     int  `env:"BCRYPT_ROUNDS" envDefault:"12"`
	MinLength      int  `env:"PASSWORD_MIN_LENGTH" envDefault:"8"`
	MaxLength      int  `env:"PASSWORD_MAX_LENGTH" envDefault:"128"`
	UpgradeOnLogin bool `env:"PASSWORD_UPGRADE_ON_LOGIN" envDefault:"true"`
}

/*
====================================
VERIFICATION CONFIG
====================================
*/

// VerificationConfig tunes one-time codes.
type VerificationConfig struct {
	CodeTTL        time.Duration `env:"VERIFICATION_CODE_TTL" envDefault:"300s"`
	ResendInterval time.Duration `env:"VERIFICATION_RATE_LIMIT" envDefault:"60s"`
	CodeLength     int           `env:"VERIFICATION_CODE_LENGTH" envDefault:"6"`
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig bounds failed logins per identifier, and per client IP when
// EnableIPThrottle is set. MaxLoginAttempts of zero disables the lockout.
type LockoutConfig struct {
	MaxLoginAttempts int           `env:"MAX_LOGIN_ATTEMPTS" envDefault:"5"`
	Duration         time.Duration `env:"ACCOUNT_LOCKOUT_DURATION" envDefault:"15m"`
	EnableIPThrottle bool          `env:"LOGIN_IP_THROTTLE" envDefault:"false"`
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled     bool          `env:"AUDIT_ENABLED" envDefault:"false"`
	BufferSize  int           `env:"AUDIT_BUFFER_SIZE" envDefault:"1024"`
	DropIfFull  bool          `env:"AUDIT_DROP_IF_FULL" envDefault:"true"`
	SinkTimeout time.Duration `env:"AUDIT_SINK_TIMEOUT" envDefault:"5s"`
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls Prometheus instrumentation. Collectors are only
// registered when Enabled is set and the builder received a registerer.
type MetricsConfig struct {
	Enabled bool `env:"METRICS_ENABLED" envDefault:"false"`
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds environment-dependent hardening switches.
type SecurityConfig struct {
	// ProductionMode hides internal error detail from PublicMessage and
	// enforces 32-byte secrets.
	ProductionMode bool   `env:"PRODUCTION" envDefault:"false"`
	Environment    string `env:"NODE_ENV" envDefault:"development"`
	// DefaultRole is granted by Register when the request names none.
	DefaultRole string `env:"DEFAULT_ROLE" envDefault:"CUSTOMER"`
}

/*
====================================
CACHE CONFIG
====================================
*/

// CacheConfig holds Redis key settings.
type CacheConfig struct {
	KeyPrefix string `env:"REDIS_KEY_PREFIX"`
}

/*
====================================
NOTIFIER CONFIG
====================================
*/

// NotifierConfig wraps the configured notifier in a circuit breaker when
// BreakerEnabled is set.
type NotifierConfig struct {
	BreakerEnabled      bool          `env:"NOTIFIER_BREAKER_ENABLED" envDefault:"false"`
	BreakerTimeout      time.Duration `env:"NOTIFIER_BREAKER_TIMEOUT" envDefault:"30s"`
	BreakerMinRequests  uint32        `env:"NOTIFIER_BREAKER_MIN_REQUESTS" envDefault:"5"`
	BreakerFailureRatio float64       `env:"NOTIFIER_BREAKER_FAILURE_RATIO" envDefault:"0.5"`
}

/*
====================================
DEFAULTS
====================================
*/

// DefaultConfig returns the documented defaults. Secrets are left empty and
// must be supplied before Build.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		Password: PasswordConfig{
			BcryptCost:     12,
			MinLength:      8,
			MaxLength:      128,
			UpgradeOnLogin: true,
		},
		Verification: VerificationConfig{
			CodeTTL:        300 * time.Second,
			ResendInterval: 60 * time.Second,
			CodeLength:     6,
		},
		Lockout: LockoutConfig{
			MaxLoginAttempts: 5,
			Duration:         15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:     false,
			BufferSize:  1024,
			DropIfFull:  true,
			SinkTimeout: 5 * time.Second,
		},
		Security: SecurityConfig{
			Environment: "development",
			DefaultRole: string(user.RoleCustomer),
		},
		Notifier: NotifierConfig{
			BreakerTimeout:      30 * time.Second,
			BreakerMinRequests:  5,
			BreakerFailureRatio: 0.5,
		},
	}
}

// LoadConfigFromEnv parses the environment over the defaults. NODE_ENV set
// to "production" turns on ProductionMode as well.
func LoadConfigFromEnv() (Config, error) {
	cfg := defaultConfig()
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if strings.EqualFold(cfg.Security.Environment, "production") {
		cfg.Security.ProductionMode = true
	}
	return cfg, nil
}

/*
====================================
VALIDATION
====================================
*/

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessSecret == "" {
		return errors.New("JWT AccessSecret is required")
	}
	if c.JWT.RefreshSecret == "" {
		return errors.New("JWT RefreshSecret is required")
	}
	if c.JWT.AccessSecret == c.JWT.RefreshSecret {
		return errors.New("JWT AccessSecret and RefreshSecret must differ")
	}
	if c.Security.ProductionMode && (len(c.JWT.AccessSecret) < 32 || len(c.JWT.RefreshSecret) < 32) {
		return errors.New("JWT secrets must be at least 32 bytes in production")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be greater than AccessTTL")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Password
	if c.Password.BcryptCost < bcrypt.MinCost || c.Password.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("Password BcryptCost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be > 0")
	}
	if c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password MaxLength must be >= MinLength")
	}

	// Verification
	if c.Verification.CodeTTL <= 0 {
		return errors.New("Verification CodeTTL must be > 0")
	}
	if c.Verification.ResendInterval <= 0 {
		return errors.New("Verification ResendInterval must be > 0")
	}
	if c.Verification.CodeLength < 4 || c.Verification.CodeLength > 10 {
		return errors.New("Verification CodeLength must be between 4 and 10")
	}

	// Lockout
	if c.Lockout.MaxLoginAttempts < 0 {
		return errors.New("Lockout MaxLoginAttempts must be >= 0")
	}
	if c.Lockout.MaxLoginAttempts > 0 && c.Lockout.Duration <= 0 {
		return errors.New("Lockout Duration must be > 0 when MaxLoginAttempts is set")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}
	if c.Audit.SinkTimeout < 0 {
		return errors.New("Audit SinkTimeout must be >= 0")
	}

	// Security
	if r := user.RoleType(c.Security.DefaultRole); r != user.RoleCustomer && r != user.RoleMerchant {
		return errors.New("Security DefaultRole must be CUSTOMER or MERCHANT")
	}

	// Notifier
	if c.Notifier.BreakerEnabled {
		if c.Notifier.BreakerTimeout <= 0 {
			return errors.New("Notifier BreakerTimeout must be > 0")
		}
		if c.Notifier.BreakerFailureRatio <= 0 || c.Notifier.BreakerFailureRatio > 1 {
			return errors.New("Notifier BreakerFailureRatio must be in (0, 1]")
		}
	}

	return nil
}
