package multiauth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.AccessSecret = "access-secret-access-secret-0001"
	cfg.JWT.RefreshSecret = "refresh-secret-refresh-secret-01"
	cfg.Password.BcryptCost = 4
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{name: "defaults with secrets", mutate: func(*Config) {}, wantValid: true},
		{
			name:      "missing access secret",
			mutate:    func(c *Config) { c.JWT.AccessSecret = "" },
			wantValid: false,
		},
		{
			name:      "identical secrets",
			mutate:    func(c *Config) { c.JWT.RefreshSecret = c.JWT.AccessSecret },
			wantValid: false,
		},
		{
			name: "short secrets in production",
			mutate: func(c *Config) {
				c.Security.ProductionMode = true
				c.JWT.AccessSecret = "short-a"
				c.JWT.RefreshSecret = "short-r"
			},
			wantValid: false,
		},
		{
			name:      "short secrets in development",
			mutate:    func(c *Config) { c.JWT.AccessSecret, c.JWT.RefreshSecret = "short-a", "short-r" },
			wantValid: true,
		},
		{
			name:      "refresh shorter than access",
			mutate:    func(c *Config) { c.JWT.RefreshTTL = time.Minute },
			wantValid: false,
		},
		{
			name:      "leeway too large",
			mutate:    func(c *Config) { c.JWT.Leeway = 3 * time.Minute },
			wantValid: false,
		},
		{
			name:      "bcrypt cost out of range",
			mutate:    func(c *Config) { c.Password.BcryptCost = 40 },
			wantValid: false,
		},
		{
			name:      "max length below min length",
			mutate:    func(c *Config) { c.Password.MaxLength = 4 },
			wantValid: false,
		},
		{
			name:      "code length too short",
			mutate:    func(c *Config) { c.Verification.CodeLength = 3 },
			wantValid: false,
		},
		{
			name:      "lockout disabled",
			mutate:    func(c *Config) { c.Lockout.MaxLoginAttempts = 0; c.Lockout.Duration = 0 },
			wantValid: true,
		},
		{
			name:      "lockout without duration",
			mutate:    func(c *Config) { c.Lockout.Duration = 0 },
			wantValid: false,
		},
		{
			name:      "unknown default role",
			mutate:    func(c *Config) { c.Security.DefaultRole = "OWNER" },
			wantValid: false,
		},
		{
			name:      "admin default role",
			mutate:    func(c *Config) { c.Security.DefaultRole = "ADMIN" },
			wantValid: false,
		},
		{
			name:      "negative audit sink timeout",
			mutate:    func(c *Config) { c.Audit.SinkTimeout = -time.Second },
			wantValid: false,
		},
		{
			name: "breaker ratio out of range",
			mutate: func(c *Config) {
				c.Notifier.BreakerEnabled = true
				c.Notifier.BreakerFailureRatio = 1.5
			},
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, 168*time.Hour, cfg.JWT.RefreshTTL)
	assert.Equal(t, 12, cfg.Password.BcryptCost)
	assert.Equal(t, 8, cfg.Password.MinLength)
	assert.Equal(t, 128, cfg.Password.MaxLength)
	assert.Equal(t, 300*time.Second, cfg.Verification.CodeTTL)
	assert.Equal(t, 60*time.Second, cfg.Verification.ResendInterval)
	assert.Equal(t, 6, cfg.Verification.CodeLength)
	assert.Equal(t, 5, cfg.Lockout.MaxLoginAttempts)
	assert.Equal(t, 15*time.Minute, cfg.Lockout.Duration)
	assert.Equal(t, "CUSTOMER", cfg.Security.DefaultRole)
	assert.False(t, cfg.Security.ProductionMode)
}

func TestLoadConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "env-access-secret")
	t.Setenv("JWT_REFRESH_SECRET", "env-refresh-secret")
	t.Setenv("JWT_EXPIRES_IN", "5m")
	t.Setenv("BCRYPT_ROUNDS", "10")
	t.Setenv("MAX_LOGIN_ATTEMPTS", "3")
	t.Setenv("VERIFICATION_RATE_LIMIT", "90s")
	t.Setenv("NODE_ENV", "production")

	cfg, err := LoadConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "env-access-secret", cfg.JWT.AccessSecret)
	assert.Equal(t, "env-refresh-secret", cfg.JWT.RefreshSecret)
	assert.Equal(t, 5*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, 10, cfg.Password.BcryptCost)
	assert.Equal(t, 3, cfg.Lockout.MaxLoginAttempts)
	assert.Equal(t, 90*time.Second, cfg.Verification.ResendInterval)
	assert.True(t, cfg.Security.ProductionMode)
}

func TestLoadConfigFromEnvRejectsMalformedValues(t *testing.T) {
	t.Setenv("JWT_EXPIRES_IN", "fifteen minutes")

	_, err := LoadConfigFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}
