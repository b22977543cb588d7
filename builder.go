package multiauth

import (
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrEthical07/multiauth/cache"
	internalaudit "github.com/MrEthical07/multiauth/internal/audit"
	"github.com/MrEthical07/multiauth/internal/logger"
	"github.com/MrEthical07/multiauth/internal/rate"
	"github.com/MrEthical07/multiauth/jwt"
	"github.com/MrEthical07/multiauth/notify"
	"github.com/MrEthical07/multiauth/password"
	"github.com/MrEthical07/multiauth/role"
	"github.com/MrEthical07/multiauth/token"
	"github.com/MrEthical07/multiauth/user"
	"github.com/MrEthical07/multiauth/verification"
)

const instrumentationName = "github.com/MrEthical07/multiauth"

// Builder assembles an Engine. A Builder can be built once.
type Builder struct {
	config Config

	redis    redis.UniversalClient
	cache    cache.Cache
	users    user.Repository
	notifier verification.Notifier

	logger         *slog.Logger
	auditSink      AuditSink
	registerer     prometheus.Registerer
	tracerProvider trace.TracerProvider

	built bool
}

// New returns a Builder holding DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis stores verification codes, refresh pointers, the blacklist,
// and lockout counters in client, under Config.Cache.KeyPrefix.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCache uses c directly. It takes precedence over WithRedis.
func (b *Builder) WithCache(c cache.Cache) *Builder {
	b.cache = c
	return b
}

// WithUserRepository sets where users are persisted.
func (b *Builder) WithUserRepository(users user.Repository) *Builder {
	b.users = users
	return b
}

// WithNotifier sets how codes are delivered. Without one, a development
// engine logs codes through the engine logger; a production engine
// refuses to build.
func (b *Builder) WithNotifier(n verification.Notifier) *Builder {
	b.notifier = n
	return b
}

// WithLogger sets the structured logger. The default discards.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithAuditSink sets the audit destination. Auditing also needs
// Config.Audit.Enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsRegisterer registers the engine collectors on reg and turns
// metrics on.
func (b *Builder) WithMetricsRegisterer(reg prometheus.Registerer) *Builder {
	b.registerer = reg
	b.config.Metrics.Enabled = reg != nil
	return b
}

// WithTracerProvider overrides the global OpenTelemetry tracer provider.
func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracerProvider = tp
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config

	store := b.cache
	if store == nil && b.redis != nil {
		store = cache.NewRedis(b.redis, cfg.Cache.KeyPrefix)
	}
	if store == nil {
		return nil, errors.New("cache required: call WithRedis or WithCache")
	}
	if b.users == nil {
		return nil, errors.New("user repository required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := b.logger
	if log == nil {
		log = logger.Discard()
	}

	var registerer prometheus.Registerer
	if cfg.Metrics.Enabled {
		registerer = b.registerer
	}

	// -------- NOTIFIER --------
	notifier := b.notifier
	if notifier == nil {
		if cfg.Security.ProductionMode {
			return nil, errors.New("notifier required in production mode")
		}
		ln := notify.NewLogNotifier(log, notify.DefaultTemplates())
		ln.IncludeCode = true
		notifier = ln
	}
	if cfg.Notifier.BreakerEnabled {
		bc := notify.DefaultBreakerConfig("verification")
		bc.Timeout = cfg.Notifier.BreakerTimeout
		bc.MinRequests = cfg.Notifier.BreakerMinRequests
		bc.FailureRatio = cfg.Notifier.BreakerFailureRatio
		breaker, err := notify.NewBreaker(notifier, bc, log, registerer)
		if err != nil {
			return nil, err
		}
		notifier = breaker
	}

	// -------- CODES AND TOKENS --------
	codes, err := verification.NewEngine(store, notifier, verification.Config{
		CodeTTL:        cfg.Verification.CodeTTL,
		ResendInterval: cfg.Verification.ResendInterval,
		CodeLength:     cfg.Verification.CodeLength,
	})
	if err != nil {
		return nil, err
	}

	jm, err := jwt.NewManager(jwt.Config{
		AccessSecret:  []byte(cfg.JWT.AccessSecret),
		RefreshSecret: []byte(cfg.JWT.RefreshSecret),
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}
	tokens, err := token.NewEngine(store, jm)
	if err != nil {
		return nil, err
	}

	// -------- PASSWORDS --------
	hasher, err := password.NewHasher(password.Config{Cost: cfg.Password.BcryptCost})
	if err != nil {
		return nil, err
	}

	// -------- METRICS --------
	var metrics *Metrics
	if cfg.Metrics.Enabled {
		if metrics, err = NewMetrics(registerer); err != nil {
			return nil, err
		}
	}

	tp := b.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	engine := &Engine{
		config: cfg,
		users:  b.users,
		codes:  codes,
		tokens: tokens,
		hasher: hasher,
		auth:   password.NewAuthenticator(b.users, hasher, cfg.Password.UpgradeOnLogin),
		policy: password.Policy{
			MinLength: cfg.Password.MinLength,
			MaxLength: cfg.Password.MaxLength,
		},
		gate: role.NewGate(b.users),
		limiter: rate.New(store, rate.Config{
			EnableIPThrottle: cfg.Lockout.EnableIPThrottle,
			MaxLoginAttempts: cfg.Lockout.MaxLoginAttempts,
			LockoutDuration:  cfg.Lockout.Duration,
		}),
		metrics: metrics,
		logger:  log,
		tracer:  tp.Tracer(instrumentationName),
		now:     time.Now,
	}
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:     cfg.Audit.Enabled,
		BufferSize:  cfg.Audit.BufferSize,
		DropIfFull:  cfg.Audit.DropIfFull,
		SinkTimeout: cfg.Audit.SinkTimeout,
	}, b.auditSink)

	b.built = true

	return engine, nil
}
