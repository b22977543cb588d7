package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"

	"github.com/MrEthical07/multiauth/verification"
)

// BreakerConfig tunes the circuit breaker around a notifier.
type BreakerConfig struct {
	Name string
	// MaxRequests is how many trial sends are allowed while half-open.
	MaxRequests uint32
	// Interval clears the closed-state counts. Zero never clears them.
	Interval time.Duration
	// Timeout is how long the breaker stays open.
	Timeout      time.Duration
	FailureRatio float64
	MinRequests  uint32
}

// DefaultBreakerConfig trips at 50% failures over at least 5 sends and
// retries after 30s.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:         name,
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

var errDeliveryFailed = errors.New("delivery failed")

// Breaker stops calling a failing notifier for a while so SendCode fails
// fast instead of waiting on a dead gateway.
type Breaker struct {
	next    verification.Notifier
	breaker *gobreaker.CircuitBreaker[verification.Result]
	state   *prometheus.GaugeVec
	logger  *slog.Logger
}

// NewBreaker wraps next. When reg is non-nil the breaker state is exported
// as notifier_circuit_breaker_state{name} (0 closed, 1 half-open, 2 open).
func NewBreaker(next verification.Notifier, cfg BreakerConfig, logger *slog.Logger, reg prometheus.Registerer) (*Breaker, error) {
	if logger == nil {
		logger = slog.Default()
	}

	state := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "notifier_circuit_breaker_state",
		Help: "Current state of the notifier circuit breaker (0=closed, 1=half-open, 2=open)",
	}, []string{"name"})
	if reg != nil {
		if err := reg.Register(state); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return nil, err
			}
			state = already.ExistingCollector.(*prometheus.GaugeVec)
		}
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("notifier circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			state.WithLabelValues(name).Set(stateValue(to))
		},
	}
	state.WithLabelValues(cfg.Name).Set(0)

	return &Breaker{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[verification.Result](settings),
		state:   state,
		logger:  logger,
	}, nil
}

func (b *Breaker) Send(ctx context.Context, msg verification.Message) verification.Result {
	res, err := b.breaker.Execute(func() (verification.Result, error) {
		r := b.next.Send(ctx, msg)
		if !r.Success {
			return r, errDeliveryFailed
		}
		return r, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		b.logger.WarnContext(ctx, "notifier circuit open, send rejected")
		return verification.Result{Success: false, Message: "delivery temporarily unavailable", Code: CodeCircuitOpen}
	}
	// A failed send already carries its own Result.
	return res
}

// State reports the breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.breaker.State()
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return -1
}
