package multiauth

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "multiauth"

// Operation labels.
const (
	opRegister       = "register"
	opLogin          = "login"
	opRefresh        = "refresh"
	opLogout         = "logout"
	opVerifyAccess   = "verify_access"
	opSendCode       = "send_code"
	opCheckUser      = "check_user_exists"
	opResetPassword  = "reset_password"
	opChangePassword = "change_password"
	opVerifyChannel  = "verify_channel"
	opRoleStatus     = "role_status"
	opProfile        = "profile"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg. Collectors
// already registered by another engine on the same registry are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "operations_total",
		Help:      "Authentication operations by outcome.",
	}, []string{"operation", "outcome"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "operation_duration_seconds",
		Help:      "Latency of authentication operations.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"operation"})

	m := &Metrics{operations: operations, duration: duration}
	if reg == nil {
		return m, nil
	}

	var err error
	if m.operations, err = register(reg, operations); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, duration); err != nil {
		return nil, err
	}
	return m, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) observe(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, outcome(err)).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return string(auditErrorCode(err))
}
