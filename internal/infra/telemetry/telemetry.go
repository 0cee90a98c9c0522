package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/port"
)

// AuthMetricsOptions configures the authentication collectors.
type AuthMetricsOptions struct {
	Registerer prometheus.Registerer
	Namespace  string
}

// AuthMetrics exposes Prometheus collectors for login outcomes.
type AuthMetrics struct {
	Logins   *prometheus.CounterVec
	Lockouts prometheus.Counter
	Expired  prometheus.Counter
}

// NewAuthMetrics constructs and registers the authentication collectors.
func NewAuthMetrics(opts AuthMetricsOptions) (*AuthMetrics, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "belsign"
	}

	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	logins := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "logins_total",
		Help:      "Login attempts partitioned by outcome.",
	}, []string{"outcome"})
	if err := register(reg, logins, &logins); err != nil {
		return nil, err
	}

	lockouts := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "lockouts_total",
		Help:      "Accounts locked after repeated failed logins.",
	})
	if err := register(reg, lockouts, &lockouts); err != nil {
		return nil, err
	}

	expired := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "sessions_expired_total",
		Help:      "Operator sessions ended by the idle timeout.",
	})
	if err := register(reg, expired, &expired); err != nil {
		return nil, err
	}

	return &AuthMetrics{
		Logins:   logins,
		Lockouts: lockouts,
		Expired:  expired,
	}, nil
}

// register adds c to reg, reusing a previously registered collector of the same type.
func register[T prometheus.Collector](reg prometheus.Registerer, c T, dst *T) error {
	err := reg.Register(c)
	if err == nil {
		return nil
	}
	already, ok := err.(prometheus.AlreadyRegisteredError)
	if !ok {
		return fmt.Errorf("register collector: %w", err)
	}
	existing, ok := already.ExistingCollector.(T)
	if !ok {
		return fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
	}
	*dst = existing
	return nil
}

func (m *AuthMetrics) LoginSucceeded() {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues("success").Inc()
}

func (m *AuthMetrics) LoginFailed(reason string) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(reason).Inc()
}

func (m *AuthMetrics) AccountLocked() {
	if m == nil {
		return
	}
	m.Lockouts.Inc()
}

func (m *AuthMetrics) SessionExpired() {
	if m == nil {
		return
	}
	m.Expired.Inc()
}

var _ port.AuthMetrics = (*AuthMetrics)(nil)
