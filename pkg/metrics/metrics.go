package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

type Options struct {
	Registerer prometheus.Registerer
	Namespace  string
}

// Verification counts the lifecycle of one-time codes and the reasons
// authentication attempts fail. A nil *Verification records nothing.
type Verification struct {
	Issued       *prometheus.CounterVec
	Consumed     *prometheus.CounterVec
	Expired      prometheus.Counter
	AuthFailures *prometheus.CounterVec
}

func NewVerification(opts Options) (*Verification, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "accounts"
	}

	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	issued, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "verification",
		Name:      "issued_total",
		Help:      "Verifications handed out, partitioned by channel.",
	}, []string{"channel"}))
	if err != nil {
		return nil, err
	}

	consumed, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "verification",
		Name:      "consumed_total",
		Help:      "Verifications consumed, partitioned by channel.",
	}, []string{"channel"}))
	if err != nil {
		return nil, err
	}

	expired, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "verification",
		Name:      "expired_total",
		Help:      "Verifications invalidated by the expiry timer before use.",
	}))
	if err != nil {
		return nil, err
	}

	failures, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "failures_total",
		Help:      "Rejected verification attempts, partitioned by reason.",
	}, []string{"reason"}))
	if err != nil {
		return nil, err
	}

	return &Verification{
		Issued:       issued,
		Consumed:     consumed,
		Expired:      expired,
		AuthFailures: failures,
	}, nil
}

func (m *Verification) IssuedInc(channel string) {
	if m == nil {
		return
	}
	m.Issued.WithLabelValues(channel).Inc()
}

func (m *Verification) ConsumedInc(channel string) {
	if m == nil {
		return
	}
	m.Consumed.WithLabelValues(channel).Inc()
}

func (m *Verification) ExpiredInc() {
	if m == nil {
		return
	}
	m.Expired.Inc()
}

func (m *Verification) FailureInc(reason string) {
	if m == nil {
		return
	}
	m.AuthFailures.WithLabelValues(reason).Inc()
}

// register adds c to reg, or returns the collector already registered under
// the same descriptor.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return c, fmt.Errorf("register collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(T)
		if !ok {
			return c, fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
		}
		return existing, nil
	}
	return c, nil
}
