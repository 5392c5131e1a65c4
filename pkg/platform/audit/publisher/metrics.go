package publisher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks the audit pipeline. All methods are nil-safe.
type Metrics struct {
	Enqueued        prometheus.Counter
	Dropped         prometheus.Counter
	PersistedTotal  prometheus.Counter
	PersistFailures prometheus.Counter
	CircuitDropped  prometheus.Counter
	CircuitOpen     prometheus.Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		Enqueued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sherlock_audit_enqueued_total",
			Help: "Audit records accepted into the publisher buffer",
		}),
		Dropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sherlock_audit_dropped_total",
			Help: "Audit records dropped because the buffer was full",
		}),
		PersistedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sherlock_audit_persisted_total",
			Help: "Audit records appended to the sink",
		}),
		PersistFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sherlock_audit_persist_failures_total",
			Help: "Audit records the sink failed to append",
		}),
		CircuitDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sherlock_audit_circuit_dropped_total",
			Help: "Audit records skipped while the sink circuit was open",
		}),
		CircuitOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "sherlock_audit_circuit_open",
			Help: "Audit sink circuit state (0=closed, 1=open)",
		}),
	}
}

func (m *Metrics) enqueued() {
	if m != nil {
		m.Enqueued.Inc()
	}
}

func (m *Metrics) dropped() {
	if m != nil {
		m.Dropped.Inc()
	}
}

func (m *Metrics) Persisted() {
	if m != nil {
		m.PersistedTotal.Inc()
	}
}

func (m *Metrics) PersistFailed() {
	if m != nil {
		m.PersistFailures.Inc()
	}
}

func (m *Metrics) CircuitSkipped() {
	if m != nil {
		m.CircuitDropped.Inc()
	}
}

func (m *Metrics) CircuitState(open bool) {
	if m == nil {
		return
	}
	if open {
		m.CircuitOpen.Set(1)
	} else {
		m.CircuitOpen.Set(0)
	}
}
