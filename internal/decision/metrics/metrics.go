package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the decision module.
type Metrics struct {
	// Decisions by outcome
	Outcomes *prometheus.CounterVec

	// Rule and annotation hits by reason
	Reasons *prometheus.CounterVec

	// Degraded evaluations by cause: state, model, device_graph, audit, shadow
	Degraded *prometheus.CounterVec

	// Requests rejected with an error, by kind
	Rejected *prometheus.CounterVec

	Replays prometheus.Counter

	DecideLatency prometheus.Histogram
	StateLatency  prometheus.Histogram
}

// New creates a new Metrics instance with all decision module metrics registered.
func New() *Metrics {
	return &Metrics{
		Outcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sherlock_decision_outcomes_total",
			Help: "Total decisions by outcome",
		}, []string{"outcome"}),

		Reasons: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sherlock_decision_reasons_total",
			Help: "Reasons attached to decisions",
		}, []string{"reason"}),

		Degraded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sherlock_decision_degraded_total",
			Help: "Decisions that completed without one of their collaborators",
		}, []string{"cause"}),

		Rejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sherlock_decision_rejected_total",
			Help: "Decision requests that failed",
		}, []string{"kind"}),

		Replays: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sherlock_decision_replays_total",
			Help: "Transactions answered from a previously recorded decision",
		}),

		DecideLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sherlock_decision_duration_seconds",
			Help:    "Duration of the synchronous decision path",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.075, 0.1, 0.25},
		}),

		StateLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sherlock_decision_state_duration_seconds",
			Help:    "Duration of the state store record call",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
		}),
	}
}

// ObserveDecision records the outcome, its reasons, and the total latency.
func (m *Metrics) ObserveDecision(outcome string, reasons []string, d time.Duration) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(outcome).Inc()
	for _, r := range reasons {
		m.Reasons.WithLabelValues(r).Inc()
	}
	m.DecideLatency.Observe(d.Seconds())
}

func (m *Metrics) IncrementDegraded(cause string) {
	if m != nil {
		m.Degraded.WithLabelValues(cause).Inc()
	}
}

func (m *Metrics) IncrementRejected(kind string) {
	if m != nil {
		m.Rejected.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) IncrementReplay() {
	if m != nil {
		m.Replays.Inc()
	}
}

func (m *Metrics) ObserveStateLatency(d time.Duration) {
	if m != nil {
		m.StateLatency.Observe(d.Seconds())
	}
}
