package shadow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the shadow path.
type Metrics struct {
	Dispatched prometheus.Counter
	// Dispatch failures by cause: queue_full, closed, error
	DispatchFailures *prometheus.CounterVec

	Evaluations prometheus.Counter
	// Evaluations that panicked or could not run
	EvaluationFailures prometheus.Counter
	EvaluationLatency  prometheus.Histogram

	// Comparisons by result: agree, conflict, uncompared
	Comparisons          *prometheus.CounterVec
	ConflictSinkFailures prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		Dispatched: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sherlock_shadow_dispatched_total",
			Help: "Transactions handed to the shadow transport",
		}),
		DispatchFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sherlock_shadow_dispatch_failures_total",
			Help: "Transactions the shadow transport did not accept",
		}, []string{"cause"}),
		Evaluations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sherlock_shadow_evaluations_total",
			Help: "Shadow evaluations completed",
		}),
		EvaluationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sherlock_shadow_evaluation_failures_total",
			Help: "Shadow evaluations that failed or panicked",
		}),
		EvaluationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sherlock_shadow_evaluation_duration_seconds",
			Help:    "Time from dispatch to completed shadow evaluation",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		Comparisons: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sherlock_shadow_comparisons_total",
			Help: "Shadow verdicts compared against production, by result",
		}, []string{"result"}),
		ConflictSinkFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sherlock_shadow_conflict_sink_failures_total",
			Help: "Conflict records a sink failed to accept",
		}),
	}
}

func (m *Metrics) incrementDispatched() {
	if m == nil {
		return
	}
	m.Dispatched.Inc()
}

func (m *Metrics) incrementDispatchFailure(cause string) {
	if m == nil {
		return
	}
	m.DispatchFailures.WithLabelValues(cause).Inc()
}

func (m *Metrics) observeEvaluation(seconds float64) {
	if m == nil {
		return
	}
	m.Evaluations.Inc()
	m.EvaluationLatency.Observe(seconds)
}

func (m *Metrics) incrementEvaluationFailure() {
	if m == nil {
		return
	}
	m.EvaluationFailures.Inc()
}

func (m *Metrics) incrementComparison(result string) {
	if m == nil {
		return
	}
	m.Comparisons.WithLabelValues(result).Inc()
}

func (m *Metrics) incrementSinkFailure() {
	if m == nil {
		return
	}
	m.ConflictSinkFailures.Inc()
}
