package model

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks model loads.
type Metrics struct {
	LoadDuration *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		LoadDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sherlock_model_load_duration_seconds",
			Help:    "Time to load a model artifact, by version and result",
			Buckets: []float64{.001, .01, .05, .1, .5, 1, 2, 5},
		}, []string{"version", "result"}),
	}
}

// ObserveLoad matches the WithLoadObserver callback.
func (m *Metrics) ObserveLoad(version string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.LoadDuration.WithLabelValues(version, result).Observe(d.Seconds())
}
