package runner

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts engine invocations and their durations.
type Metrics struct {
	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewMetrics creates the engine metrics and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "khiopsctl",
			Subsystem: "engine",
			Name:      "invocations_total",
			Help:      "Engine invocations by task and outcome.",
		}, []string{"task", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "khiopsctl",
			Subsystem: "engine",
			Name:      "duration_seconds",
			Help:      "Wall time of engine invocations.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"task"}),
	}
	reg.MustRegister(m.invocations, m.duration)
	return m
}

func (m *Metrics) observe(task string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.invocations.WithLabelValues(task, outcome).Inc()
	m.duration.WithLabelValues(task).Observe(time.Since(start).Seconds())
}

// Invocations returns the counter for tests and reports.
func (m *Metrics) Invocations() *prometheus.CounterVec { return m.invocations }
