package registration

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the registration saga. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	// Registration outcomes by terminal state ("completed", "rolled_back",
	// "aborted").
	Outcomes *prometheus.CounterVec

	// Compensation deletions by resource and result.
	Compensations *prometheus.CounterVec

	// End-to-end saga duration.
	SagaDuration prometheus.Histogram
}

// NewMetrics registers the saga metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "registration_saga_outcomes_total",
			Help: "Terminal registration saga states",
		}, []string{"outcome"}),

		Compensations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "registration_compensations_total",
			Help: "Compensation deletions by resource and result",
		}, []string{"resource", "result"}),

		SagaDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "registration_saga_duration_seconds",
			Help:    "End-to-end duration of the registration saga",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}

// RecordOutcome counts a terminal saga state.
func (m *Metrics) RecordOutcome(outcome string) {
	if m != nil {
		m.Outcomes.WithLabelValues(outcome).Inc()
	}
}

// RecordCompensation counts one compensation deletion.
func (m *Metrics) RecordCompensation(resource, result string) {
	if m != nil {
		m.Compensations.WithLabelValues(resource, result).Inc()
	}
}

// ObserveSagaDuration records how long a create saga ran.
func (m *Metrics) ObserveSagaDuration(d time.Duration) {
	if m != nil {
		m.SagaDuration.Observe(d.Seconds())
	}
}
