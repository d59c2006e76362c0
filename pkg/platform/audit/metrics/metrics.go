// Package metrics instruments the audit publisher. A nil *Metrics is valid
// and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Appended       *prometheus.CounterVec
	AppendFailures *prometheus.CounterVec
	AppendDuration prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Appended: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trialgate_audit_events_appended_total",
			Help: "Audit events accepted by the sink, by category",
		}, []string{"category"}),
		AppendFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trialgate_audit_append_failures_total",
			Help: "Audit events the sink rejected, by category",
		}, []string{"category"}),
		AppendDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "trialgate_audit_append_duration_seconds",
			Help:    "Time spent writing one audit event to the sink",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}),
	}
}

func (m *Metrics) ObserveAppend(category string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.AppendDuration.Observe(seconds)
	if err != nil {
		m.AppendFailures.WithLabelValues(category).Inc()
		return
	}
	m.Appended.WithLabelValues(category).Inc()
}
