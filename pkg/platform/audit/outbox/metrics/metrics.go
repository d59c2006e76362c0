package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// Metrics instruments the outbox worker. Every method is safe on a nil receiver.
type Metrics struct {
	PendingDepth    prometheus.Gauge
	PublishedTotal  *prometheus.CounterVec
	PublishFailures prometheus.Counter
	PrunedTotal     prometheus.Counter
	PublishDuration prometheus.Histogram
	BatchDuration   prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PendingDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "trialgate_outbox_pending",
			Help: "Audit entries waiting to be published",
		}),
		PublishedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trialgate_outbox_published_total",
			Help: "Audit entries published to Kafka, by category",
		}, []string{"category"}),
		PublishFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "trialgate_outbox_publish_failures_total",
			Help: "Failed fetch or publish attempts",
		}),
		PrunedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "trialgate_outbox_pruned_total",
			Help: "Published entries removed after the retention period",
		}),
		PublishDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "trialgate_outbox_publish_duration_seconds",
			Help:    "Latency of a single Kafka publish",
			Buckets: latencyBuckets,
		}),
		BatchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "trialgate_outbox_batch_duration_seconds",
			Help:    "Latency of one claim, publish and mark cycle",
			Buckets: latencyBuckets,
		}),
	}
}

func (m *Metrics) SetPendingDepth(count int64) {
	if m != nil {
		m.PendingDepth.Set(float64(count))
	}
}

func (m *Metrics) IncPublished(category string) {
	if m != nil {
		m.PublishedTotal.WithLabelValues(category).Inc()
	}
}

func (m *Metrics) IncPublishFailures() {
	if m != nil {
		m.PublishFailures.Inc()
	}
}

func (m *Metrics) AddPruned(n int64) {
	if m != nil && n > 0 {
		m.PrunedTotal.Add(float64(n))
	}
}

func (m *Metrics) ObservePublish(seconds float64) {
	if m != nil {
		m.PublishDuration.Observe(seconds)
	}
}

func (m *Metrics) ObserveBatch(seconds float64) {
	if m != nil {
		m.BatchDuration.Observe(seconds)
	}
}
