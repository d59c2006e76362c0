package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for proof generation and submission.
type Metrics struct {
	Generated       prometheus.Counter
	Submissions     *prometheus.CounterVec
	VerifierLatency prometheus.Histogram
	LockWait        prometheus.Histogram
}

// New registers the proof metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Generated: f.NewCounter(prometheus.CounterOpts{
			Name: "trialgate_proofs_generated_total",
			Help: "Total number of proof triples derived",
		}),
		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trialgate_proof_submissions_total",
			Help: "Proof submissions by outcome",
		}, []string{"outcome"}),
		VerifierLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "trialgate_proof_verifier_duration_seconds",
			Help:    "Time spent in the proof verifier",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5},
		}),
		LockWait: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "trialgate_proof_lock_wait_seconds",
			Help:    "Time spent waiting for the per-credential submission lock",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncGenerated() {
	if m == nil {
		return
	}
	m.Generated.Inc()
}

// IncSubmission counts a submission outcome: verified, rejected, expired, cooldown, conflict, error.
func (m *Metrics) IncSubmission(outcome string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveVerifier(start time.Time) {
	if m == nil {
		return
	}
	m.VerifierLatency.Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveLockWait(start time.Time) {
	if m == nil {
		return
	}
	m.LockWait.Observe(time.Since(start).Seconds())
}
