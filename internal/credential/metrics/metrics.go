package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for credential issuance.
type Metrics struct {
	Issued        *prometheus.CounterVec
	Revoked       prometheus.Counter
	SigningErrors prometheus.Counter
	IssueLatency  prometheus.Histogram
	Retrievals    *prometheus.CounterVec
}

// New registers the credential metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Issued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trialgate_credentials_issued_total",
			Help: "Total number of credentials issued, by issuer resolution strategy",
		}, []string{"strategy"}),
		Revoked: f.NewCounter(prometheus.CounterOpts{
			Name: "trialgate_credentials_revoked_total",
			Help: "Total number of credentials revoked",
		}),
		SigningErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "trialgate_credential_signing_errors_total",
			Help: "Total number of issuance attempts rejected due to unusable key material",
		}),
		IssueLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "trialgate_credential_issue_duration_seconds",
			Help:    "Time spent issuing a credential",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5},
		}),
		Retrievals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trialgate_credential_retrievals_total",
			Help: "Credential retrieval attempts by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) IncIssued(strategy string) {
	if m == nil {
		return
	}
	m.Issued.WithLabelValues(strategy).Inc()
}

func (m *Metrics) IncRevoked() {
	if m == nil {
		return
	}
	m.Revoked.Inc()
}

func (m *Metrics) IncSigningError() {
	if m == nil {
		return
	}
	m.SigningErrors.Inc()
}

func (m *Metrics) ObserveIssue(start time.Time) {
	if m == nil {
		return
	}
	m.IssueLatency.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncRetrieval(outcome string) {
	if m == nil {
		return
	}
	m.Retrievals.WithLabelValues(outcome).Inc()
}
