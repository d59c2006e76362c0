// Package httptransport assembles the chi router shared by every module.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trialgate/internal/platform/health"
	"trialgate/internal/platform/metrics"
	"trialgate/internal/platform/middleware"
	adminmw "trialgate/pkg/platform/middleware/admin"
	"trialgate/pkg/requestcontext"
)

const (
	// DefaultRequestTimeout covers the verifier delay with room for storage.
	DefaultRequestTimeout = 30 * time.Second
	// MaxBodyBytes fits a credential document with a wide margin.
	MaxBodyBytes = 1 << 20
)

// Module mounts public routes.
type Module interface {
	Register(r chi.Router)
}

// AdminModule mounts routes that require an active admin access hash.
type AdminModule interface {
	RegisterAdmin(r chi.Router)
}

// Deps carries everything the router wires together.
type Deps struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	Health         *health.Handler
	Authorizer     adminmw.Authorizer
	Modules        []Module
	AdminModules   []AdminModule
	RequestTimeout time.Duration
}

// NewRouter wires all public endpoints with middleware. Admin routes share one
// group behind RequireAccessHash.
func NewRouter(d Deps) http.Handler {
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.RequestID)
	r.Use(requestcontext.TimeMiddleware)
	if d.Metrics != nil {
		r.Use(middleware.Metrics(d.Metrics))
	}
	r.Use(middleware.Logger(d.Logger))

	if d.Health != nil {
		d.Health.Register(r)
	}
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(timeout))
		r.Use(middleware.BodyLimit(MaxBodyBytes))
		r.Use(middleware.ContentTypeJSON)
		for _, m := range d.Modules {
			m.Register(r)
		}
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(timeout))
		r.Use(middleware.BodyLimit(MaxBodyBytes))
		r.Use(middleware.ContentTypeJSON)
		r.Use(adminmw.RequireAccessHash(d.Authorizer, d.Logger))
		for _, m := range d.AdminModules {
			m.RegisterAdmin(r)
		}
	})

	return r
}
