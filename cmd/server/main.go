package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	adminhandler "trialgate/internal/admin/handler"
	adminservice "trialgate/internal/admin/service"
	credhandler "trialgate/internal/credential/handler"
	credmetrics "trialgate/internal/credential/metrics"
	credservice "trialgate/internal/credential/service"
	issuerhandler "trialgate/internal/issuer/handler"
	issuerservice "trialgate/internal/issuer/service"
	"trialgate/internal/platform/config"
	"trialgate/internal/platform/health"
	"trialgate/internal/platform/logger"
	"trialgate/internal/platform/metrics"
	"trialgate/internal/platform/tracing"
	proofhandler "trialgate/internal/proof/handler"
	proofmetrics "trialgate/internal/proof/metrics"
	proofservice "trialgate/internal/proof/service"
	"trialgate/internal/proof/verifier"
	httptransport "trialgate/internal/transport/http"
	trialhandler "trialgate/internal/trial/handler"
	trialservice "trialgate/internal/trial/service"
)

const (
	shutdownTimeout   = 10 * time.Second
	statsInterval     = 15 * time.Second
	readHeaderTimeout = 5 * time.Second
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	log.Info("initializing trialgate",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"database", cfg.Database.URL != "",
		"redis", cfg.Redis.URL != "",
		"kafka", cfg.Kafka.Enabled(),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	healthHandler := health.New(cfg.Environment)

	infra, err := openInfra(ctx, cfg, reg, log)
	if err != nil {
		return err
	}
	defer infra.close(log)
	infra.registerChecks(healthHandler)

	router, auditing, err := newApp(cfg, infra, reg, healthHandler, log)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	auditing.start(gctx, g, log)
	g.Go(func() error {
		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				infra.recordStats()
				auditing.recordStats(gctx, log)
			}
		}
	})

	return g.Wait()
}

// newApp builds every service on top of infra and returns the routed handler
// together with the audit pipeline the caller must start.
func newApp(cfg config.Server, infra *infra, reg *prometheus.Registry, healthHandler *health.Handler, log *slog.Logger) (http.Handler, *auditing, error) {
	st := newStores(infra.pool)
	auditing, err := newAuditing(cfg, infra.pool, reg, log)
	if err != nil {
		return nil, nil, err
	}
	auditing.registerChecks(healthHandler)

	issuers := issuerservice.New(st.issuers,
		issuerservice.WithLogger(log),
		issuerservice.WithAuditPublisher(auditing.publisher),
		issuerservice.WithTx(st.tx),
	)
	credentials := credservice.New(st.credentials, issuers,
		credservice.WithLogger(log),
		credservice.WithAuditPublisher(auditing.publisher),
		credservice.WithTx(st.tx),
		credservice.WithMetrics(credmetrics.New(reg)),
	)
	trials := trialservice.New(st.trials,
		trialservice.WithLogger(log),
		trialservice.WithAuditPublisher(auditing.publisher),
		trialservice.WithTx(st.tx),
	)
	pm := proofmetrics.New(reg)
	proofs := proofservice.New(st.proofs, credentials, issuers, trials,
		proofservice.WithLogger(log),
		proofservice.WithAuditPublisher(auditing.publisher),
		proofservice.WithTx(st.tx),
		proofservice.WithLocker(infra.locker()),
		proofservice.WithMetrics(pm),
		proofservice.WithVerifier(verifier.NewPlaceholder(
			verifier.WithDelay(cfg.VerifierDelay),
			verifier.WithTracer(tracing.NewOTel(nil)),
			verifier.WithMetrics(pm),
		)),
	)
	admins := adminservice.New(st.admins,
		adminservice.WithLogger(log),
		adminservice.WithAuditPublisher(auditing.publisher),
		adminservice.WithAuditReader(auditing.reader),
		adminservice.WithTx(st.tx),
	)

	issuerH := issuerhandler.New(issuers, log)
	credentialH := credhandler.New(credentials, log)
	trialH := trialhandler.New(trials, log)
	proofH := proofhandler.New(proofs, credentials, log)
	adminH := adminhandler.New(admins, log)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:       log,
		Metrics:      metrics.New(reg),
		Gatherer:     reg,
		Health:       healthHandler,
		Authorizer:   admins,
		Modules:      []httptransport.Module{issuerH, credentialH, trialH, proofH, adminH},
		AdminModules: []httptransport.AdminModule{issuerH, credentialH, trialH, adminH},
	})
	return router, auditing, nil
}
