package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	adminservice "trialgate/internal/admin/service"
	adminstore "trialgate/internal/admin/store"
	credservice "trialgate/internal/credential/service"
	credstore "trialgate/internal/credential/store"
	issuerservice "trialgate/internal/issuer/service"
	issuerstore "trialgate/internal/issuer/store"
	"trialgate/internal/platform/config"
	"trialgate/internal/platform/database"
	"trialgate/internal/platform/health"
	"trialgate/internal/platform/kafka/consumer"
	"trialgate/internal/platform/kafka/producer"
	"trialgate/internal/platform/redis"
	"trialgate/internal/proof/lock"
	proofservice "trialgate/internal/proof/service"
	proofstore "trialgate/internal/proof/store"
	trialservice "trialgate/internal/trial/service"
	trialstore "trialgate/internal/trial/store"
	"trialgate/migrations"
	"trialgate/pkg/platform/audit"
	auditconsumer "trialgate/pkg/platform/audit/consumer"
	auditmetrics "trialgate/pkg/platform/audit/metrics"
	"trialgate/pkg/platform/audit/outbox"
	outboxmetrics "trialgate/pkg/platform/audit/outbox/metrics"
	outboxpostgres "trialgate/pkg/platform/audit/outbox/store/postgres"
	"trialgate/pkg/platform/audit/outbox/worker"
	"trialgate/pkg/platform/audit/publisher"
	auditmemory "trialgate/pkg/platform/audit/store/memory"
	auditpostgres "trialgate/pkg/platform/audit/store/postgres"
	"trialgate/pkg/platform/tx"
)

// infra holds optional external connections. Nil members mean "not configured".
type infra struct {
	pool  *database.Pool
	redis *redis.Client
}

func openInfra(ctx context.Context, cfg config.Server, reg prometheus.Registerer, log *slog.Logger) (*infra, error) {
	pool, err := database.New(ctx, database.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, database.NewPoolMetrics(reg))
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if pool != nil {
		if err := database.Migrate(ctx, pool.DB(), migrations.FS); err != nil {
			pool.Close() //nolint:errcheck // init failed
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		log.Info("postgres stores enabled")
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	rc, err := redis.New(ctx, cfg.Redis, redis.NewPoolMetrics(reg))
	if err != nil {
		pool.Close() //nolint:errcheck // init failed
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if rc != nil {
		log.Info("redis proof locker enabled")
	}
	return &infra{pool: pool, redis: rc}, nil
}

func (i *infra) registerChecks(h *health.Handler) {
	if i.pool != nil {
		h.RegisterCheck("database", i.pool.Health)
	}
	if i.redis != nil {
		h.RegisterCheck("redis", i.redis.Health)
	}
}

// locker serializes submissions across replicas when Redis is configured.
func (i *infra) locker() lock.Locker {
	if i.redis != nil {
		return lock.NewRedis(i.redis.Client)
	}
	return lock.NewLocal()
}

func (i *infra) recordStats() {
	i.pool.RecordStats()
	if i.redis != nil {
		i.redis.RecordPoolStats()
	}
}

func (i *infra) close(log *slog.Logger) {
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			log.Warn("close redis", "error", err)
		}
	}
	if err := i.pool.Close(); err != nil {
		log.Warn("close database", "error", err)
	}
}

type stores struct {
	tx          tx.Runner
	issuers     issuerservice.Store
	credentials credservice.Store
	trials      trialservice.Store
	proofs      proofservice.Store
	admins      adminservice.Store
}

func newStores(pool *database.Pool) stores {
	if pool == nil {
		return stores{
			tx:          tx.NewInMemory(),
			issuers:     issuerstore.NewInMemory(),
			credentials: credstore.NewInMemory(),
			trials:      trialstore.NewInMemory(),
			proofs:      proofstore.NewInMemory(),
			admins:      adminstore.NewInMemory(),
		}
	}
	db := pool.DB()
	return stores{
		tx:          tx.NewPostgres(db),
		issuers:     issuerstore.NewPostgres(db),
		credentials: credstore.NewPostgres(db),
		trials:      trialstore.NewPostgres(db),
		proofs:      proofstore.NewPostgres(db),
		admins:      adminstore.NewPostgres(db),
	}
}

// auditing routes domain events to one of three sinks: memory, the audit
// table, or the outbox when Kafka is configured.
type auditing struct {
	publisher *publisher.Publisher
	reader    audit.Store
	worker    *worker.Worker
	consumer  *consumer.Consumer
	producer  *producer.Producer
}

func newAuditing(cfg config.Server, pool *database.Pool, reg prometheus.Registerer, log *slog.Logger) (*auditing, error) {
	pubOpts := []publisher.Option{
		publisher.WithLogger(log),
		publisher.WithMetrics(auditmetrics.New(reg)),
	}
	if pool == nil {
		if cfg.Kafka.Enabled() {
			log.Warn("KAFKA_BROKERS ignored: the audit outbox needs DATABASE_URL")
		}
		store := auditmemory.NewInMemoryStore()
		return &auditing{publisher: publisher.New(store, pubOpts...), reader: store}, nil
	}

	table := auditpostgres.New(pool.DB())
	if !cfg.Kafka.Enabled() {
		return &auditing{publisher: publisher.New(table, pubOpts...), reader: table}, nil
	}

	prod, err := producer.New(producer.Config{
		Brokers:         cfg.Kafka.Brokers,
		ClientID:        "trialgate-audit-outbox",
		Acks:            "all",
		Retries:         3,
		DeliveryTimeout: 10 * time.Second,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	cons, err := consumer.New(consumer.Config{
		Brokers:         cfg.Kafka.Brokers,
		GroupID:         cfg.Kafka.ConsumerGroup,
		Topics:          []string{cfg.Kafka.AuditTopic},
		AutoOffsetReset: "earliest",
	}, auditconsumer.NewHandler(table, log), log)
	if err != nil {
		prod.Close() //nolint:errcheck // init failed
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}

	entries := outboxpostgres.New(pool.DB())
	w := worker.New(entries, prod,
		worker.WithTopic(cfg.Kafka.AuditTopic),
		worker.WithTx(tx.NewPostgres(pool.DB())),
		worker.WithMetrics(outboxmetrics.New(reg)),
		worker.WithLogger(log),
	)
	log.Info("audit outbox enabled", "topic", cfg.Kafka.AuditTopic)
	return &auditing{
		publisher: publisher.New(outbox.NewSink(entries, table), pubOpts...),
		reader:    table,
		worker:    w,
		consumer:  cons,
		producer:  prod,
	}, nil
}

func (a *auditing) registerChecks(h *health.Handler) {
	if a.producer != nil {
		h.RegisterCheck("kafka_producer", a.producer.Health)
		h.RegisterCheck("kafka_consumer", a.consumer.Health)
	}
}

func (a *auditing) start(ctx context.Context, g *errgroup.Group, log *slog.Logger) {
	if a.worker == nil {
		return
	}
	a.worker.Start()
	a.consumer.Start()
	g.Go(func() error {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := a.worker.Stop(stopCtx); err != nil {
			log.Warn("outbox worker did not drain", "error", err)
		}
		if err := a.consumer.Stop(stopCtx); err != nil {
			log.Warn("audit consumer did not stop cleanly", "error", err)
		}
		return a.producer.Close()
	})
}

func (a *auditing) recordStats(ctx context.Context, log *slog.Logger) {
	if a.worker == nil {
		return
	}
	if err := a.worker.UpdateMetrics(ctx); err != nil {
		log.Warn("update outbox metrics", "error", err)
	}
}
