// Package worker relays outbox entries to the audit topic.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"trialgate/internal/platform/kafka/producer"
	"trialgate/pkg/platform/audit/outbox"
	"trialgate/pkg/platform/audit/outbox/metrics"
	"trialgate/pkg/platform/tx"
)

const (
	defaultTopic        = "trialgate.audit.events"
	defaultBatchSize    = 100
	defaultPollInterval = 100 * time.Millisecond
	defaultRetention    = 7 * 24 * time.Hour
	defaultDrainTimeout = 10 * time.Second
	pruneInterval       = time.Hour
)

// Producer is satisfied by *producer.Producer.
type Producer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// Worker claims pending entries, publishes them and marks them processed.
// Delivery is at least once; the consumer dedupes on the entry id. When an
// entry fails, later entries for the same subject wait for the next cycle so
// a credential's or proof's events reach the topic in order.
type Worker struct {
	store        outbox.Store
	producer     Producer
	tx           tx.Runner
	topic        string
	batchSize    int
	pollInterval time.Duration
	retention    time.Duration
	drainTimeout time.Duration
	metrics      *metrics.Metrics
	logger       *slog.Logger

	lastPrune time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

type Option func(*Worker)

func WithTopic(topic string) Option {
	return func(w *Worker) {
		w.topic = topic
	}
}

func WithBatchSize(size int) Option {
	return func(w *Worker) {
		w.batchSize = size
	}
}

func WithPollInterval(interval time.Duration) Option {
	return func(w *Worker) {
		w.pollInterval = interval
	}
}

// WithTx claims each batch inside a transaction. With the Postgres store this
// turns FOR UPDATE SKIP LOCKED into a real claim across replicas.
func WithTx(runner tx.Runner) Option {
	return func(w *Worker) {
		w.tx = runner
	}
}

// WithRetention sets how long published entries are kept. Zero disables pruning.
func WithRetention(d time.Duration) Option {
	return func(w *Worker) {
		w.retention = d
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func New(store outbox.Store, prod Producer, opts ...Option) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		store:        store,
		producer:     prod,
		topic:        defaultTopic,
		batchSize:    defaultBatchSize,
		pollInterval: defaultPollInterval,
		retention:    defaultRetention,
		drainTimeout: defaultDrainTimeout,
		logger:       slog.New(slog.DiscardHandler),
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
}

func (w *Worker) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.ctx.Done():
			w.drain()
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

func (w *Worker) poll() {
	if _, err := w.processBatch(w.ctx); err != nil {
		w.logger.Error("outbox batch failed", "error", err)
		w.metrics.IncPublishFailures()
	}
	w.pruneIfDue(w.ctx, time.Now())
}

// processBatch returns how many entries it published.
func (w *Worker) processBatch(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() { w.metrics.ObserveBatch(time.Since(start).Seconds()) }()

	published := 0
	err := w.inTx(ctx, func(ctx context.Context) error {
		entries, err := w.store.FetchUnprocessed(ctx, w.batchSize)
		if err != nil {
			return fmt.Errorf("fetch outbox entries: %w", err)
		}
		blocked := make(map[string]bool)
		for _, entry := range entries {
			if entry.Subject != "" && blocked[entry.Subject] {
				continue
			}
			if err := w.publish(ctx, entry); err != nil {
				w.logger.Warn("outbox publish failed, will retry",
					"id", entry.ID,
					"action", entry.Action,
					"error", err,
				)
				w.metrics.IncPublishFailures()
				blocked[entry.Subject] = true
				continue
			}
			if err := w.store.MarkProcessed(ctx, entry.ID, time.Now().UTC()); err != nil {
				return fmt.Errorf("mark outbox entry %s processed: %w", entry.ID, err)
			}
			w.metrics.IncPublished(string(entry.Category))
			published++
		}
		return nil
	})
	return published, err
}

func (w *Worker) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if w.tx == nil {
		return fn(ctx)
	}
	return w.tx.RunInTx(ctx, fn)
}

func (w *Worker) publish(ctx context.Context, entry *outbox.Entry) error {
	start := time.Now()
	err := w.producer.Produce(ctx, &producer.Message{
		Topic: w.topic,
		Key:   []byte(entry.ID.String()),
		Value: entry.Payload,
		Headers: map[string]string{
			"category": string(entry.Category),
			"subject":  entry.Subject,
			"action":   entry.Action,
		},
	})
	if err != nil {
		return err
	}
	w.metrics.ObservePublish(time.Since(start).Seconds())
	return nil
}

func (w *Worker) pruneIfDue(ctx context.Context, now time.Time) {
	if w.retention <= 0 || now.Sub(w.lastPrune) < pruneInterval {
		return
	}
	w.lastPrune = now
	n, err := w.store.DeleteProcessedBefore(ctx, now.Add(-w.retention))
	if err != nil {
		w.logger.Warn("outbox prune failed", "error", err)
		return
	}
	w.metrics.AddPruned(n)
}

// drain publishes what is left after Stop, giving up once a cycle makes no
// progress or drainTimeout passes.
func (w *Worker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), w.drainTimeout)
	defer cancel()
	for {
		published, err := w.processBatch(ctx)
		if err != nil {
			w.logger.Error("outbox drain failed", "error", err)
			return
		}
		if published == 0 {
			return
		}
	}
}

// Stop cancels polling, drains, and waits up to ctx.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpdateMetrics refreshes the pending gauge; cmd/server calls it on a ticker.
func (w *Worker) UpdateMetrics(ctx context.Context) error {
	count, err := w.store.CountPending(ctx)
	if err != nil {
		return err
	}
	w.metrics.SetPendingDepth(count)
	return nil
}
