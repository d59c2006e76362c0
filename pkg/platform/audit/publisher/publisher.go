// Package publisher stamps audit events and writes them to the configured
// sink: the audit table, the outbox, or memory.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	dErrors "trialgate/pkg/domain-errors"
	audit "trialgate/pkg/platform/audit"
	"trialgate/pkg/platform/audit/metrics"
)

// Publisher writes synchronously so an event lands in the caller's
// transaction when the sink is transactional.
type Publisher struct {
	sink    audit.Store
	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithClock stamps events that arrive without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		p.now = now
	}
}

func New(sink audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		sink:   sink,
		now:    time.Now,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Action == "" {
		return dErrors.New(dErrors.CodeInternal, "audit event has no action")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now().UTC().Truncate(time.Microsecond)
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}

	start := time.Now()
	err := p.sink.Append(ctx, event)
	p.metrics.ObserveAppend(string(event.Category), time.Since(start).Seconds(), err)
	if err != nil {
		p.logger.ErrorContext(ctx, "audit event not stored",
			"action", event.Action,
			"category", event.Category,
			"subject", event.Subject,
			"error", err,
		)
		return fmt.Errorf("append %s audit event: %w", event.Action, err)
	}
	return nil
}
