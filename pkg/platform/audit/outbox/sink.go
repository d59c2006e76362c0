package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	audit "trialgate/pkg/platform/audit"
)

// Sink is an audit.Store that writes events into the outbox instead of the
// audit table. The worker publishes them to Kafka and the audit consumer
// lands them in audit_events. Appends join the caller's transaction when one
// is on the context.
type Sink struct {
	store  Store
	recent audit.Store
}

// NewSink wraps an outbox store. recent answers ListRecent (the audit table
// the consumer populates); it may be nil.
func NewSink(store Store, recent audit.Store) *Sink {
	return &Sink{store: store, recent: recent}
}

func (s *Sink) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	at := event.Timestamp
	if at.IsZero() {
		at = time.Now().UTC()
	}
	entry := NewEntry(event, payload, at)
	return s.store.Append(ctx, entry)
}

func (s *Sink) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	if s.recent == nil {
		return nil, nil
	}
	return s.recent.ListRecent(ctx, limit)
}
