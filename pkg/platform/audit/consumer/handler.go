package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"trialgate/internal/platform/kafka/consumer"
	audit "trialgate/pkg/platform/audit"
)

// EventStore is the idempotent sink the consumer lands events in.
// Satisfied by *auditpostgres.Store.
type EventStore interface {
	AppendWithID(ctx context.Context, eventID uuid.UUID, event audit.Event) error
}

// Handler processes audit events from Kafka and writes them to the audit table.
// It implements consumer.Handler for use with the Kafka consumer.
type Handler struct {
	store  EventStore
	logger *slog.Logger
}

// NewHandler creates a new audit event consumer handler.
func NewHandler(store EventStore, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger,
	}
}

// Handle stores a single audit event, keyed by the outbox entry ID carried in
// the message key so redeliveries are no-ops.
func (h *Handler) Handle(ctx context.Context, msg *consumer.Message) error {
	eventID, err := uuid.Parse(string(msg.Key))
	if err != nil {
		h.logger.Error("failed to parse event ID from message key",
			"key", string(msg.Key),
			"error", err,
		)
		// malformed messages are committed so they do not block the partition
		return nil
	}

	var event audit.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.logger.Error("failed to unmarshal audit payload",
			"event_id", eventID,
			"error", err,
		)
		return nil
	}

	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = msg.Timestamp
	}

	h.logger.Debug("processing audit event",
		"event_id", eventID,
		"action", event.Action,
		"subject", event.Subject,
	)

	if err := h.store.AppendWithID(ctx, eventID, event); err != nil {
		h.logger.Error("failed to store audit event",
			"event_id", eventID,
			"action", event.Action,
			"error", err,
		)
		return fmt.Errorf("store audit event: %w", err)
	}
	return nil
}
