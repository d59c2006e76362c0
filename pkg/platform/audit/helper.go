package audit

import (
	"context"
	"log/slog"
	"time"

	"trialgate/pkg/platform/middleware/admin"
	"trialgate/pkg/requestcontext"
)

// Emitter is the interface for audit event emission.
// Satisfied by publisher.Publisher.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// Logger provides structured audit logging with optional event emission.
// Use this in services to standardize audit logging patterns.
type Logger struct {
	textLogger *slog.Logger
	emitter    Emitter
}

// NewLogger creates an audit logger. Both arguments may be nil.
func NewLogger(textLogger *slog.Logger, emitter Emitter) *Logger {
	return &Logger{
		textLogger: textLogger,
		emitter:    emitter,
	}
}

// Log writes an audit line and emits the event, logging emit failures.
// Recognised attributes: subject, outcome, reason, actor. The actor defaults
// to the admin actor on ctx.
//
// Usage:
//
//	logger.Log(ctx, audit.EventAdminAccessDenied, "subject", "anonymous", "reason", "missing")
func (l *Logger) Log(ctx context.Context, event AuditEvent, attributes ...any) {
	if err := l.Record(ctx, event, attributes...); err != nil && l.textLogger != nil {
		l.textLogger.ErrorContext(ctx, "failed to emit audit event",
			"error", err,
			"event", string(event),
		)
	}
}

// Record is Log for events that must not be lost: call it inside the
// transaction that writes the audited row and return its error.
func (l *Logger) Record(ctx context.Context, event AuditEvent, attributes ...any) error {
	if l == nil {
		return nil
	}
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	l.logToText(ctx, event, attributes)
	return l.emit(ctx, event, requestID, attributes)
}

func (l *Logger) logToText(ctx context.Context, event AuditEvent, attributes []any) {
	if l.textLogger == nil {
		return
	}
	args := append(attributes, "event", string(event), "log_type", "audit")
	l.textLogger.InfoContext(ctx, string(event), args...)
}

func (l *Logger) emit(ctx context.Context, event AuditEvent, requestID string, attributes []any) error {
	if l.emitter == nil {
		return nil
	}
	actor := extractString(attributes, "actor")
	if actor == "" {
		actor = admin.Actor(ctx)
	}
	return l.emitter.Emit(ctx, Event{
		Category:  event.Category(),
		Timestamp: requestcontext.Now(ctx).UTC().Truncate(time.Microsecond),
		Action:    string(event),
		Subject:   extractString(attributes, "subject"),
		Actor:     actor,
		Outcome:   extractString(attributes, "outcome"),
		Reason:    extractString(attributes, "reason"),
		RequestID: requestID,
	})
}

// extractString finds the string value following key in a slog-style attribute list.
func extractString(attributes []any, key string) string {
	for i := 0; i+1 < len(attributes); i += 2 {
		if k, ok := attributes[i].(string); ok && k == key {
			if v, ok := attributes[i+1].(string); ok {
				return v
			}
		}
	}
	return ""
}
