package outbox

import (
	"time"

	"github.com/google/uuid"

	audit "trialgate/pkg/platform/audit"
)

// Entry is an audit event waiting to be published. ID doubles as the Kafka
// message key and as the audit_events primary key on the consumer side, so a
// redelivered entry is stored once.
type Entry struct {
	ID          uuid.UUID
	Category    audit.EventCategory
	Subject     string
	Action      string
	Payload     []byte
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

func (e *Entry) IsPending() bool {
	return e.ProcessedAt == nil
}

// NewEntry wraps an encoded audit event.
func NewEntry(event audit.Event, payload []byte, now time.Time) *Entry {
	return &Entry{
		ID:        uuid.New(),
		Category:  event.Category,
		Subject:   event.Subject,
		Action:    event.Action,
		Payload:   payload,
		CreatedAt: now,
	}
}
