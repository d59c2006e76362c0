package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the outbox table. Append joins the caller's transaction so an
// audit entry commits or rolls back with the domain write it describes.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
	// FetchUnprocessed returns pending entries oldest first.
	FetchUnprocessed(ctx context.Context, limit int) ([]*Entry, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error
	CountPending(ctx context.Context) (int64, error)
	// DeleteProcessedBefore prunes published entries; pending ones are never removed.
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}
