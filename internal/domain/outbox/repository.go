package outbox

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Insert creates a new outbox entry (typically inside a transaction)
	Insert(ctx context.Context, entry *Entry) error

	// GetPending returns pending outbox entries up to the given limit.
	// Rows are locked with SKIP LOCKED so concurrent relays do not publish the same entry.
	GetPending(ctx context.Context, limit int) ([]*Entry, error)

	// MarkPublished marks an outbox entry as published
	MarkPublished(ctx context.Context, id uuid.UUID) error

	// MarkFailed records reason, increments the retry count and parks the entry once its
	// retries are used up
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error

	// CountPending returns the relay backlog
	CountPending(ctx context.Context) (int64, error)
}
