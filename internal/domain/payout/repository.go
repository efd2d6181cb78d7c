package payout

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for payout batch persistence
type Repository interface {
	// Create inserts a new payout batch
	Create(ctx context.Context, batch *Batch) error

	// Delete removes a payout batch; used only as a workflow compensation
	Delete(ctx context.Context, id uuid.UUID) error

	// GetByID retrieves a payout by ID
	GetByID(ctx context.Context, id uuid.UUID) (*Batch, error)

	// GetByExternalReference retrieves a payout by its processor reference
	GetByExternalReference(ctx context.Context, ref string) (*Batch, error)

	// List lists payouts with filters
	List(ctx context.Context, filter ListFilter) ([]*Batch, error)

	// Transition applies update if the stored status is one of SourcesFor(update.Status).
	// It reports whether a row changed.
	Transition(ctx context.Context, id uuid.UUID, update StatusUpdate) (bool, error)
}

// ListFilter defines filters for listing payouts
type ListFilter struct {
	TenantID *uuid.UUID
	VendorID *uuid.UUID
	Status   *Status
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}
