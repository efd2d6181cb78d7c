package commission

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for commission transaction persistence
type Repository interface {
	// Create inserts a new commission transaction
	Create(ctx context.Context, txn *Transaction) error

	// GetByID retrieves a transaction by ID
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)

	// List lists transactions with filters
	List(ctx context.Context, filter ListFilter) ([]*Transaction, error)

	// ListEligible returns approved, unpaid transactions inside the filter's date window
	ListEligible(ctx context.Context, filter EligibilityFilter) ([]*Transaction, error)

	// Approve moves a pending transaction to approved
	Approve(ctx context.Context, id uuid.UUID) error

	// MarkPendingPayout attaches every id to the payout. All rows must still be unpaid,
	// otherwise nothing is changed and ErrTransactionsAlreadyClaimed is returned.
	MarkPendingPayout(ctx context.Context, ids []uuid.UUID, payoutID uuid.UUID) error

	// ReleaseFromPayout detaches the ids that are currently attached to payoutID
	ReleaseFromPayout(ctx context.Context, ids []uuid.UUID, payoutID uuid.UUID) (int64, error)

	// MarkPaid marks every transaction attached to payoutID as paid and settled
	MarkPaid(ctx context.Context, payoutID uuid.UUID) (int64, error)
}

// ListFilter defines filters for listing transactions
type ListFilter struct {
	TenantID     *uuid.UUID
	VendorID     *uuid.UUID
	Status       *Status
	PayoutStatus *PayoutStatus
	PayoutID     *uuid.UUID
	From         *time.Time
	To           *time.Time
	Limit        int
	Offset       int
}

// EligibilityFilter selects settlement candidates. Until is inclusive.
type EligibilityFilter struct {
	TenantID *uuid.UUID
	VendorID *uuid.UUID
	From     *time.Time
	Until    time.Time
	Limit    int
}
