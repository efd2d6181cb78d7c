package payout

import (
	"fmt"
	"time"

	"github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/google/uuid"
)

// Status represents the payout status in the state machine
type Status string

const (
	StatusCreated    Status = "created"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// transitions lists the allowed moves. No status may transition to itself.
var transitions = map[Status][]Status{
	StatusCreated: {
		StatusProcessing,
		StatusCompleted, // manual payout
		StatusFailed,
	},
	StatusProcessing: {
		StatusCompleted,
		StatusFailed,
	},
	StatusFailed: {
		StatusProcessing, // transfer confirmed after a timed-out call, see Allows
		StatusCompleted,
	},
	StatusCompleted: {}, // Terminal state
}

// Batch is a vendor payout built from a frozen set of commission transactions.
type Batch struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	VendorID          uuid.UUID
	StoreID           *uuid.UUID
	PeriodStart       time.Time
	PeriodEnd         time.Time
	TransactionIDs    []uuid.UUID
	Currency          string
	GrossAmount       int64
	CommissionAmount  int64
	PlatformFeeAmount int64
	NetAmount         int64
	PaymentMethod     string
	Status            Status
	ExternalReference *string
	FailureReason     *string
	ProcessedAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Totals are the amounts frozen into a batch at creation time.
type Totals struct {
	GrossAmount       int64
	CommissionAmount  int64
	PlatformFeeAmount int64
}

// Net returns gross minus commission minus platform fee.
func (t Totals) Net() int64 {
	return t.GrossAmount - t.CommissionAmount - t.PlatformFeeAmount
}

// NewBatch creates a payout in status created. The transaction id list is copied so later
// changes by the caller cannot alter the snapshot.
func NewBatch(
	tenantID, vendorID uuid.UUID,
	storeID *uuid.UUID,
	periodStart, periodEnd time.Time,
	transactionIDs []uuid.UUID,
	currency string,
	totals Totals,
	paymentMethod string,
) (*Batch, error) {
	if len(transactionIDs) == 0 {
		return nil, errors.ErrEmptySettlement
	}
	if totals.Net() <= 0 {
		return nil, errors.NewDomainError("non_positive_net",
			fmt.Sprintf("net amount %d is not positive", totals.Net()), errors.ErrNonPositiveNet)
	}
	if len(currency) != 3 {
		return nil, errors.NewValidationError("currency", "must be a 3-letter ISO code")
	}
	if paymentMethod == "" {
		return nil, errors.NewValidationError("payment_method", "cannot be empty")
	}
	if periodEnd.Before(periodStart) {
		return nil, errors.NewValidationError("period_end", "must not be before period_start")
	}

	ids := make([]uuid.UUID, len(transactionIDs))
	copy(ids, transactionIDs)

	now := time.Now()
	return &Batch{
		ID:                uuid.New(),
		TenantID:          tenantID,
		VendorID:          vendorID,
		StoreID:           storeID,
		PeriodStart:       periodStart,
		PeriodEnd:         periodEnd,
		TransactionIDs:    ids,
		Currency:          currency,
		GrossAmount:       totals.GrossAmount,
		CommissionAmount:  totals.CommissionAmount,
		PlatformFeeAmount: totals.PlatformFeeAmount,
		NetAmount:         totals.Net(),
		PaymentMethod:     paymentMethod,
		Status:            StatusCreated,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// CanTransition checks if a payout in status from may move to status to
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// SourcesFor returns every status from which a payout may move to target.
func SourcesFor(target Status) []Status {
	var sources []Status
	for _, from := range []Status{StatusCreated, StatusProcessing, StatusFailed, StatusCompleted} {
		if CanTransition(from, target) {
			sources = append(sources, from)
		}
	}
	return sources
}

// CanTransitionTo checks if the payout can transition to the given status
func (b *Batch) CanTransitionTo(newStatus Status) bool {
	return CanTransition(b.Status, newStatus)
}

// Allows reports whether update may be applied to the payout as it is now. A failed payout
// is reopened only while it carries no processor reference: that failure came from our own
// call and the transfer may still have gone through.
func (b *Batch) Allows(update StatusUpdate) bool {
	if update.From != "" && b.Status != update.From {
		return false
	}
	if !b.CanTransitionTo(update.Status) {
		return false
	}
	if b.Status == StatusFailed && update.Status == StatusProcessing && b.ExternalReference != nil {
		return false
	}
	return true
}

// Apply moves the payout in memory according to update.
func (b *Batch) Apply(update StatusUpdate) error {
	if !b.Allows(update) {
		return errors.NewDomainError(
			"invalid_transition",
			"cannot transition from "+string(b.Status)+" to "+string(update.Status),
			errors.ErrInvalidStateTransition,
		)
	}

	b.Status = update.Status
	b.UpdatedAt = time.Now()
	if update.ExternalReference != nil && b.ExternalReference == nil {
		b.ExternalReference = update.ExternalReference
	}
	if update.Status == StatusFailed {
		b.FailureReason = update.FailureReason
	}
	if update.ProcessedAt != nil && b.ProcessedAt == nil {
		b.ProcessedAt = update.ProcessedAt
	}
	return nil
}

// IsTerminal checks if the payout can never change again
func (b *Batch) IsTerminal() bool {
	return b.Status == StatusCompleted
}

// StatusUpdate is a set-to update applied only when the current status allows it.
//
// From, when set, restricts the update to payouts currently in that status.
// ExternalReference is recorded only if the payout has none yet.
type StatusUpdate struct {
	Status            Status
	From              Status
	ExternalReference *string
	FailureReason     *string
	ProcessedAt       *time.Time
}
