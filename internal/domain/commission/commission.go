package commission

import (
	"fmt"
	"time"

	"github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/google/uuid"
)

// Status is the review status of a commission transaction.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusSettled  Status = "settled"
)

// PayoutStatus tracks whether a transaction has been attached to a payout.
type PayoutStatus string

const (
	PayoutUnpaid  PayoutStatus = "unpaid"
	PayoutPending PayoutStatus = "pending_payout"
	PayoutPaid    PayoutStatus = "paid"
)

// Transaction is the commission record created when an order is finalized.
// Amounts are in the smallest currency unit.
type Transaction struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	VendorID          uuid.UUID
	OrderID           uuid.UUID
	OrderAmount       int64
	CommissionAmount  int64
	PlatformFeeAmount int64
	Currency          string
	TransactionDate   time.Time
	Status            Status
	PayoutStatus      PayoutStatus
	PayoutID          *uuid.UUID
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewTransaction creates a pending, unpaid commission transaction.
func NewTransaction(
	tenantID, vendorID, orderID uuid.UUID,
	orderAmount, commissionAmount, platformFeeAmount int64,
	currency string,
	transactionDate time.Time,
) (*Transaction, error) {
	if orderAmount < 0 {
		return nil, errors.NewValidationError("order_amount", "must not be negative")
	}
	if commissionAmount < 0 {
		return nil, errors.NewValidationError("commission_amount", "must not be negative")
	}
	if platformFeeAmount < 0 {
		return nil, errors.NewValidationError("platform_fee_amount", "must not be negative")
	}
	if len(currency) != 3 {
		return nil, errors.NewValidationError("currency", "must be a 3-letter ISO code")
	}

	now := time.Now()
	return &Transaction{
		ID:                uuid.New(),
		TenantID:          tenantID,
		VendorID:          vendorID,
		OrderID:           orderID,
		OrderAmount:       orderAmount,
		CommissionAmount:  commissionAmount,
		PlatformFeeAmount: platformFeeAmount,
		Currency:          currency,
		TransactionDate:   transactionDate,
		Status:            StatusPending,
		PayoutStatus:      PayoutUnpaid,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// NetAmount is what the vendor is owed for this transaction.
func (t *Transaction) NetAmount() int64 {
	return t.OrderAmount - t.CommissionAmount - t.PlatformFeeAmount
}

// IsEligible reports whether the transaction can be settled with the given cutoff.
func (t *Transaction) IsEligible(cutoff time.Time) bool {
	return t.Status == StatusApproved &&
		t.PayoutStatus == PayoutUnpaid &&
		!t.TransactionDate.After(cutoff)
}

// Approve moves a pending transaction to approved.
func (t *Transaction) Approve() error {
	if t.Status != StatusPending {
		return errors.NewDomainError(
			"invalid_transition",
			"cannot approve transaction in status "+string(t.Status),
			errors.ErrInvalidStateTransition,
		)
	}
	t.Status = StatusApproved
	t.UpdatedAt = time.Now()
	return nil
}

// CheckPayoutInvariant verifies that PayoutID is set iff the transaction is attached to a payout.
func (t *Transaction) CheckPayoutInvariant() error {
	attached := t.PayoutStatus != PayoutUnpaid
	if attached != (t.PayoutID != nil) {
		return fmt.Errorf("transaction %s: payout_status=%s with payout_id set=%t", t.ID, t.PayoutStatus, t.PayoutID != nil)
	}
	return nil
}
