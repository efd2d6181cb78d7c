package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MaxRetries is the number of failed retry attempts after which a subscription is cancelled.
const MaxRetries = 3

// CancellationMaxRetries is recorded when the retry ceiling is reached.
const CancellationMaxRetries = "payment_failed_max_retries"

type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
)

type PaymentStatus string

const (
	PaymentPaid   PaymentStatus = "paid"
	PaymentFailed PaymentStatus = "failed"
)

// Subscription is the recurring-charge state the retry scheduler works on.
type Subscription struct {
	ID                   uuid.UUID
	TenantID             uuid.UUID
	VendorID             uuid.UUID
	Status               Status
	PaymentStatus        PaymentStatus
	RetryCount           int
	AmountCents          int64
	Currency             string
	PaymentMethodID      *string
	ProcessorCustomerID  *string
	LastRetryAt          *time.Time
	LastRetryError       *string
	LastPaymentAt        *time.Time
	LastPaymentReference *string
	CancellationReason   *string
	CancelledAt          *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// RetriesExhausted reports whether no further charge attempt may be made.
func (s *Subscription) RetriesExhausted() bool {
	return s.RetryCount >= MaxRetries
}

// NeedsRetry is true for an active subscription whose last charge failed.
func (s *Subscription) NeedsRetry() bool {
	return s.Status == StatusActive && s.PaymentStatus == PaymentFailed
}

// Repository defines the interface for subscription persistence
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Subscription, error)

	// ListFailedPayments returns active subscriptions whose payment status is failed
	ListFailedPayments(ctx context.Context, limit int) ([]*Subscription, error)

	// MarkPaid resets the retry state after a successful charge
	MarkPaid(ctx context.Context, id uuid.UUID, at time.Time, reference string) error

	// RecordRetryFailure sets retry_count to expectedRetryCount+1 only if it is still
	// expectedRetryCount, so two overlapping runs cannot both increment.
	RecordRetryFailure(ctx context.Context, id uuid.UUID, expectedRetryCount int, at time.Time, reason string) (bool, error)

	// Cancel moves an active subscription to cancelled and reports whether a row changed
	Cancel(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error)
}
