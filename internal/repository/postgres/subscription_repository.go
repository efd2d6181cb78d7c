package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/cassiomorais/settlement/internal/domain/subscription"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const subscriptionColumns = `id, tenant_id, vendor_id, status, payment_status, retry_count, amount, currency,
		        payment_method_id, processor_customer_id, last_retry_at, last_retry_error,
		        last_payment_at, last_payment_reference, cancellation_reason, cancelled_at, created_at, updated_at`

type SubscriptionRepository struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepository(pool *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{pool: pool}
}

func (r *SubscriptionRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

func (r *SubscriptionRepository) GetByID(ctx context.Context, id uuid.UUID) (*subscription.Subscription, error) {
	return r.scanSubscription(r.db(ctx).QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id))
}

// ListFailedPayments returns active subscriptions with a failed payment, oldest update first.
func (r *SubscriptionRepository) ListFailedPayments(ctx context.Context, limit int) ([]*subscription.Subscription, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE status = 'active' AND payment_status = 'failed'
		 ORDER BY updated_at ASC, id
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list failed subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*subscription.Subscription
	for rows.Next() {
		s, err := r.scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// MarkPaid records a successful charge and resets the retry state.
func (r *SubscriptionRepository) MarkPaid(ctx context.Context, id uuid.UUID, at time.Time, reference string) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE subscriptions SET
		   payment_status = 'paid', retry_count = 0, last_retry_error = NULL,
		   last_payment_at = $2, last_payment_reference = $3, updated_at = NOW()
		 WHERE id = $1 AND status = 'active'`, id, at, reference)
	if err != nil {
		return fmt.Errorf("mark subscription paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrSubscriptionNotFound
	}
	return nil
}

// RecordRetryFailure increments retry_count only if it still equals expectedRetryCount.
func (r *SubscriptionRepository) RecordRetryFailure(ctx context.Context, id uuid.UUID, expectedRetryCount int, at time.Time, reason string) (bool, error) {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE subscriptions SET
		   retry_count = $2 + 1, payment_status = 'failed',
		   last_retry_at = $3, last_retry_error = $4, updated_at = NOW()
		 WHERE id = $1 AND status = 'active' AND retry_count = $2`,
		id, expectedRetryCount, at, reason)
	if err != nil {
		return false, fmt.Errorf("record subscription retry failure: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Cancel moves an active subscription to cancelled.
func (r *SubscriptionRepository) Cancel(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error) {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE subscriptions SET
		   status = 'cancelled', cancellation_reason = $2, cancelled_at = $3, updated_at = NOW()
		 WHERE id = $1 AND status = 'active'`, id, reason, at)
	if err != nil {
		return false, fmt.Errorf("cancel subscription: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *SubscriptionRepository) scanSubscription(s scanner) (*subscription.Subscription, error) {
	sub := &subscription.Subscription{}
	var status, paymentStatus, amount string
	err := s.Scan(
		&sub.ID, &sub.TenantID, &sub.VendorID, &status, &paymentStatus, &sub.RetryCount, &amount, &sub.Currency,
		&sub.PaymentMethodID, &sub.ProcessorCustomerID, &sub.LastRetryAt, &sub.LastRetryError,
		&sub.LastPaymentAt, &sub.LastPaymentReference, &sub.CancellationReason, &sub.CancelledAt, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	if sub.AmountCents, err = numericStringToCents(amount); err != nil {
		return nil, fmt.Errorf("parse subscription amount: %w", err)
	}
	sub.Status = subscription.Status(status)
	sub.PaymentStatus = subscription.PaymentStatus(paymentStatus)
	return sub, nil
}
