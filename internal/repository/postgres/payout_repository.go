package postgres

import (
	"context"
	"errors"
	"fmt"

	domainErrors "github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/cassiomorais/settlement/internal/domain/payout"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const payoutColumns = `id, tenant_id, vendor_id, store_id, period_start, period_end, transaction_ids, currency,
		        gross_amount, commission_amount, platform_fee_amount, net_amount, payment_method, status,
		        external_reference, failure_reason, processed_at, created_at, updated_at`

// PayoutRepository implements payout.Repository using PostgreSQL.
type PayoutRepository struct {
	pool *pgxpool.Pool
}

// NewPayoutRepository creates a new PayoutRepository.
func NewPayoutRepository(pool *pgxpool.Pool) *PayoutRepository {
	return &PayoutRepository{pool: pool}
}

func (r *PayoutRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// Create inserts a new payout batch.
func (r *PayoutRepository) Create(ctx context.Context, b *payout.Batch) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO payouts
		 (id, tenant_id, vendor_id, store_id, period_start, period_end, transaction_ids, currency,
		  gross_amount, commission_amount, platform_fee_amount, net_amount, payment_method, status,
		  external_reference, failure_reason, processed_at, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		b.ID, b.TenantID, b.VendorID, b.StoreID, b.PeriodStart, b.PeriodEnd, b.TransactionIDs, b.Currency,
		centsToNumericString(b.GrossAmount), centsToNumericString(b.CommissionAmount),
		centsToNumericString(b.PlatformFeeAmount), centsToNumericString(b.NetAmount),
		b.PaymentMethod, string(b.Status), b.ExternalReference, b.FailureReason, b.ProcessedAt, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payout: %w", err)
	}
	return nil
}

// Delete removes a payout batch.
func (r *PayoutRepository) Delete(ctx context.Context, id uuid.UUID) error {
	var from any
	if u.From != "" {
		from = string(u.From)
	}

	tag, err := r.db(ctx).Exec(ctx, `DELETE FROM payouts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete payout: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrPayoutNotFound
	}
	return nil
}

// GetByID retrieves a payout by its ID.
func (r *PayoutRepository) GetByID(ctx context.Context, id uuid.UUID) (*payout.Batch, error) {
	return r.scanBatch(r.db(ctx).QueryRow(ctx,
		`SELECT `+payoutColumns+` FROM payouts WHERE id = $1`, id))
}

// GetByExternalReference retrieves a payout by its processor reference.
func (r *PayoutRepository) GetByExternalReference(ctx context.Context, ref string) (*payout.Batch, error) {
	return r.scanBatch(r.db(ctx).QueryRow(ctx,
		`SELECT `+payoutColumns+` FROM payouts WHERE external_reference = $1`, ref))
}

// List lists payouts with optional filters, newest first.
func (r *PayoutRepository) List(ctx context.Context, f payout.ListFilter) ([]*payout.Batch, error) {
	q := newQuery(`SELECT ` + payoutColumns + ` FROM payouts WHERE 1=1`)
	andOpt(q, "tenant_id = $%d", f.TenantID)
	andOpt(q, "vendor_id = $%d", f.VendorID)
	andOpt(q, "status = $%d", optionalString(f.Status))
	andOpt(q, "created_at >= $%d", f.From)
	andOpt(q, "created_at <= $%d", f.To)
	q.page("created_at DESC, id", f.Limit, f.Offset)

	rows, err := r.db(ctx).Query(ctx, q.String(), q.args...)
	if err != nil {
		return nil, fmt.Errorf("list payouts: %w", err)
	}
	defer rows.Close()

	var batches []*payout.Batch
	for rows.Next() {
		b, err := r.scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// Transition applies u only if the current status is a legal source for u.Status.
// A replay of an already applied transition changes nothing and returns false.
func (r *PayoutRepository) Transition(ctx context.Context, id uuid.UUID, u payout.StatusUpdate) (bool, error) {
	sources := payout.SourcesFor(u.Status)
	if len(sources) == 0 {
		return false, nil
	}
	allowed := make([]string, len(sources))
	for i, s := range sources {
		allowed[i] = string(s)
	}

	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE payouts SET
		   status = $2,
		   external_reference = COALESCE(external_reference, $3),
		   failure_reason = CASE WHEN $2::text = 'failed' THEN $4 ELSE failure_reason END,
		   processed_at = COALESCE(processed_at, $5),
		   updated_at = NOW()
		 WHERE id = $1 AND status = ANY($6)
		   AND ($7::text IS NULL OR status = $7::text)
		   AND NOT (status = 'failed' AND $2::text = 'processing' AND external_reference IS NOT NULL)`,
		id, string(u.Status), u.ExternalReference, u.FailureReason, u.ProcessedAt, allowed, from,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, fmt.Errorf("payout %s: external reference already used: %w", id, err)
		}
		return false, fmt.Errorf("transition payout: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PayoutRepository) scanBatch(s scanner) (*payout.Batch, error) {
	b := &payout.Batch{}
	var (
		gross, commissionAmt, fee, net string
		status                         string
	)
	err := s.Scan(
		&b.ID, &b.TenantID, &b.VendorID, &b.StoreID, &b.PeriodStart, &b.PeriodEnd, &b.TransactionIDs, &b.Currency,
		&gross, &commissionAmt, &fee, &net, &b.PaymentMethod, &status,
		&b.ExternalReference, &b.FailureReason, &b.ProcessedAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrPayoutNotFound
		}
		return nil, fmt.Errorf("scan payout: %w", err)
	}

	for _, f := range []struct {
		dst *int64
		src string
	}{
		{&b.GrossAmount, gross},
		{&b.CommissionAmount, commissionAmt},
		{&b.PlatformFeeAmount, fee},
		{&b.NetAmount, net},
	} {
		if *f.dst, err = numericStringToCents(f.src); err != nil {
			return nil, fmt.Errorf("parse payout amount: %w", err)
		}
	}
	b.Status = payout.Status(status)
	return b, nil
}
