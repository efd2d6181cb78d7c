package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cassiomorais/settlement/internal/domain/commission"
	domainErrors "github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const commissionColumns = `id, tenant_id, vendor_id, order_id, order_amount, commission_amount, platform_fee_amount,
		        currency, transaction_date, status, payout_status, payout_id, created_at, updated_at`

// CommissionRepository implements commission.Repository using PostgreSQL.
type CommissionRepository struct {
	pool *pgxpool.Pool
}

// NewCommissionRepository creates a new CommissionRepository.
func NewCommissionRepository(pool *pgxpool.Pool) *CommissionRepository {
	return &CommissionRepository{pool: pool}
}

func (r *CommissionRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// Create inserts a new commission transaction.
func (r *CommissionRepository) Create(ctx context.Context, t *commission.Transaction) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO commission_transactions
		 (id, tenant_id, vendor_id, order_id, order_amount, commission_amount, platform_fee_amount,
		  currency, transaction_date, status, payout_status, payout_id, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		t.ID, t.TenantID, t.VendorID, t.OrderID,
		centsToNumericString(t.OrderAmount), centsToNumericString(t.CommissionAmount), centsToNumericString(t.PlatformFeeAmount),
		t.Currency, t.TransactionDate, string(t.Status), string(t.PayoutStatus), t.PayoutID, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert commission transaction: %w", err)
	}
	return nil
}

// GetByID retrieves a commission transaction by its ID.
func (r *CommissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*commission.Transaction, error) {
	return r.scanTransaction(r.db(ctx).QueryRow(ctx,
		`SELECT `+commissionColumns+` FROM commission_transactions WHERE id = $1`, id))
}

// List lists commission transactions with optional filters.
func (r *CommissionRepository) List(ctx context.Context, f commission.ListFilter) ([]*commission.Transaction, error) {
	q := newQuery(`SELECT ` + commissionColumns + ` FROM commission_transactions WHERE 1=1`)
	andOpt(q, "tenant_id = $%d", f.TenantID)
	andOpt(q, "vendor_id = $%d", f.VendorID)
	andOpt(q, "status = $%d", optionalString(f.Status))
	andOpt(q, "payout_status = $%d", optionalString(f.PayoutStatus))
	andOpt(q, "payout_id = $%d", f.PayoutID)
	andOpt(q, "transaction_date >= $%d", f.From)
	andOpt(q, "transaction_date <= $%d", f.To)
	q.page("transaction_date DESC, id", f.Limit, f.Offset)

	return r.query(ctx, q)
}

// ListEligible returns approved, unpaid transactions dated on or before f.Until.
func (r *CommissionRepository) ListEligible(ctx context.Context, f commission.EligibilityFilter) ([]*commission.Transaction, error) {
	q := newQuery(`SELECT ` + commissionColumns + ` FROM commission_transactions
		 WHERE status = 'approved' AND payout_status = 'unpaid'`)
	q.and("transaction_date <= $%d", f.Until)
	andOpt(q, "tenant_id = $%d", f.TenantID)
	andOpt(q, "vendor_id = $%d", f.VendorID)
	andOpt(q, "transaction_date >= $%d", f.From)
	q.order("vendor_id, currency, transaction_date, id")
	if f.Limit > 0 {
		q.limit(f.Limit)
	}

	return r.query(ctx, q)
}

// Approve moves a pending transaction to approved.
func (r *CommissionRepository) Approve(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE commission_transactions SET status = 'approved', updated_at = NOW()
		 WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return fmt.Errorf("approve commission transaction: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	t, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return t.Approve()
}

// MarkPendingPayout claims every id for payoutID in a single statement. The update only
// happens if all ids are still approved and unpaid; otherwise no row changes.
func (r *CommissionRepository) MarkPendingPayout(ctx context.Context, ids []uuid.UUID, payoutID uuid.UUID) error {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return domainErrors.ErrEmptySettlement
	}

	tag, err := r.db(ctx).Exec(ctx,
		`WITH candidates AS (
		     SELECT id FROM commission_transactions
		     WHERE id = ANY($1) AND status = 'approved' AND payout_status = 'unpaid'
		     FOR UPDATE
		 ), guard AS (
		     SELECT count(*) AS n FROM candidates
		 )
		 UPDATE commission_transactions c
		 SET payout_status = 'pending_payout', payout_id = $2, updated_at = NOW()
		 FROM guard
		 WHERE c.id IN (SELECT id FROM candidates) AND guard.n = $3`,
		ids, payoutID, len(ids),
	)
	if err != nil {
		return fmt.Errorf("mark transactions pending payout: %w", err)
	}
	if tag.RowsAffected() != int64(len(ids)) {
		return fmt.Errorf("%w: %d of %d transactions claimable",
			domainErrors.ErrTransactionsAlreadyClaimed, tag.RowsAffected(), len(ids))
	}
	return nil
}

// ReleaseFromPayout returns ids claimed by payoutID to unpaid.
func (r *CommissionRepository) ReleaseFromPayout(ctx context.Context, ids []uuid.UUID, payoutID uuid.UUID) (int64, error) {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE commission_transactions
		 SET payout_status = 'unpaid', payout_id = NULL, updated_at = NOW()
		 WHERE id = ANY($1) AND payout_id = $2 AND payout_status = 'pending_payout'`,
		uniqueIDs(ids), payoutID,
	)
	if err != nil {
		return 0, fmt.Errorf("release transactions from payout: %w", err)
	}
	return tag.RowsAffected(), nil
}

// MarkPaid settles every transaction still pending on payoutID.
func (r *CommissionRepository) MarkPaid(ctx context.Context, payoutID uuid.UUID) (int64, error) {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE commission_transactions
		 SET payout_status = 'paid', status = 'settled', updated_at = NOW()
		 WHERE payout_id = $1 AND payout_status = 'pending_payout'`, payoutID)
	if err != nil {
		return 0, fmt.Errorf("mark transactions paid: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *CommissionRepository) query(ctx context.Context, q *query) ([]*commission.Transaction, error) {
	rows, err := r.db(ctx).Query(ctx, q.String(), q.args...)
	if err != nil {
		return nil, fmt.Errorf("list commission transactions: %w", err)
	}
	defer rows.Close()

	var txns []*commission.Transaction
	for rows.Next() {
		t, err := r.scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

func (r *CommissionRepository) scanTransaction(s scanner) (*commission.Transaction, error) {
	t := &commission.Transaction{}
	var (
		orderAmount, commissionAmount, feeAmount string
		status, payoutStatus                     string
	)
	err := s.Scan(
		&t.ID, &t.TenantID, &t.VendorID, &t.OrderID, &orderAmount, &commissionAmount, &feeAmount,
		&t.Currency, &t.TransactionDate, &status, &payoutStatus, &t.PayoutID, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("scan commission transaction: %w", err)
	}

	if t.OrderAmount, err = numericStringToCents(orderAmount); err != nil {
		return nil, fmt.Errorf("parse order amount: %w", err)
	}
	if t.CommissionAmount, err = numericStringToCents(commissionAmount); err != nil {
		return nil, fmt.Errorf("parse commission amount: %w", err)
	}
	if t.PlatformFeeAmount, err = numericStringToCents(feeAmount); err != nil {
		return nil, fmt.Errorf("parse platform fee amount: %w", err)
	}
	t.Status = commission.Status(status)
	t.PayoutStatus = commission.PayoutStatus(payoutStatus)
	return t, nil
}
