package postgres

import (
	"context"
	"errors"
	"fmt"

	domainErrors "github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/cassiomorais/settlement/internal/domain/vendor"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type VendorRepository struct {
	pool *pgxpool.Pool
}

func NewVendorRepository(pool *pgxpool.Pool) *VendorRepository {
	return &VendorRepository{pool: pool}
}

func (r *VendorRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

func (r *VendorRepository) GetByID(ctx context.Context, id uuid.UUID) (*vendor.Vendor, error) {
	return r.scanVendor(r.db(ctx).QueryRow(ctx,
		`SELECT id, tenant_id, store_id, name, processor_account_id, onboarding_status, created_at, updated_at
		 FROM vendors WHERE id = $1`, id))
}

func (r *VendorRepository) GetByProcessorAccountID(ctx context.Context, accountID string) (*vendor.Vendor, error) {
	return r.scanVendor(r.db(ctx).QueryRow(ctx,
		`SELECT id, tenant_id, store_id, name, processor_account_id, onboarding_status, created_at, updated_at
		 FROM vendors WHERE processor_account_id = $1`, accountID))
}

// ActivateOnboarding flips pending to active. It never moves an active vendor.
func (r *VendorRepository) ActivateOnboarding(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE vendors SET onboarding_status = 'active', updated_at = NOW()
		 WHERE id = $1 AND onboarding_status = 'pending'`, id)
	if err != nil {
		return false, fmt.Errorf("activate vendor onboarding: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *VendorRepository) scanVendor(s scanner) (*vendor.Vendor, error) {
	v := &vendor.Vendor{}
	var status string
	err := s.Scan(&v.ID, &v.TenantID, &v.StoreID, &v.Name, &v.ProcessorAccountID, &status, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrVendorNotFound
		}
		return nil, fmt.Errorf("scan vendor: %w", err)
	}
	v.OnboardingStatus = vendor.OnboardingStatus(status)
	return v, nil
}
