package testutil

import (
	"time"

	"github.com/cassiomorais/settlement/internal/domain/commission"
	"github.com/cassiomorais/settlement/internal/domain/payout"
	"github.com/cassiomorais/settlement/internal/domain/subscription"
	"github.com/cassiomorais/settlement/internal/domain/vendor"
	"github.com/google/uuid"
)

// NewTestVendor returns an onboarded vendor with a connected processor account.
func NewTestVendor(tenantID uuid.UUID) *vendor.Vendor {
	now := time.Now()
	account := "acct_" + uuid.New().String()[:8]
	return &vendor.Vendor{
		ID:                 uuid.New(),
		TenantID:           tenantID,
		Name:               "Test Vendor",
		ProcessorAccountID: &account,
		OnboardingStatus:   vendor.OnboardingActive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// NewManualVendor returns a vendor without a verified payout destination.
func NewManualVendor(tenantID uuid.UUID) *vendor.Vendor {
	v := NewTestVendor(tenantID)
	v.ProcessorAccountID = nil
	v.OnboardingStatus = vendor.OnboardingPending
	return v
}

// NewApprovedTransaction returns an approved, unpaid commission transaction dated at date.
func NewApprovedTransaction(v *vendor.Vendor, orderCents, commissionCents, feeCents int64, currency string, date time.Time) *commission.Transaction {
	now := time.Now()
	return &commission.Transaction{
		ID:                uuid.New(),
		TenantID:          v.TenantID,
		VendorID:          v.ID,
		OrderID:           uuid.New(),
		OrderAmount:       orderCents,
		CommissionAmount:  commissionCents,
		PlatformFeeAmount: feeCents,
		Currency:          currency,
		TransactionDate:   date,
		Status:            commission.StatusApproved,
		PayoutStatus:      commission.PayoutUnpaid,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// NewTestPayout returns a payout in the given status for the given transactions.
func NewTestPayout(v *vendor.Vendor, status payout.Status, txnIDs ...uuid.UUID) *payout.Batch {
	now := time.Now()
	return &payout.Batch{
		ID:               uuid.New(),
		TenantID:         v.TenantID,
		VendorID:         v.ID,
		PeriodStart:      now.Add(-30 * 24 * time.Hour),
		PeriodEnd:        now.Add(-7 * 24 * time.Hour),
		TransactionIDs:   txnIDs,
		Currency:         "USD",
		GrossAmount:      100_00,
		CommissionAmount: 15_00,
		NetAmount:        85_00,
		PaymentMethod:    "transfer",
		Status:           status,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// NewFailedSubscription returns an active subscription whose last charge failed.
func NewFailedSubscription(retryCount int) *subscription.Subscription {
	now := time.Now()
	pm := "pm_" + uuid.New().String()[:8]
	cus := "cus_" + uuid.New().String()[:8]
	return &subscription.Subscription{
		ID:                  uuid.New(),
		TenantID:            uuid.New(),
		VendorID:            uuid.New(),
		Status:              subscription.StatusActive,
		PaymentStatus:       subscription.PaymentFailed,
		RetryCount:          retryCount,
		AmountCents:         29_99,
		Currency:            "USD",
		PaymentMethodID:     &pm,
		ProcessorCustomerID: &cus,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

func UUIDPtr(id uuid.UUID) *uuid.UUID {
	return &id
}

func StringPtr(s string) *string {
	return &s
}
