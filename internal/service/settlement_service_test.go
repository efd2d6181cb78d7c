package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cassiomorais/settlement/internal/domain/commission"
	domainErrors "github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/cassiomorais/settlement/internal/domain/outbox"
	"github.com/cassiomorais/settlement/internal/domain/payout"
	"github.com/cassiomorais/settlement/internal/domain/vendor"
	"github.com/cassiomorais/settlement/internal/providers"
	"github.com/cassiomorais/settlement/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSettlement_IsolatesVendors(t *testing.T) {
	env := newTestEnv()

	ok, _ := seedVendor(env, true, 2)
	manual, _ := seedVendor(env, false, 1)
	transferFails, _ := seedVendor(env, true, 1)

	negative := testutil.NewTestVendor(env.tenantID)
	env.vendors.AddVendor(negative)
	env.commissions.AddTransaction(testutil.NewApprovedTransaction(negative, 10_00, 12_00, 0, "USD", daysAgo(9)))

	// Vendor row missing: the unit fails but the run continues.
	orphan := testutil.NewTestVendor(env.tenantID)
	env.commissions.AddTransaction(testutil.NewApprovedTransaction(orphan, 10_00, 1_00, 0, "USD", daysAgo(9)))

	env.gateway.CreateTransferFunc = func(ctx context.Context, req providers.TransferRequest) (*providers.Transfer, error) {
		if req.Metadata["vendor_id"] == transferFails.ID.String() {
			return nil, domainErrors.ErrProviderTimeout
		}
		return &providers.Transfer{ID: "tr_" + req.Metadata["vendor_id"][:8]}, nil
	}

	report, err := env.service.RunSettlement(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, JobSettlement, report.Job)
	assert.Equal(t, 5, report.Total)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, 1, report.Skipped)

	statuses := map[uuid.UUID]payout.Status{}
	for _, p := range env.payouts.All() {
		statuses[p.VendorID] = p.Status
	}
	assert.Equal(t, map[uuid.UUID]payout.Status{
		ok.ID:            payout.StatusProcessing,
		manual.ID:        payout.StatusCreated,
		transferFails.ID: payout.StatusFailed,
	}, statuses)
}

func TestRunSettlement_SecondRunFindsNothing(t *testing.T) {
	env := newTestEnv()
	seedVendor(env, true, 3)

	first, err := env.service.RunSettlement(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Succeeded)

	second, err := env.service.RunSettlement(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, second.Total)
	assert.Equal(t, 1, env.payouts.Count())
	assert.Len(t, env.gateway.Transfers(), 1)
}

func TestRunSettlement_ConcurrentClaimIsSkipped(t *testing.T) {
	env := newTestEnv()
	seedVendor(env, true, 1)
	env.commissions.MarkPendingPayoutFunc = func(ctx context.Context, ids []uuid.UUID, payoutID uuid.UUID) error {
		return domainErrors.ErrTransactionsAlreadyClaimed
	}

	report, err := env.service.RunSettlement(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Zero(t, env.payouts.Count())
}

func TestRunSettlement_SelectionError(t *testing.T) {
	env := newTestEnv()
	env.commissions.ListEligibleFunc = func(ctx context.Context, filter commission.EligibilityFilter) ([]*commission.Transaction, error) {
		return nil, errors.New("db down")
	}

	_, err := env.service.RunSettlement(context.Background(), time.Now().UTC())
	assert.Error(t, err)
}

func TestDispatchPeriod(t *testing.T) {
	env := newTestEnv()
	v, txns := seedVendor(env, false, 2)

	results, err := env.service.DispatchPeriod(context.Background(), PeriodPayoutRequest{
		VendorID:    v.ID,
		PeriodStart: daysAgo(30),
		PeriodEnd:   time.Now().UTC(),
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, DefaultPaymentMethod, results[0].Payout.PaymentMethod)
	assert.ElementsMatch(t, []uuid.UUID{txns[0].ID, txns[1].ID}, results[0].Payout.TransactionIDs)

	_, err = env.service.DispatchPeriod(context.Background(), PeriodPayoutRequest{
		VendorID:    v.ID,
		PeriodStart: daysAgo(30),
		PeriodEnd:   time.Now().UTC(),
	})
	assert.ErrorIs(t, err, domainErrors.ErrEmptySettlement)
}

func TestDispatchPeriod_Validation(t *testing.T) {
	env := newTestEnv()

	_, err := env.service.DispatchPeriod(context.Background(), PeriodPayoutRequest{})
	assert.ErrorIs(t, err, domainErrors.ErrValidationFailed)

	_, err = env.service.DispatchPeriod(context.Background(), PeriodPayoutRequest{
		VendorID:    uuid.New(),
		PeriodStart: time.Now(),
		PeriodEnd:   daysAgo(1),
	})
	assert.ErrorIs(t, err, domainErrors.ErrValidationFailed)
}

func TestDispatchPeriod_NonPositiveNet(t *testing.T) {
	env := newTestEnv()
	v := testutil.NewTestVendor(env.tenantID)
	env.vendors.AddVendor(v)
	env.commissions.AddTransaction(testutil.NewApprovedTransaction(v, 10_00, 10_00, 0, "USD", daysAgo(9)))

	_, err := env.service.DispatchPeriod(context.Background(), PeriodPayoutRequest{
		VendorID:    v.ID,
		PeriodStart: daysAgo(30),
		PeriodEnd:   time.Now().UTC(),
	})
	assert.ErrorIs(t, err, domainErrors.ErrNonPositiveNet)
	assert.Zero(t, env.payouts.Count())
}

func TestCompletePayout_Manual(t *testing.T) {
	env := newTestEnv()
	v, txns := seedVendor(env, false, 2)
	results, err := env.service.DispatchPeriod(context.Background(), PeriodPayoutRequest{
		VendorID:    v.ID,
		PeriodStart: daysAgo(30),
		PeriodEnd:   time.Now().UTC(),
	})
	require.NoError(t, err)
	id := results[0].Payout.ID

	p, err := env.service.CompletePayout(context.Background(), id, "bank-ref-42")
	require.NoError(t, err)
	assert.Equal(t, payout.StatusCompleted, p.Status)
	assert.Equal(t, "bank-ref-42", *p.ExternalReference)
	assert.NotNil(t, p.ProcessedAt)

	for _, txn := range txns {
		assert.Equal(t, commission.PayoutPaid, env.commissions.Transaction(txn.ID).PayoutStatus)
	}
	require.Len(t, env.notifier.Named(outbox.EventPayoutCompleted), 1)

	again, err := env.service.CompletePayout(context.Background(), id, "other-ref")
	require.NoError(t, err)
	assert.Equal(t, "bank-ref-42", *again.ExternalReference)
	assert.Len(t, env.notifier.Named(outbox.EventPayoutCompleted), 1)
}

func TestCompletePayout_Errors(t *testing.T) {
	env := newTestEnv()

	_, err := env.service.CompletePayout(context.Background(), uuid.New(), "")
	assert.ErrorIs(t, err, domainErrors.ErrPayoutNotFound)

	v := testutil.NewManualVendor(env.tenantID)
	p := testutil.NewTestPayout(v, payout.StatusCreated)
	env.payouts.AddPayout(p)
	env.payouts.TransitionFunc = func(ctx context.Context, id uuid.UUID, update payout.StatusUpdate) (bool, error) {
		return false, nil
	}

	_, err = env.service.CompletePayout(context.Background(), p.ID, "")
	assert.ErrorIs(t, err, domainErrors.ErrInvalidStateTransition)
	assert.Empty(t, env.notifier.Events())
}

func TestListPayouts(t *testing.T) {
	env := newTestEnv()
	v := testutil.NewTestVendor(env.tenantID)
	env.payouts.AddPayout(testutil.NewTestPayout(v, payout.StatusCreated))
	env.payouts.AddPayout(testutil.NewTestPayout(v, payout.StatusFailed))
	env.payouts.AddPayout(testutil.NewTestPayout(&vendor.Vendor{ID: uuid.New(), TenantID: env.tenantID}, payout.StatusFailed))

	failed := payout.StatusFailed
	list, err := env.service.ListPayouts(context.Background(), payout.ListFilter{VendorID: &v.ID, Status: &failed})
	require.NoError(t, err)
	require.Len(t, list, 1)

	got, err := env.service.GetPayout(context.Background(), list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, payout.StatusFailed, got.Status)
}
