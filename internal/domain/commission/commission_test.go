package commission

import (
	"testing"
	"time"

	domainErrors "github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTxn(t *testing.T, gross, commission, fee int64) *Transaction {
	t.Helper()
	txn, err := NewTransaction(uuid.New(), uuid.New(), uuid.New(), gross, commission, fee, "USD", time.Now())
	require.NoError(t, err)
	return txn
}

func TestNewTransaction(t *testing.T) {
	txn := newTxn(t, 100_00, 15_00, 0)

	assert.NotEqual(t, uuid.Nil, txn.ID)
	assert.Equal(t, StatusPending, txn.Status)
	assert.Equal(t, PayoutUnpaid, txn.PayoutStatus)
	assert.Nil(t, txn.PayoutID)
	assert.NoError(t, txn.CheckPayoutInvariant())
}

func TestNewTransaction_Validation(t *testing.T) {
	tests := []struct {
		name       string
		gross      int64
		commission int64
		fee        int64
		currency   string
		field      string
	}{
		{"negative order amount", -1, 0, 0, "USD", "order_amount"},
		{"negative commission", 100, -1, 0, "USD", "commission_amount"},
		{"negative fee", 100, 0, -1, "USD", "platform_fee_amount"},
		{"bad currency", 100, 0, 0, "US", "currency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTransaction(uuid.New(), uuid.New(), uuid.New(), tt.gross, tt.commission, tt.fee, tt.currency, time.Now())
			var ve *domainErrors.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestTransaction_NetAmount(t *testing.T) {
	assert.Equal(t, int64(85_00), newTxn(t, 100_00, 15_00, 0).NetAmount())
	assert.Equal(t, int64(80_00), newTxn(t, 100_00, 15_00, 5_00).NetAmount())
	assert.Equal(t, int64(-5_00), newTxn(t, 10_00, 15_00, 0).NetAmount())
}

func TestTransaction_IsEligible(t *testing.T) {
	cutoff := time.Now().Add(-7 * 24 * time.Hour)

	txn := newTxn(t, 100, 15, 0)
	txn.TransactionDate = cutoff.Add(-time.Hour)
	assert.False(t, txn.IsEligible(cutoff), "pending transactions are not eligible")

	require.NoError(t, txn.Approve())
	assert.True(t, txn.IsEligible(cutoff))
	assert.True(t, (&Transaction{Status: StatusApproved, PayoutStatus: PayoutUnpaid, TransactionDate: cutoff}).IsEligible(cutoff))

	txn.TransactionDate = cutoff.Add(time.Minute)
	assert.False(t, txn.IsEligible(cutoff), "inside holding period")

	txn.TransactionDate = cutoff.Add(-time.Hour)
	payoutID := uuid.New()
	txn.PayoutStatus = PayoutPending
	txn.PayoutID = &payoutID
	assert.False(t, txn.IsEligible(cutoff), "already claimed")
}

func TestTransaction_Approve_OnlyFromPending(t *testing.T) {
	txn := newTxn(t, 100, 15, 0)
	require.NoError(t, txn.Approve())

	err := txn.Approve()
	assert.ErrorIs(t, err, domainErrors.ErrInvalidStateTransition)
}

func TestTransaction_CheckPayoutInvariant(t *testing.T) {
	payoutID := uuid.New()

	tests := []struct {
		name     string
		status   PayoutStatus
		payoutID *uuid.UUID
		wantErr  bool
	}{
		{"unpaid without payout", PayoutUnpaid, nil, false},
		{"pending with payout", PayoutPending, &payoutID, false},
		{"paid with payout", PayoutPaid, &payoutID, false},
		{"unpaid with payout", PayoutUnpaid, &payoutID, true},
		{"pending without payout", PayoutPending, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := &Transaction{ID: uuid.New(), PayoutStatus: tt.status, PayoutID: tt.payoutID}
			if tt.wantErr {
				assert.Error(t, txn.CheckPayoutInvariant())
			} else {
				assert.NoError(t, txn.CheckPayoutInvariant())
			}
		})
	}
}
