package providers

import (
	"context"
	"testing"
	"time"

	domainErrors "github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMockProcessor(t *testing.T) {
	processor := NewMockProcessor("test")

	assert.NotNil(t, processor)
	assert.Equal(t, "test", processor.Name())
}

func TestMockProcessor_CreateTransfer_Success(t *testing.T) {
	processor := NewMockProcessor("test", WithLatency(0))

	tr, err := processor.CreateTransfer(context.Background(), TransferRequest{
		DestinationAccount: "acct_1",
		AmountCents:        17000,
		Currency:           "USD",
		IdempotencyKey:     "payout-1",
	})
	require.NoError(t, err)
	assert.Contains(t, tr.ID, "tr_")
}

func TestMockProcessor_CreateTransfer_Idempotent(t *testing.T) {
	processor := NewMockProcessor("test", WithLatency(0))
	req := TransferRequest{DestinationAccount: "acct_1", AmountCents: 100, Currency: "USD", IdempotencyKey: "payout-1"}

	first, err := processor.CreateTransfer(context.Background(), req)
	require.NoError(t, err)
	second, err := processor.CreateTransfer(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
}

func TestMockProcessor_CreateTransfer_Failure(t *testing.T) {
	processor := NewMockProcessor("test", WithLatency(0), WithFailureRate(1.0))

	_, err := processor.CreateTransfer(context.Background(), TransferRequest{
		DestinationAccount: "acct_1", AmountCents: 100, Currency: "USD", IdempotencyKey: "k",
	})
	assert.ErrorIs(t, err, domainErrors.ErrProviderRejected)
}

func TestMockProcessor_RetrievePaymentMethod(t *testing.T) {
	processor := NewMockProcessor("test", WithLatency(0))

	pm, err := processor.RetrievePaymentMethod(context.Background(), "pm_1")
	require.NoError(t, err)
	assert.Equal(t, "pm_1", pm.ID)

	_, err = processor.RetrievePaymentMethod(context.Background(), "")
	assert.ErrorIs(t, err, domainErrors.ErrNoPaymentMethod)
}

func TestMockProcessor_CreatePaymentIntent_Failure(t *testing.T) {
	processor := NewMockProcessor("test", WithLatency(0), WithFailureRate(1.0))

	intent, err := processor.CreatePaymentIntent(context.Background(), PaymentIntentRequest{
		AmountCents: 1000, Currency: "USD", CustomerID: "cus_1", PaymentMethodID: "pm_1", OffSession: true,
	})
	assert.ErrorIs(t, err, domainErrors.ErrProviderRejected)
	require.NotNil(t, intent)
	assert.Equal(t, IntentFailed, intent.Status)
	assert.Contains(t, intent.ErrorMessage, "simulated")
}

func TestMockProcessor_Timeout(t *testing.T) {
	processor := NewMockProcessor("test", WithLatency(0), WithTimeoutRate(1.0))

	_, err := processor.RetrievePaymentMethod(context.Background(), "pm_1")
	assert.ErrorIs(t, err, domainErrors.ErrProviderTimeout)
}

func TestMockProcessor_Latency(t *testing.T) {
	latency := 50 * time.Millisecond
	processor := NewMockProcessor("test", WithLatency(latency))

	start := time.Now()
	_, err := processor.RetrievePaymentMethod(context.Background(), "pm_1")
	duration := time.Since(start)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, duration, latency)
}

func TestMockProcessor_ContextCancelled(t *testing.T) {
	processor := NewMockProcessor("test", WithLatency(time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := processor.RetrievePaymentMethod(ctx, "pm_1")
	assert.ErrorIs(t, err, context.Canceled)
}
