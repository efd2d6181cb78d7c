package providers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domainErrors "github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/cassiomorais/settlement/pkg/retry"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProcessor struct {
	mu                 sync.Mutex
	transferCalls      []TransferRequest
	CreateTransferFunc func(ctx context.Context, req TransferRequest) (*Transfer, error)
}

func (s *stubProcessor) Name() string { return "stub" }

func (s *stubProcessor) CreateTransfer(ctx context.Context, req TransferRequest) (*Transfer, error) {
	s.mu.Lock()
	s.transferCalls = append(s.transferCalls, req)
	s.mu.Unlock()
	return s.CreateTransferFunc(ctx, req)
}

func (s *stubProcessor) RetrievePaymentMethod(ctx context.Context, id string) (*PaymentMethod, error) {
	return &PaymentMethod{ID: id}, nil
}

func (s *stubProcessor) CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (*PaymentIntent, error) {
	return &PaymentIntent{ID: "pi_1", Status: IntentSucceeded}, nil
}

func testGatewayConfig(attempts uint) GatewayConfig {
	cfg := DefaultGatewayConfig()
	cfg.Timeout = 50 * time.Millisecond
	cfg.Retry = retry.Config{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
	return cfg
}

func transferReq() TransferRequest {
	return TransferRequest{DestinationAccount: "acct_1", AmountCents: 100, Currency: "USD", IdempotencyKey: "payout-1"}
}

func TestGateway_NotConfigured(t *testing.T) {
	g := NewGateway(nil, DefaultGatewayConfig())

	assert.False(t, g.Configured())
	assert.Equal(t, gobreaker.StateClosed, g.State())

	_, err := g.CreateTransfer(context.Background(), transferReq())
	assert.ErrorIs(t, err, domainErrors.ErrProcessorNotConfigured)
	_, err = g.RetrievePaymentMethod(context.Background(), "pm_1")
	assert.ErrorIs(t, err, domainErrors.ErrProcessorNotConfigured)
	_, err = g.CreatePaymentIntent(context.Background(), PaymentIntentRequest{})
	assert.ErrorIs(t, err, domainErrors.ErrProcessorNotConfigured)
}

func TestGateway_CreateTransfer_RequiresIdempotencyKey(t *testing.T) {
	g := NewGateway(&stubProcessor{}, testGatewayConfig(1))

	req := transferReq()
	req.IdempotencyKey = ""
	_, err := g.CreateTransfer(context.Background(), req)
	assert.ErrorIs(t, err, domainErrors.ErrValidationFailed)
}

func TestGateway_CreateTransfer_RetriesTransientErrorsWithSameKey(t *testing.T) {
	calls := 0
	stub := &stubProcessor{CreateTransferFunc: func(ctx context.Context, req TransferRequest) (*Transfer, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("connection reset")
		}
		return &Transfer{ID: "tr_1"}, nil
	}}
	g := NewGateway(stub, testGatewayConfig(3))

	tr, err := g.CreateTransfer(context.Background(), transferReq())
	require.NoError(t, err)
	assert.Equal(t, "tr_1", tr.ID)
	require.Len(t, stub.transferCalls, 3)
	for _, call := range stub.transferCalls {
		assert.Equal(t, "payout-1", call.IdempotencyKey)
	}
}

func TestGateway_CreateTransfer_RejectionNotRetried(t *testing.T) {
	stub := &stubProcessor{CreateTransferFunc: func(ctx context.Context, req TransferRequest) (*Transfer, error) {
		return nil, domainErrors.ErrProviderRejected
	}}
	g := NewGateway(stub, testGatewayConfig(3))

	_, err := g.CreateTransfer(context.Background(), transferReq())
	assert.ErrorIs(t, err, domainErrors.ErrProviderRejected)
	assert.Len(t, stub.transferCalls, 1)
}

func TestGateway_CreateTransfer_Timeout(t *testing.T) {
	stub := &stubProcessor{CreateTransferFunc: func(ctx context.Context, req TransferRequest) (*Transfer, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	g := NewGateway(stub, testGatewayConfig(1))

	_, err := g.CreateTransfer(context.Background(), transferReq())
	assert.ErrorIs(t, err, domainErrors.ErrProviderTimeout)
}

func TestGateway_BreakerOpens(t *testing.T) {
	stub := &stubProcessor{CreateTransferFunc: func(ctx context.Context, req TransferRequest) (*Transfer, error) {
		return nil, errors.New("503")
	}}
	cfg := testGatewayConfig(1)
	cfg.TripRequests = 2
	cfg.TripRatio = 0.5

	var transitions []gobreaker.State
	g := NewGateway(stub, cfg, WithStateChangeHook(func(name string, from, to gobreaker.State) {
		assert.Equal(t, "stub", name)
		transitions = append(transitions, to)
	}))

	for i := 0; i < 2; i++ {
		_, err := g.CreateTransfer(context.Background(), transferReq())
		require.Error(t, err)
	}

	_, err := g.CreateTransfer(context.Background(), transferReq())
	assert.ErrorIs(t, err, domainErrors.ErrProviderUnavailable)
	assert.Equal(t, gobreaker.StateOpen, g.State())
	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen}, transitions)
	assert.Len(t, stub.transferCalls, 2)
}

func TestGateway_RejectionsDoNotTripBreaker(t *testing.T) {
	stub := &stubProcessor{CreateTransferFunc: func(ctx context.Context, req TransferRequest) (*Transfer, error) {
		return nil, domainErrors.ErrProviderRejected
	}}
	cfg := testGatewayConfig(1)
	cfg.TripRequests = 2
	cfg.TripRatio = 0.5
	g := NewGateway(stub, cfg)

	for i := 0; i < 5; i++ {
		_, err := g.CreateTransfer(context.Background(), transferReq())
		assert.ErrorIs(t, err, domainErrors.ErrProviderRejected)
	}
	assert.Equal(t, gobreaker.StateClosed, g.State())
}

func TestGateway_PassesThroughCharges(t *testing.T) {
	g := NewGateway(&stubProcessor{}, testGatewayConfig(1))

	pm, err := g.RetrievePaymentMethod(context.Background(), "pm_1")
	require.NoError(t, err)
	assert.Equal(t, "pm_1", pm.ID)

	intent, err := g.CreatePaymentIntent(context.Background(), PaymentIntentRequest{OffSession: true})
	require.NoError(t, err)
	assert.Equal(t, IntentSucceeded, intent.Status)
}
