package providers

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	domainErrors "github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/google/uuid"
)

// MockProcessor simulates a payment processor for local runs and tests.
// Transfers with the same idempotency key return the same transfer.
type MockProcessor struct {
	name        string
	failureRate float64 // 0.0 to 1.0
	latency     time.Duration
	timeoutRate float64 // 0.0 to 1.0

	mu        sync.Mutex
	transfers map[string]*Transfer
}

type MockProcessorOption func(*MockProcessor)

func WithFailureRate(rate float64) MockProcessorOption {
	return func(p *MockProcessor) { p.failureRate = rate }
}

func WithLatency(d time.Duration) MockProcessorOption {
	return func(p *MockProcessor) { p.latency = d }
}

func WithTimeoutRate(rate float64) MockProcessorOption {
	return func(p *MockProcessor) { p.timeoutRate = rate }
}

func NewMockProcessor(name string, opts ...MockProcessorOption) *MockProcessor {
	p := &MockProcessor{
		name:      name,
		latency:   100 * time.Millisecond,
		transfers: make(map[string]*Transfer),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *MockProcessor) Name() string { return p.name }

func (p *MockProcessor) CreateTransfer(ctx context.Context, req TransferRequest) (*Transfer, error) {
	if err := p.simulate(ctx); err != nil {
		return nil, err
	}
	if req.DestinationAccount == "" || req.AmountCents <= 0 {
		return nil, fmt.Errorf("%w: invalid transfer destination or amount", domainErrors.ErrProviderRejected)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if tr, ok := p.transfers[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		return tr, nil
	}

	if rand.Float64() < p.failureRate {
		return nil, fmt.Errorf("%w: %s: simulated transfer failure to %s", domainErrors.ErrProviderRejected, p.name, req.DestinationAccount)
	}

	tr := &Transfer{ID: "tr_" + uuid.New().String()[:8], Status: "pending"}
	if req.IdempotencyKey != "" {
		p.transfers[req.IdempotencyKey] = tr
	}
	return tr, nil
}

func (p *MockProcessor) RetrievePaymentMethod(ctx context.Context, paymentMethodID string) (*PaymentMethod, error) {
	if err := p.simulate(ctx); err != nil {
		return nil, err
	}
	if paymentMethodID == "" {
		return nil, domainErrors.ErrNoPaymentMethod
	}
	return &PaymentMethod{ID: paymentMethodID, Type: "card"}, nil
}

func (p *MockProcessor) CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (*PaymentIntent, error) {
	if err := p.simulate(ctx); err != nil {
		return nil, err
	}

	if rand.Float64() < p.failureRate {
		return &PaymentIntent{
			Status:       IntentFailed,
			ErrorMessage: fmt.Sprintf("%s: simulated card decline for customer %s", p.name, req.CustomerID),
		}, domainErrors.ErrProviderRejected
	}

	return &PaymentIntent{
		ID:     "pi_" + uuid.New().String()[:8],
		Status: IntentSucceeded,
	}, nil
}

func (p *MockProcessor) simulate(ctx context.Context) error {
	select {
	case <-time.After(p.latency):
	case <-ctx.Done():
		return ctx.Err()
	}

	if rand.Float64() < p.timeoutRate {
		return domainErrors.ErrProviderTimeout
	}
	return nil
}
