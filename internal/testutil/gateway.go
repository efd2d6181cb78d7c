package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/cassiomorais/settlement/internal/providers"
)

// MockGateway records processor calls. By default transfers and charges succeed.
type MockGateway struct {
	mu        sync.Mutex
	transfers []providers.TransferRequest
	intents   []providers.PaymentIntentRequest

	CreateTransferFunc        func(ctx context.Context, req providers.TransferRequest) (*providers.Transfer, error)
	RetrievePaymentMethodFunc func(ctx context.Context, paymentMethodID string) (*providers.PaymentMethod, error)
	CreatePaymentIntentFunc   func(ctx context.Context, req providers.PaymentIntentRequest) (*providers.PaymentIntent, error)
}

func (m *MockGateway) CreateTransfer(ctx context.Context, req providers.TransferRequest) (*providers.Transfer, error) {
	m.mu.Lock()
	m.transfers = append(m.transfers, req)
	n := len(m.transfers)
	m.mu.Unlock()

	if m.CreateTransferFunc != nil {
		return m.CreateTransferFunc(ctx, req)
	}
	return &providers.Transfer{ID: fmt.Sprintf("tr_%04d", n), Status: "pending"}, nil
}

func (m *MockGateway) RetrievePaymentMethod(ctx context.Context, paymentMethodID string) (*providers.PaymentMethod, error) {
	if m.RetrievePaymentMethodFunc != nil {
		return m.RetrievePaymentMethodFunc(ctx, paymentMethodID)
	}
	return &providers.PaymentMethod{ID: paymentMethodID, Type: "card"}, nil
}

func (m *MockGateway) CreatePaymentIntent(ctx context.Context, req providers.PaymentIntentRequest) (*providers.PaymentIntent, error) {
	m.mu.Lock()
	m.intents = append(m.intents, req)
	n := len(m.intents)
	m.mu.Unlock()

	if m.CreatePaymentIntentFunc != nil {
		return m.CreatePaymentIntentFunc(ctx, req)
	}
	return &providers.PaymentIntent{ID: fmt.Sprintf("pi_%04d", n), Status: providers.IntentSucceeded}, nil
}

// Transfers returns every transfer request received.
func (m *MockGateway) Transfers() []providers.TransferRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]providers.TransferRequest(nil), m.transfers...)
}

// Intents returns every payment intent request received.
func (m *MockGateway) Intents() []providers.PaymentIntentRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]providers.PaymentIntentRequest(nil), m.intents...)
}
