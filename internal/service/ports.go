package service

import (
	"context"

	"github.com/cassiomorais/settlement/internal/providers"
	"github.com/google/uuid"
)

// TransactionManager defines the interface for transaction management.
// Services use this to wrap multiple repository operations in a single transaction.
type TransactionManager interface {
	// WithTransaction executes the given function within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	// Otherwise, it is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// PaymentGateway is the resilient processor client the services call.
// *providers.Gateway satisfies it.
type PaymentGateway interface {
	CreateTransfer(ctx context.Context, req providers.TransferRequest) (*providers.Transfer, error)
	RetrievePaymentMethod(ctx context.Context, paymentMethodID string) (*providers.PaymentMethod, error)
	CreatePaymentIntent(ctx context.Context, req providers.PaymentIntentRequest) (*providers.PaymentIntent, error)
}

// Notifier publishes domain notifications. Emit never fails the caller.
type Notifier interface {
	Emit(ctx context.Context, event string, aggregateID uuid.UUID, payload map[string]any)
}
