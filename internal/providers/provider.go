package providers

import (
	"context"
)

// Processor is the external payment processor.
type Processor interface {
	// Name returns the processor name.
	Name() string
	// CreateTransfer moves funds to a connected vendor account.
	CreateTransfer(ctx context.Context, req TransferRequest) (*Transfer, error)
	// RetrievePaymentMethod looks up a stored payment method.
	RetrievePaymentMethod(ctx context.Context, paymentMethodID string) (*PaymentMethod, error)
	// CreatePaymentIntent charges a customer.
	CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (*PaymentIntent, error)
}

type TransferRequest struct {
	DestinationAccount string
	AmountCents        int64 // in cents
	Currency           string
	IdempotencyKey     string
	Metadata           map[string]string
}

type Transfer struct {
	ID     string
	Status string
}

type PaymentMethod struct {
	ID         string
	CustomerID string
	Type       string
}

type PaymentIntentRequest struct {
	AmountCents     int64 // in cents
	Currency        string
	CustomerID      string
	PaymentMethodID string
	OffSession      bool
	IdempotencyKey  string
	Metadata        map[string]string
}

// Payment intent statuses returned by the processor.
const (
	IntentSucceeded      = "succeeded"
	IntentRequiresAction = "requires_action"
	IntentFailed         = "failed"
)

type PaymentIntent struct {
	ID           string
	Status       string
	ErrorMessage string
}
