package errors

import (
	"errors"
	"fmt"
)

var (
	// Ledger errors
	ErrTransactionNotFound        = errors.New("commission transaction not found")
	ErrTransactionsAlreadyClaimed = errors.New("commission transactions already claimed by another payout")
	ErrPayoutNotFound             = errors.New("payout not found")
	ErrInvalidStateTransition     = errors.New("invalid state transition")
	ErrInvalidAmount              = errors.New("invalid amount")
	ErrInvalidCurrency            = errors.New("invalid currency")

	// Settlement errors
	ErrEmptySettlement     = errors.New("settlement group has no transactions")
	ErrNonPositiveNet      = errors.New("settlement net amount is not positive")
	ErrNoPayoutDestination = errors.New("vendor has no verified payout destination")

	// Vendor / subscription errors
	ErrVendorNotFound         = errors.New("vendor not found")
	ErrSubscriptionNotFound   = errors.New("subscription not found")
	ErrNoPaymentMethod        = errors.New("no payment method on file")
	ErrProcessorNotConfigured = errors.New("payment processor not configured for customer")

	// Provider errors
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	ErrProviderRejected    = errors.New("request rejected by payment provider")
	ErrProviderTimeout     = errors.New("provider request timeout")

	// Webhook errors
	ErrMissingSignature = errors.New("missing webhook signature")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedEvent   = errors.New("malformed webhook event")

	// Idempotency errors
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// Lock errors
	ErrLockAcquisitionFailed = errors.New("failed to acquire lock")
	ErrLockNotHeld           = errors.New("lock not held")

	// Auth errors
	ErrUnauthorized = errors.New("unauthorized")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidInput     = errors.New("invalid input")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

// Unwrap lets callers match any validation error with errors.Is(err, ErrValidationFailed).
func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
