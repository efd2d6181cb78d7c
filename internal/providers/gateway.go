package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/cassiomorais/settlement/pkg/retry"
	"github.com/sony/gobreaker/v2"
)

// GatewayConfig tunes the resilience wrapped around a Processor.
type GatewayConfig struct {
	Timeout      time.Duration
	Retry        retry.Config
	MaxRequests  uint32
	Interval     time.Duration
	OpenTimeout  time.Duration
	TripRequests uint32
	TripRatio    float64
}

// DefaultGatewayConfig returns default gateway configuration
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		Timeout: 10 * time.Second,
		Retry: retry.Config{
			MaxAttempts:  3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     5 * time.Second,
		},
		MaxRequests:  10,
		Interval:     60 * time.Second,
		OpenTimeout:  30 * time.Second,
		TripRequests: 10,
		TripRatio:    0.6,
	}
}

// StateChangeFunc is notified when the circuit breaker changes state.
type StateChangeFunc func(name string, from, to gobreaker.State)

type GatewayOption func(*Gateway)

func WithStateChangeHook(fn StateChangeFunc) GatewayOption {
	return func(g *Gateway) { g.onStateChange = fn }
}

// Gateway guards a Processor with a circuit breaker, a per-call timeout and, for
// idempotent transfers, retries. A nil processor yields ErrProcessorNotConfigured.
type Gateway struct {
	processor     Processor
	breaker       *gobreaker.CircuitBreaker[any]
	cfg           GatewayConfig
	onStateChange StateChangeFunc
}

func NewGateway(processor Processor, cfg GatewayConfig, opts ...GatewayOption) *Gateway {
	g := &Gateway{processor: processor, cfg: cfg}
	for _, o := range opts {
		o(g)
	}
	if processor == nil {
		return g
	}

	g.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        processor.Name(),
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.TripRequests && failureRatio >= cfg.TripRatio
		},
		// A declined request is an answer, not an outage.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domainErrors.ErrProviderRejected)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if g.onStateChange != nil {
				g.onStateChange(name, from, to)
			}
		},
	})
	return g
}

// Name returns the wrapped processor name, or "none".
func (g *Gateway) Name() string {
	if g.processor == nil {
		return "none"
	}
	return g.processor.Name()
}

// Configured reports whether a processor is wired.
func (g *Gateway) Configured() bool {
	return g.processor != nil
}

// State returns the circuit breaker state.
func (g *Gateway) State() gobreaker.State {
	if g.breaker == nil {
		return gobreaker.StateClosed
	}
	return g.breaker.State()
}

// CreateTransfer is retried because the processor deduplicates on req.IdempotencyKey.
func (g *Gateway) CreateTransfer(ctx context.Context, req TransferRequest) (*Transfer, error) {
	if g.processor == nil {
		return nil, domainErrors.ErrProcessorNotConfigured
	}
	if req.IdempotencyKey == "" {
		return nil, domainErrors.NewValidationError("idempotency_key", "required for transfers")
	}

	retryCfg := g.cfg.Retry
	retryCfg.RetryIf = retryable
	return retry.DoWithResult(ctx, retryCfg, func() (*Transfer, error) {
		return call(ctx, g, func(ctx context.Context) (*Transfer, error) {
			return g.processor.CreateTransfer(ctx, req)
		})
	})
}

func (g *Gateway) RetrievePaymentMethod(ctx context.Context, paymentMethodID string) (*PaymentMethod, error) {
	if g.processor == nil {
		return nil, domainErrors.ErrProcessorNotConfigured
	}
	return call(ctx, g, func(ctx context.Context) (*PaymentMethod, error) {
		return g.processor.RetrievePaymentMethod(ctx, paymentMethodID)
	})
}

// CreatePaymentIntent is attempted once; failed charges are retried by the retry scheduler.
func (g *Gateway) CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (*PaymentIntent, error) {
	if g.processor == nil {
		return nil, domainErrors.ErrProcessorNotConfigured
	}
	return call(ctx, g, func(ctx context.Context) (*PaymentIntent, error) {
		return g.processor.CreatePaymentIntent(ctx, req)
	})
}

func call[T any](ctx context.Context, g *Gateway, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	out, err := g.breaker.Execute(func() (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, translate(err)
	}
	return out.(T), nil
}

func translate(err error) error {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("%w: %v", domainErrors.ErrProviderUnavailable, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", domainErrors.ErrProviderTimeout, err)
	default:
		return err
	}
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, domainErrors.ErrProviderRejected),
		errors.Is(err, domainErrors.ErrProviderUnavailable),
		errors.Is(err, context.Canceled):
		return false
	default:
		var ve *domainErrors.ValidationError
		return !errors.As(err, &ve)
	}
}
