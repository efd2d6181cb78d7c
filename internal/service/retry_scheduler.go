package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/cassiomorais/settlement/internal/domain/outbox"
	"github.com/cassiomorais/settlement/internal/domain/subscription"
	"github.com/cassiomorais/settlement/internal/providers"
	"github.com/rs/zerolog"
)

const (
	JobPaymentRetry = "subscription_payment_retry"

	// DefaultRetryBatchSize caps how many subscriptions one run examines.
	DefaultRetryBatchSize = 500
)

// RetryScheduler re-attempts failed subscription charges and cancels subscriptions that
// have used up their retries.
type RetryScheduler struct {
	subscriptions subscription.Repository
	gateway       PaymentGateway
	notifier      Notifier
	logger        zerolog.Logger
	concurrency   int
	batchSize     int
	chargeTimeout time.Duration
	now           func() time.Time
}

type RetrySchedulerConfig struct {
	Concurrency   int
	BatchSize     int
	ChargeTimeout time.Duration
}

func NewRetryScheduler(
	subscriptions subscription.Repository,
	gateway PaymentGateway,
	notifier Notifier,
	logger zerolog.Logger,
	cfg RetrySchedulerConfig,
) *RetryScheduler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultRetryBatchSize
	}
	if cfg.ChargeTimeout <= 0 {
		cfg.ChargeTimeout = DefaultTransferTimeout
	}
	return &RetryScheduler{
		subscriptions: subscriptions,
		gateway:       gateway,
		notifier:      notifier,
		logger:        logger,
		concurrency:   cfg.Concurrency,
		batchSize:     cfg.BatchSize,
		chargeTimeout: cfg.ChargeTimeout,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Run processes every active subscription with a failed payment. One subscription's failure
// never stops the rest; the error return is reserved for failing to load the work list.
func (s *RetryScheduler) Run(ctx context.Context) (RunReport, error) {
	c := newReportCollector(JobPaymentRetry, s.now())

	subs, err := s.subscriptions.ListFailedPayments(ctx, s.batchSize)
	if err != nil {
		return c.finish(), fmt.Errorf("list failed subscription payments: %w", err)
	}

	runIsolated(ctx, s.logger, s.concurrency, subs, c, s.process)

	report := c.finish()
	s.logger.Info().Object("report", report).Msg("payment retry run finished")
	return report, nil
}

func (s *RetryScheduler) process(ctx context.Context, sub *subscription.Subscription) Outcome {
	log := s.logger.With().
		Str("subscription_id", sub.ID.String()).
		Int("retry_count", sub.RetryCount).
		Logger()
	ctx = log.WithContext(ctx)

	if !sub.NeedsRetry() {
		return OutcomeSkipped
	}

	if sub.RetriesExhausted() {
		return s.cancel(ctx, log, sub)
	}

	now := s.now()
	ref, err := s.charge(ctx, sub)
	if err == nil {
		if err := s.subscriptions.MarkPaid(ctx, sub.ID, now, ref); err != nil {
			log.Error().Err(err).Str("payment_reference", ref).Msg("charge succeeded but subscription not updated")
			return OutcomeFailed
		}
		log.Info().Str("payment_reference", ref).Msg("subscription payment recovered")
		return OutcomeSucceeded
	}

	reason := err.Error()
	changed, recErr := s.subscriptions.RecordRetryFailure(ctx, sub.ID, sub.RetryCount, now, reason)
	if recErr != nil {
		log.Error().Err(recErr).Msg("failed to record retry failure")
		return OutcomeFailed
	}
	if !changed {
		log.Info().Msg("subscription changed by another run, skipping")
		return OutcomeSkipped
	}

	attempt := sub.RetryCount + 1
	log.Warn().Err(err).Int("attempt", attempt).Msg("subscription payment retry failed")
	s.notifier.Emit(ctx, outbox.EventSubscriptionPaymentFailed, sub.ID, map[string]any{
		"subscription_id": sub.ID.String(),
		"vendor_id":       sub.VendorID.String(),
		"retry_count":     attempt,
		"max_retries":     subscription.MaxRetries,
		"error":           reason,
	})
	return OutcomeFailed
}

// charge returns the processor reference of a successful charge.
func (s *RetryScheduler) charge(ctx context.Context, sub *subscription.Subscription) (string, error) {
	if sub.PaymentMethodID == nil || *sub.PaymentMethodID == "" {
		return "", domainErrors.ErrNoPaymentMethod
	}
	if sub.ProcessorCustomerID == nil || *sub.ProcessorCustomerID == "" {
		return "", domainErrors.ErrProcessorNotConfigured
	}

	callCtx, cancel := context.WithTimeout(ctx, s.chargeTimeout)
	defer cancel()

	pm, err := s.gateway.RetrievePaymentMethod(callCtx, *sub.PaymentMethodID)
	if err != nil {
		return "", fmt.Errorf("retrieve payment method: %w", err)
	}

	intent, err := s.gateway.CreatePaymentIntent(callCtx, providers.PaymentIntentRequest{
		AmountCents:     sub.AmountCents,
		Currency:        sub.Currency,
		CustomerID:      *sub.ProcessorCustomerID,
		PaymentMethodID: pm.ID,
		OffSession:      true,
		IdempotencyKey:  fmt.Sprintf("sub-%s-retry-%d", sub.ID, sub.RetryCount+1),
		Metadata: map[string]string{
			"subscription_id": sub.ID.String(),
			"retry_attempt":   fmt.Sprint(sub.RetryCount + 1),
		},
	})
	if err != nil {
		if intent != nil && intent.ErrorMessage != "" {
			return "", fmt.Errorf("%w: %s", err, intent.ErrorMessage)
		}
		return "", err
	}
	if intent.Status != providers.IntentSucceeded {
		msg := intent.ErrorMessage
		if msg == "" {
			msg = "payment intent status " + intent.Status
		}
		return "", errors.New(msg)
	}
	return intent.ID, nil
}

func (s *RetryScheduler) cancel(ctx context.Context, log zerolog.Logger, sub *subscription.Subscription) Outcome {
	changed, err := s.subscriptions.Cancel(ctx, sub.ID, subscription.CancellationMaxRetries, s.now())
	if err != nil {
		log.Error().Err(err).Msg("failed to cancel subscription")
		return OutcomeFailed
	}
	if changed {
		log.Warn().Msg("subscription cancelled after maximum payment retries")
		s.notifier.Emit(ctx, outbox.EventSubscriptionCancelled, sub.ID, map[string]any{
			"subscription_id": sub.ID.String(),
			"vendor_id":       sub.VendorID.String(),
			"reason":          subscription.CancellationMaxRetries,
			"retry_count":     sub.RetryCount,
		})
	}
	return OutcomeSkipped
}
