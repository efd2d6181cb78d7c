package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/cassiomorais/settlement/internal/domain/commission"
	domainErrors "github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/cassiomorais/settlement/internal/domain/outbox"
	"github.com/cassiomorais/settlement/internal/domain/payout"
	"github.com/cassiomorais/settlement/internal/domain/vendor"
	"github.com/cassiomorais/settlement/internal/domain/webhook"
	"github.com/rs/zerolog"
)

// DefaultWebhookProvider is the provider name processed events are recorded under.
const DefaultWebhookProvider = "processor"

// WebhookOutcome tells the caller what an event did.
type WebhookOutcome string

const (
	WebhookApplied   WebhookOutcome = "applied"
	WebhookDuplicate WebhookOutcome = "duplicate"
	WebhookNoop      WebhookOutcome = "noop"
	WebhookIgnored   WebhookOutcome = "ignored"
	WebhookUnmatched WebhookOutcome = "unmatched"
)

// WebhookReconciler applies verified processor notifications to the ledger.
type WebhookReconciler struct {
	provider    string
	events      webhook.ProcessedEventRepository
	payouts     payout.Repository
	commissions commission.Repository
	vendors     vendor.Repository
	txManager   TransactionManager
	notifier    Notifier
	logger      zerolog.Logger
}

func NewWebhookReconciler(
	provider string,
	events webhook.ProcessedEventRepository,
	payouts payout.Repository,
	commissions commission.Repository,
	vendors vendor.Repository,
	txManager TransactionManager,
	notifier Notifier,
	logger zerolog.Logger,
) *WebhookReconciler {
	if provider == "" {
		provider = DefaultWebhookProvider
	}
	return &WebhookReconciler{
		provider:    provider,
		events:      events,
		payouts:     payouts,
		commissions: commissions,
		vendors:     vendors,
		txManager:   txManager,
		notifier:    notifier,
		logger:      logger,
	}
}

// Apply records the event and applies it in one transaction. Replaying an event, or
// delivering one whose effect is already in place, changes nothing.
func (r *WebhookReconciler) Apply(ctx context.Context, ev *webhook.Event) (WebhookOutcome, error) {
	if ev == nil || ev.ID == "" {
		return "", domainErrors.ErrMalformedEvent
	}

	log := r.logger.With().
		Str("event_id", ev.ID).
		Str("event_type", string(ev.Type)).
		Logger()
	ctx = log.WithContext(ctx)

	var outcome WebhookOutcome
	err := r.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		fresh, err := r.events.Record(txCtx, r.provider, ev.ID, ev.Type)
		if err != nil {
			return fmt.Errorf("record event: %w", err)
		}
		if !fresh {
			outcome = WebhookDuplicate
			return nil
		}

		outcome, err = r.dispatch(txCtx, log, ev)
		return err
	})
	if err != nil {
		log.Error().Err(err).Msg("webhook event not applied")
		return "", err
	}

	log.Info().Str("outcome", string(outcome)).Msg("webhook event processed")
	return outcome, nil
}

func (r *WebhookReconciler) dispatch(ctx context.Context, log zerolog.Logger, ev *webhook.Event) (WebhookOutcome, error) {
	obj := ev.Object()
	switch ev.Type {
	case webhook.TransferCreated:
		return r.transition(ctx, log, obj, payout.StatusUpdate{
			Status:            payout.StatusProcessing,
			ExternalReference: obj.Reference(),
		})
	case webhook.TransferReversed:
		// Recording the reference keeps a late transfer.created from reopening the payout.
		reason := obj.FailureReason("transfer reversed")
		return r.transition(ctx, log, obj, payout.StatusUpdate{
			Status:            payout.StatusFailed,
			ExternalReference: obj.Reference(),
			FailureReason:     &reason,
		})
	case webhook.PayoutFailed:
		reason := obj.FailureReason("payout failed")
		return r.transition(ctx, log, obj, payout.StatusUpdate{
			Status:            payout.StatusFailed,
			ExternalReference: obj.Reference(),
			FailureReason:     &reason,
		})
	case webhook.PayoutPaid:
		at := ev.OccurredAt()
		return r.transition(ctx, log, obj, payout.StatusUpdate{
			Status:      payout.StatusCompleted,
			ProcessedAt: &at,
		})
	case webhook.AccountUpdated:
		return r.accountUpdated(ctx, log, obj)
	default:
		log.Info().Msg("unhandled webhook event type")
		return WebhookIgnored, nil
	}
}

func (r *WebhookReconciler) transition(ctx context.Context, log zerolog.Logger, obj *webhook.EventObject, update payout.StatusUpdate) (WebhookOutcome, error) {
	p, err := r.resolvePayout(ctx, obj)
	if errors.Is(err, domainErrors.ErrPayoutNotFound) {
		log.Warn().Str("object_id", obj.ID).Msg("webhook event does not match any payout")
		return WebhookUnmatched, nil
	}
	if err != nil {
		return "", err
	}

	log = log.With().Str("payout_id", p.ID.String()).Logger()
	applied, err := r.payouts.Transition(ctx, p.ID, update)
	if err != nil {
		return "", fmt.Errorf("transition payout %s to %s: %w", p.ID, update.Status, err)
	}
	if !applied {
		log.Info().
			Str("status", string(p.Status)).
			Str("target", string(update.Status)).
			Msg("payout already past this state")
		return WebhookNoop, nil
	}
	_ = p.Apply(update)

	switch update.Status {
	case payout.StatusCompleted:
		n, err := r.commissions.MarkPaid(ctx, p.ID)
		if err != nil {
			return "", fmt.Errorf("mark transactions paid for payout %s: %w", p.ID, err)
		}
		log.Info().Int64("transactions", n).Msg("payout completed")
		r.notifier.Emit(ctx, outbox.EventPayoutCompleted, p.ID, payoutPayload(p, ""))
	case payout.StatusFailed:
		log.Warn().Str("reason", *update.FailureReason).Msg("payout failed")
		r.notifier.Emit(ctx, outbox.EventPayoutFailed, p.ID, payoutPayload(p, *update.FailureReason))
	}
	return WebhookApplied, nil
}

// resolvePayout prefers the payout id carried in metadata and falls back to the processor reference.
func (r *WebhookReconciler) resolvePayout(ctx context.Context, obj *webhook.EventObject) (*payout.Batch, error) {
	if id, ok := obj.PayoutID(); ok {
		p, err := r.payouts.GetByID(ctx, id)
		if err == nil || !errors.Is(err, domainErrors.ErrPayoutNotFound) {
			return p, err
		}
	}
	if obj.ID == "" {
		return nil, domainErrors.ErrPayoutNotFound
	}
	return r.payouts.GetByExternalReference(ctx, obj.ID)
}

func (r *WebhookReconciler) accountUpdated(ctx context.Context, log zerolog.Logger, obj *webhook.EventObject) (WebhookOutcome, error) {
	caps := vendor.AccountCapabilities{
		ChargesEnabled:   obj.ChargesEnabled,
		PayoutsEnabled:   obj.PayoutsEnabled,
		DetailsSubmitted: obj.DetailsSubmitted,
	}
	if !caps.FullyEnabled() {
		return WebhookNoop, nil
	}

	v, err := r.vendors.GetByProcessorAccountID(ctx, obj.ID)
	if errors.Is(err, domainErrors.ErrVendorNotFound) {
		log.Warn().Str("account_id", obj.ID).Msg("account update for unknown vendor")
		return WebhookUnmatched, nil
	}
	if err != nil {
		return "", err
	}

	activated, err := r.vendors.ActivateOnboarding(ctx, v.ID)
	if err != nil {
		return "", fmt.Errorf("activate vendor %s: %w", v.ID, err)
	}
	if !activated {
		return WebhookNoop, nil
	}
	log.Info().Str("vendor_id", v.ID.String()).Msg("vendor onboarding completed")
	return WebhookApplied, nil
}
