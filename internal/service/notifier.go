package service

import (
	"context"

	"github.com/cassiomorais/settlement/internal/domain/outbox"
	"github.com/cassiomorais/settlement/internal/infrastructure/observability"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// OutboxNotifier writes notifications to the outbox. Inside a transaction the entry commits
// with the state change; the worker relays it to the stream afterwards.
type OutboxNotifier struct {
	repo   outbox.Repository
	logger zerolog.Logger
}

func NewOutboxNotifier(repo outbox.Repository, logger zerolog.Logger) *OutboxNotifier {
	return &OutboxNotifier{repo: repo, logger: logger}
}

func (n *OutboxNotifier) Emit(ctx context.Context, event string, aggregateID uuid.UUID, payload map[string]any) {
	entry := outbox.NewEntry(outbox.AggregateTypeFor(event), aggregateID, event, payload)
	if err := n.repo.Insert(ctx, entry); err != nil {
		n.logger.Error().Err(err).
			Str("event", event).
			Str("aggregate_id", aggregateID.String()).
			Msg("failed to enqueue notification")
		return
	}
	n.logger.Debug().Str("event", event).Str("aggregate_id", aggregateID.String()).Msg("notification enqueued")
}

// InstrumentedNotifier counts payout and subscription notifications before passing them on.
// Counts are recorded at emit time, before any surrounding transaction commits.
type InstrumentedNotifier struct {
	next    Notifier
	metrics *observability.Metrics
}

func NewInstrumentedNotifier(next Notifier, metrics *observability.Metrics) *InstrumentedNotifier {
	return &InstrumentedNotifier{next: next, metrics: metrics}
}

func (n *InstrumentedNotifier) Emit(ctx context.Context, event string, aggregateID uuid.UUID, payload map[string]any) {
	switch event {
	case outbox.EventPayoutCompleted:
		n.metrics.PayoutsTotal.WithLabelValues("completed").Inc()
		if amount, ok := payload["net_amount"].(int64); ok {
			currency, _ := payload["currency"].(string)
			n.metrics.PayoutAmountCents.WithLabelValues(currency).Add(float64(amount))
		}
	case outbox.EventPayoutFailed:
		n.metrics.PayoutsTotal.WithLabelValues("failed").Inc()
	case outbox.EventSubscriptionPaymentFailed:
		n.metrics.SubscriptionRetriesTotal.WithLabelValues("payment_failed").Inc()
	case outbox.EventSubscriptionCancelled:
		n.metrics.SubscriptionRetriesTotal.WithLabelValues("cancelled").Inc()
	}
	n.next.Emit(ctx, event, aggregateID, payload)
}
