package scheduler

import (
	"context"
	"time"

	"github.com/cassiomorais/settlement/internal/domain/outbox"
	"github.com/cassiomorais/settlement/internal/infrastructure/observability"
	"github.com/cassiomorais/settlement/internal/service"
	"github.com/rs/zerolog"
)

// Publisher delivers an outbox entry to the notification bus.
type Publisher interface {
	Publish(ctx context.Context, entry *outbox.Entry) (string, error)
}

// OutboxRelay moves pending outbox entries to the notification bus.
type OutboxRelay struct {
	txManager service.TransactionManager
	repo      outbox.Repository
	publisher Publisher
	batchSize int
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

func NewOutboxRelay(
	txManager service.TransactionManager,
	repo outbox.Repository,
	publisher Publisher,
	batchSize int,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxRelay{
		txManager: txManager,
		repo:      repo,
		publisher: publisher,
		batchSize: batchSize,
		metrics:   metrics,
		logger:    logger,
	}
}

// RelayOnce publishes one batch. Rows stay locked for the duration of the transaction, so
// concurrent relays never publish the same entry.
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	published := 0
	err := r.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		entries, err := r.repo.GetPending(txCtx, r.batchSize)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			log := r.logger.With().
				Str("outbox_id", entry.ID.String()).
				Str("event", entry.EventType).
				Logger()

			if _, err := r.publisher.Publish(ctx, entry); err != nil {
				log.Error().Err(err).Int("retry_count", entry.RetryCount).Msg("failed to publish outbox event")
				r.observe(entry.EventType, "error")
				if err := r.repo.MarkFailed(txCtx, entry.ID, err.Error()); err != nil {
					return err
				}
				continue
			}
			if err := r.repo.MarkPublished(txCtx, entry.ID); err != nil {
				return err
			}
			r.observe(entry.EventType, "published")
			published++
		}
		return nil
	})
	return published, err
}

// Run polls until ctx is cancelled.
func (r *OutboxRelay) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if _, err := r.RelayOnce(ctx); err != nil {
			r.logger.Error().Err(err).Msg("outbox relay error")
		}
		if r.metrics != nil {
			if n, err := r.repo.CountPending(ctx); err == nil {
				r.metrics.OutboxBacklog.Set(float64(n))
			}
		}
	}
}

func (r *OutboxRelay) observe(event, result string) {
	if r.metrics != nil {
		r.metrics.OutboxRelayed.WithLabelValues(event, result).Inc()
	}
}
