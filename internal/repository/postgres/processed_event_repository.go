package postgres

import (
	"context"
	"fmt"

	"github.com/cassiomorais/settlement/internal/domain/webhook"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProcessedEventRepository implements webhook.ProcessedEventRepository.
type ProcessedEventRepository struct {
	pool *pgxpool.Pool
}

func NewProcessedEventRepository(pool *pgxpool.Pool) *ProcessedEventRepository {
	return &ProcessedEventRepository{pool: pool}
}

func (r *ProcessedEventRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// Record inserts (provider, eventID). It returns false when the row already exists.
func (r *ProcessedEventRepository) Record(ctx context.Context, provider, eventID string, eventType webhook.EventType) (bool, error) {
	tag, err := r.db(ctx).Exec(ctx,
		`INSERT INTO processed_webhook_events (provider, event_id, event_type, processed_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (provider, event_id) DO NOTHING`,
		provider, eventID, string(eventType))
	if err != nil {
		return false, fmt.Errorf("record processed webhook event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
