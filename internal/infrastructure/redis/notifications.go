package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cassiomorais/settlement/internal/domain/outbox"
	"github.com/redis/go-redis/v9"
)

// DefaultNotificationStream is where domain notifications are published.
const DefaultNotificationStream = "settlement:notifications"

// StreamPublisher appends outbox entries to a Redis Stream for bus consumers.
type StreamPublisher struct {
	client redis.UniversalClient
	stream string
	maxLen int64
}

func NewStreamPublisher(client redis.UniversalClient, stream string, maxLen int64) *StreamPublisher {
	if stream == "" {
		stream = DefaultNotificationStream
	}
	return &StreamPublisher{client: client, stream: stream, maxLen: maxLen}
}

// StreamValues is the field layout of one stream message.
func StreamValues(entry *outbox.Entry) (map[string]any, error) {
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event data: %w", err)
	}
	return map[string]any{
		"id":             entry.ID.String(),
		"event_type":     entry.EventType,
		"aggregate_type": entry.AggregateType,
		"aggregate_id":   entry.AggregateID.String(),
		"payload":        string(payload),
		"timestamp":      entry.CreatedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

// Publish appends entry and returns the stream message id.
func (p *StreamPublisher) Publish(ctx context.Context, entry *outbox.Entry) (string, error) {
	values, err := StreamValues(entry)
	if err != nil {
		return "", err
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: values,
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("failed to publish %s: %w", entry.EventType, err)
	}
	return id, nil
}
