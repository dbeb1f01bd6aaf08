package event

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// StreamPublisher delivers events to a Redis stream via XADD. One stream
// carries all event types; consumers filter on the type field.
type StreamPublisher struct {
	redis   redis.UniversalClient
	stream  string
	maxLen  int64
	timeout time.Duration
}

func NewStreamPublisher(redisClient redis.UniversalClient, stream string, maxLen int64) *StreamPublisher {
	if stream == "" {
		stream = "auth:events"
	}
	return &StreamPublisher{
		redis:   redisClient,
		stream:  stream,
		maxLen:  maxLen,
		timeout: 5 * time.Second,
	}
}

func (p *StreamPublisher) Publish(e Event) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	return p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"id":            e.ID,
			"type":          e.Type,
			"version":       e.Version,
			"aggregateId":   e.AggregateID,
			"correlationId": e.CorrelationID,
			"occurredAt":    e.OccurredAt.Format(time.RFC3339Nano),
			"payload":       payload,
		},
	}).Err()
}
