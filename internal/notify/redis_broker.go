package notify

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisBroker publishes to Redis Pub/Sub channels.
type RedisBroker struct {
	rdb *redis.Client
}

// NewRedisBroker creates a new RedisBroker.
func NewRedisBroker(rdb *redis.Client) *RedisBroker {
	return &RedisBroker{rdb: rdb}
}

// PublishBatch sends every message in one pipeline round-trip.
func (b *RedisBroker) PublishBatch(ctx context.Context, msgs []Message) error {
	pipe := b.rdb.Pipeline()
	for _, m := range msgs {
		pipe.Publish(ctx, m.Channel, m.Data)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Publish sends a single message.
func (b *RedisBroker) Publish(ctx context.Context, msg Message) error {
	return b.rdb.Publish(ctx, msg.Channel, msg.Data).Err()
}
