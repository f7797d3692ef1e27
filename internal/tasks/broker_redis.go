package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisBroker uses a Redis list as a FIFO queue (LPUSH / BRPOP).
// A popped message is gone from Redis, so Ack is a no-op.
type RedisBroker struct {
	rdb   *redis.Client
	queue string
}

// NewRedisBroker creates a broker on the list key queue.
func NewRedisBroker(rdb *redis.Client, queue string) *RedisBroker {
	return &RedisBroker{rdb: rdb, queue: queue}
}

func (b *RedisBroker) Publish(ctx context.Context, body []byte) error {
	if err := b.rdb.LPush(ctx, b.queue, body).Err(); err != nil {
		return fmt.Errorf("failed to publish to redis queue %q: %w", b.queue, err)
	}
	return nil
}

func (b *RedisBroker) Receive(ctx context.Context) (*Delivery, error) {
	res, err := b.rdb.BRPop(ctx, receiveWait, b.queue).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoMessage
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to receive from redis queue %q: %w", b.queue, err)
	}
	// BRPOP replies with [key, value].
	return &Delivery{Body: []byte(res[1])}, nil
}

func (b *RedisBroker) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

// Close leaves the shared client open; its owner closes it.
func (b *RedisBroker) Close() error {
	return nil
}

func (b *RedisBroker) Type() string {
	return "redis"
}
