// Package usage tracks per-account usage counters in Redis. Counters feed
// the limit gate; the decision layer treats a counter read failure as a
// lookup failure and fails open, so Redis being down degrades limits
// rather than blocking requests.
package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "ebuster:usage"

// Counter stores usage counts keyed by account and limit key. A zero TTL
// means counters never expire; windowed counters (daily API calls and the
// like) set one.
type Counter struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCounter creates a usage counter store
func NewCounter(client *redis.Client, ttl time.Duration) *Counter {
	return &Counter{client: client, ttl: ttl}
}

func counterKey(accountID int64, key string) string {
	return fmt.Sprintf("%s:%d:%s", keyPrefix, accountID, key)
}

// Increment adds one to the counter and returns the new value. The TTL is
// refreshed in the same pipeline as the increment.
func (c *Counter) Increment(ctx context.Context, accountID int64, key string) (int, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, counterKey(accountID, key))
	if c.ttl > 0 {
		pipe.Expire(ctx, counterKey(accountID, key), c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to increment usage counter: %w", err)
	}
	return int(incr.Val()), nil
}

// Decrement subtracts one from the counter, flooring at zero
func (c *Counter) Decrement(ctx context.Context, accountID int64, key string) error {
	value, err := c.client.Decr(ctx, counterKey(accountID, key)).Result()
	if err != nil {
		return fmt.Errorf("failed to decrement usage counter: %w", err)
	}
	if value < 0 {
		// releasing more than was held; clamp rather than go negative
		if err := c.client.Set(ctx, counterKey(accountID, key), 0, c.ttl).Err(); err != nil {
			return fmt.Errorf("failed to clamp usage counter: %w", err)
		}
	}
	return nil
}

// Get returns the counter value; a missing key reads as zero
func (c *Counter) Get(ctx context.Context, accountID int64, key string) (int, error) {
	value, err := c.client.Get(ctx, counterKey(accountID, key)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read usage counter: %w", err)
	}
	return value, nil
}

// Set overwrites the counter, used when re-syncing from the datastore
func (c *Counter) Set(ctx context.Context, accountID int64, key string, value int) error {
	if err := c.client.Set(ctx, counterKey(accountID, key), value, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set usage counter: %w", err)
	}
	return nil
}

// Reset deletes the counter
func (c *Counter) Reset(ctx context.Context, accountID int64, key string) error {
	if err := c.client.Del(ctx, counterKey(accountID, key)).Err(); err != nil {
		return fmt.Errorf("failed to reset usage counter: %w", err)
	}
	return nil
}

// Reader returns an accessor for one limit key, shaped for the decision
// layer's usage callback.
func (c *Counter) Reader(key string) func(ctx context.Context, accountID int64) (int, error) {
	return func(ctx context.Context, accountID int64) (int, error) {
		return c.Get(ctx, accountID, key)
	}
}
