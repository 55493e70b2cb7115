package cache

import (
	"context"
	"fmt"
	"time"

	"pricewaterfall/internal/core/port"

	"github.com/redis/go-redis/v9"
)

// RedisAdapter implements the shared atomic key-value store used by the
// cooldown controller. Rate-limit counters use INCR + EXPIRE, cooldown
// flags use SET NX with TTL; both self-expire so no deletion path exists.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) port.KeyValue {
	return &RedisAdapter{
		client: client,
	}
}

// Increment atomically increments a counter. The window expiry is attached
// only when this increment created the counter (value became 1), so the
// fixed window starts with the first attempt.
func (r *RedisAdapter) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment %s: %w", key, err)
	}

	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("failed to set window expiry on %s: %w", key, err)
		}
	}

	return count, nil
}

// SetIfAbsent creates a presence flag with TTL only when the key does not
// exist. Returns true for the single caller whose SET NX succeeded.
func (r *RedisAdapter) SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	created, err := r.client.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set flag %s: %w", key, err)
	}
	return created, nil
}

// Keys lists keys matching a glob pattern. Debug surface only; KEYS is
// not used on any request path.
func (r *RedisAdapter) Keys(ctx context.Context, pattern string) ([]string, error) {
	keys, err := r.client.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list keys for %s: %w", pattern, err)
	}
	return keys, nil
}

// TTL reports the remaining lifetime of a key.
func (r *RedisAdapter) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get ttl for %s: %w", key, err)
	}
	return ttl, nil
}

// Ping checks Redis connection health
func (r *RedisAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
