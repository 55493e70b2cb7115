// Package ratelimit implements the cooldown controller: a fixed-window
// rate limiter and a single-flag debounce primitive over the shared
// atomic key-value store. Because the store's increment and set-if-absent
// operations are atomic, the semantics hold across multiple service
// instances without in-process locking.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"pricewaterfall/internal/core/port"
)

// Key prefixes in the shared store.
const (
	refreshDebounceKey = "debounce:refresh-all"
	fallbackPrefix     = "cooldown:fallback:"
	attemptPrefix      = "ratelimit:"
)

type Limiter struct {
	kv port.KeyValue
}

func NewLimiter(kv port.KeyValue) *Limiter {
	return &Limiter{kv: kv}
}

// Allow increments the counter for key and reports whether the caller is
// within maxAttempts for the current fixed window. The window starts when
// the increment creates the counter; later increments ride the existing
// expiry.
func (l *Limiter) Allow(ctx context.Context, key string, maxAttempts int, window time.Duration) (bool, error) {
	count, err := l.kv.Increment(ctx, key, window)
	if err != nil {
		return false, fmt.Errorf("rate limit increment for %s: %w", key, err)
	}
	return count <= int64(maxAttempts), nil
}

// Debounce attempts to create a presence flag for key with the given TTL.
// Only the caller that created the flag receives true; every concurrent or
// subsequent caller within the TTL receives false. The flag's absence is
// the "allowed" state, so no explicit release is needed.
func (l *Limiter) Debounce(ctx context.Context, key string, cooldown time.Duration) (bool, error) {
	created, err := l.kv.SetIfAbsent(ctx, key, cooldown)
	if err != nil {
		return false, fmt.Errorf("debounce flag for %s: %w", key, err)
	}
	return created, nil
}

// AttemptKey builds the counter key for a rate-limited action and caller.
func AttemptKey(action, caller string) string {
	return attemptPrefix + action + ":" + caller
}

// FallbackCooldownKey scopes the fallback cooldown per asset so one
// unavailable asset cannot block fallback lookups for all others.
func FallbackCooldownKey(assetID string) string {
	return fallbackPrefix + assetID
}

// RefreshDebounceKey guards the whole "refresh all" execution.
func RefreshDebounceKey() string {
	return refreshDebounceKey
}
