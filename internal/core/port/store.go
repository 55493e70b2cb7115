// File: internal/core/port/store.go
package port

import (
	"context"
	"time"

	"pricewaterfall/internal/core/domain"
)

// QuoteStore is the durable current-price table plus the append-only
// price-history log.
type QuoteStore interface {
	// Insert-or-update the current quote for quote.AssetID and append one
	// history point, atomically as a single unit (write-through).
	UpsertQuote(ctx context.Context, quote domain.PriceQuote) error

	// Get the current quote for an asset. Returns domain.ErrNotFound when
	// no quote exists.
	GetQuote(ctx context.Context, assetID string) (*domain.PriceQuote, error)

	// All current quotes ordered by symbol.
	ListQuotes(ctx context.Context) ([]domain.PriceQuote, error)

	// All assets that have a current quote (asset id + stored symbol).
	ListTracked(ctx context.Context) ([]domain.TrackedAsset, error)

	// The most recent limit history points in chronological order.
	GetHistory(ctx context.Context, assetID string, limit int) ([]domain.PriceHistoryPoint, error)

	// History points recorded at or after since, in chronological order.
	GetHistorySince(ctx context.Context, assetID string, since time.Time) ([]domain.PriceHistoryPoint, error)

	// Health check
	Ping(ctx context.Context) error
}

// KeyValue is the shared atomic store backing rate limiting and cooldowns.
// Correctness relies on its atomic increment-with-expiry and
// create-if-absent primitives; no in-process locking is used.
type KeyValue interface {
	// Atomically increment key; when the increment creates the key, attach
	// the window expiry. Returns the counter value after incrementing.
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)

	// Create a presence flag with the given TTL only if absent. Returns
	// true for the caller that created it.
	SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Keys lists keys matching a glob pattern (debug surface only).
	Keys(ctx context.Context, pattern string) ([]string, error)

	// TTL reports the remaining lifetime of a key (debug surface only).
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Health check
	Ping(ctx context.Context) error
}
