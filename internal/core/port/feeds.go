// File: internal/core/port/feeds.go
package port

import (
	"context"

	"pricewaterfall/internal/core/domain"
)

// PrimaryFeed is the fast single-symbol exchange feed tried first by the
// waterfall. Any failure is reported as domain.ErrProviderUnavailable.
type PrimaryFeed interface {
	Name() string

	// Fetch one USD-quoted ticker for a base symbol (e.g. "BTC").
	FetchSymbol(ctx context.Context, symbol string) (*domain.ExchangeTicker, error)
}

// SecondaryExchange is one exchange in the fixed-priority secondary list.
// Each implementation normalizes its own response schema into
// domain.ExchangeTicker values.
type SecondaryExchange interface {
	Name() string

	// Fetch the whole USDT-quoted market in one call.
	FetchAll(ctx context.Context) ([]domain.ExchangeTicker, error)

	// Fetch a single symbol.
	FetchSymbol(ctx context.Context, symbol string) (*domain.ExchangeTicker, error)
}

// SecondaryAggregator merges the prioritized secondary exchanges into one
// symbol -> ticker view (first-priority-provider-wins per symbol).
type SecondaryAggregator interface {
	// Merge all exchanges' markets; providers that fail contribute nothing.
	FetchAll(ctx context.Context) (map[string]domain.ExchangeTicker, error)

	// Try exchanges in priority order, stopping at the first valid quote.
	FetchSymbol(ctx context.Context, symbol string) (*domain.ExchangeTicker, error)
}

// FallbackProvider is the slow universal lookup keyed by asset id rather
// than ticker symbol. It is guarded by a per-asset cooldown.
type FallbackProvider interface {
	Name() string
	FetchAsset(ctx context.Context, assetID string) (*domain.FallbackQuote, error)
}
