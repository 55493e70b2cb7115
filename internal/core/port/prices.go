// File: internal/core/port/prices.go
package port

import (
	"context"
	"time"

	"pricewaterfall/internal/core/domain"
)

// PriceService is the end-to-end resolution surface exposed to the
// handler layer.
type PriceService interface {
	// Resolve the current price for one asset via the provider waterfall.
	GetCurrentQuote(ctx context.Context, assetID, hintSymbol string) (*domain.PriceQuote, error)

	// Run the waterfall for every tracked asset, collapsed to at most one
	// execution per cooldown window. Returns whether this call performed
	// the refresh.
	RefreshAll(ctx context.Context) (bool, error)

	// All current quotes ordered by symbol plus the overall as-of
	// timestamp (nil when no relevant quote exists).
	ListCurrentQuotes(ctx context.Context) ([]domain.PriceQuote, *time.Time, error)

	// The most recent limit history points for an asset, chronological.
	GetHistory(ctx context.Context, assetID string, limit int) ([]domain.PriceHistoryPoint, error)

	// Historical volatility per asset over the lookback window. Assets
	// with fewer than two history points yield no entry.
	ComputeVolatilities(ctx context.Context, lookbackDays int, assetIDs []string) (map[string]float64, error)
}
