package domain

import (
	"time"
)

// Quote sources. Secondary exchange quotes carry the exchange name
// ("bybit", "kucoin", ...) instead of a fixed constant.
const (
	SourcePrimary  = "primary"
	SourceCache    = "cache"
	SourceFallback = "fallback"
)

// PriceQuote is the canonical current price for one asset. Exactly one
// logical quote exists per asset id (upsert semantics).
type PriceQuote struct {
	AssetID          string    `json:"asset_id"`           // canonical lowercase identifier
	Symbol           string    `json:"symbol"`             // exchange-tradable base symbol (e.g. BTC)
	PriceUSD         float64   `json:"price_usd"`          // last known USD price, >= 0
	Change24hPercent float64   `json:"change_24h_percent"` // percent change vs 24h ago
	UpdatedAt        time.Time `json:"updated_at"`         // when the quote was obtained
	Source           string    `json:"source"`             // which feed produced it
}

// PriceHistoryPoint is one append-only entry in the per-asset price log.
// History points are immutable once written.
type PriceHistoryPoint struct {
	AssetID    string    `json:"asset_id"`
	PriceUSD   float64   `json:"price_usd"`
	RecordedAt time.Time `json:"recorded_at"`
}

// ExchangeTicker is the normalized quote produced by a single exchange
// feed before merging. It is ephemeral and never persisted directly.
type ExchangeTicker struct {
	Exchange         string
	Symbol           string
	LastPrice        float64
	Change24hPercent float64
}

// FallbackQuote is the result of the universal fallback lookup, keyed by
// asset id rather than ticker symbol.
type FallbackQuote struct {
	AssetID          string
	PriceUSD         float64
	Change24hPercent float64
}

// TrackedAsset identifies an asset the service keeps a price for, with an
// optional hint symbol for the fast-path exchanges.
type TrackedAsset struct {
	AssetID string `json:"asset_id"`
	Symbol  string `json:"symbol"`
}
