// Package symbols maps internal asset identifiers to canonical ticker
// symbols for the fast-path exchange feeds.
package symbols

import (
	"regexp"
	"strings"
)

// curatedSymbols overrides assets whose natural symbol collides with or
// differs from their canonical trading symbol. A curated entry always wins
// over a caller-supplied hint.
var curatedSymbols = map[string]string{
	"bitcoin":          "BTC",
	"ethereum":         "ETH",
	"binancecoin":      "BNB",
	"ripple":           "XRP",
	"solana":           "SOL",
	"cardano":          "ADA",
	"dogecoin":         "DOGE",
	"polkadot":         "DOT",
	"tron":             "TRX",
	"chainlink":        "LINK",
	"litecoin":         "LTC",
	"avalanche-2":      "AVAX",
	"matic-network":    "MATIC",
	"the-open-network": "TON",
	"shiba-inu":        "SHIB",
	"uniswap":          "UNI",
	"stellar":          "XLM",
	"near":             "NEAR",
}

var symbolPattern = regexp.MustCompile(`^[A-Z0-9]+$`)

// Resolver resolves asset ids to ticker symbols using the built-in curated
// mapping plus optional configured overrides.
type Resolver struct {
	overrides map[string]string
}

// NewResolver merges extra overrides (from configuration) on top of the
// curated mapping. Extra entries win on conflict.
func NewResolver(extra map[string]string) *Resolver {
	overrides := make(map[string]string, len(curatedSymbols)+len(extra))
	for id, sym := range curatedSymbols {
		overrides[id] = sym
	}
	for id, sym := range extra {
		overrides[NormalizeAssetID(id)] = strings.ToUpper(strings.TrimSpace(sym))
	}
	return &Resolver{overrides: overrides}
}

// Resolve returns the ticker symbol for an asset, or "" when no fast-path
// symbol is available. An empty result is not an error: callers skip the
// fast-path feeds and continue with cache/fallback.
func (r *Resolver) Resolve(assetID, hintSymbol string) string {
	id := NormalizeAssetID(assetID)
	if id != "" {
		if sym, ok := r.overrides[id]; ok {
			return sym
		}
	}
	return SanitizeSymbol(hintSymbol)
}

// NormalizeAssetID trims and lowercases an asset identifier.
func NormalizeAssetID(assetID string) string {
	return strings.ToLower(strings.TrimSpace(assetID))
}

// SanitizeSymbol trims and uppercases a hint symbol, returning "" unless
// the result is purely alphanumeric. Pair notations like "eth/usdt" are
// rejected rather than split.
func SanitizeSymbol(hintSymbol string) string {
	sym := strings.ToUpper(strings.TrimSpace(hintSymbol))
	if !symbolPattern.MatchString(sym) {
		return ""
	}
	return sym
}
