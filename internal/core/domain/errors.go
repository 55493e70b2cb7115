package domain

import "errors"

// Error taxonomy for price resolution. Per-feed failures
// (ErrProviderUnavailable) are absorbed inside the waterfall and logged;
// the remaining sentinels surface to the handler layer so it can map them
// to distinct responses ("retry later" vs "not found" vs caller error).
var (
	// ErrProviderUnavailable marks a network, HTTP status, or parse failure
	// from one upstream feed. Always recoverable by trying the next source.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrNotFound means no feed succeeded and no cached quote exists.
	ErrNotFound = errors.New("no price data found")

	// ErrCooldownActive means the slow fallback is cooling down for this
	// asset and no cached quote exists. Callers should retry later.
	ErrCooldownActive = errors.New("fallback cooling down")

	// ErrRateLimited means the caller exhausted its fixed-window budget.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrInvalidAsset marks a malformed asset identifier (empty after
	// trimming and lowercasing).
	ErrInvalidAsset = errors.New("invalid asset id")

	// ErrInvalidLookback marks a volatility lookback outside [7,365] days.
	ErrInvalidLookback = errors.New("invalid lookback window")
)
