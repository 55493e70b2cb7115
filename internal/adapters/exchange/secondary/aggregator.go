// Package secondary implements the prioritized secondary exchange feeds
// and the aggregator that merges them into one symbol -> quote view.
package secondary

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"pricewaterfall/internal/core/domain"
	"pricewaterfall/internal/core/port"
)

// Aggregator queries a fixed, ordered list of secondary exchanges. The
// order is significant: the first exchange that reports a symbol wins,
// later exchanges only fill gaps.
type Aggregator struct {
	exchanges []port.SecondaryExchange
	timeout   time.Duration
}

// NewAggregator keeps the given exchange order as the merge priority.
func NewAggregator(timeout time.Duration, exchanges ...port.SecondaryExchange) *Aggregator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Aggregator{exchanges: exchanges, timeout: timeout}
}

// FetchAll queries every exchange concurrently, bounded by the aggregation
// timeout, then reduces the per-exchange results in priority order. An
// exchange that errors or times out contributes nothing and does not abort
// the rest.
func (a *Aggregator) FetchAll(ctx context.Context) (map[string]domain.ExchangeTicker, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	results := make([][]domain.ExchangeTicker, len(a.exchanges))
	var wg sync.WaitGroup
	for i, ex := range a.exchanges {
		wg.Add(1)
		go func(i int, ex port.SecondaryExchange) {
			defer wg.Done()
			tickers, err := ex.FetchAll(ctx)
			if err != nil {
				slog.Warn("secondary exchange unavailable", "exchange", ex.Name(), "error", err)
				return
			}
			results[i] = tickers
		}(i, ex)
	}
	wg.Wait()

	return Merge(results), nil
}

// FetchSymbol tries exchanges in priority order and stops at the first
// valid quote for the symbol, avoiding unnecessary calls to the rest.
func (a *Aggregator) FetchSymbol(ctx context.Context, symbol string) (*domain.ExchangeTicker, error) {
	for _, ex := range a.exchanges {
		ticker, err := ex.FetchSymbol(ctx, symbol)
		if err != nil {
			slog.Warn("secondary exchange miss", "exchange", ex.Name(), "symbol", symbol, "error", err)
			continue
		}
		if ticker != nil && ticker.LastPrice > 0 {
			return ticker, nil
		}
	}
	return nil, fmt.Errorf("%w: no secondary exchange has %s", domain.ErrProviderUnavailable, symbol)
}

// Merge reduces ordered per-exchange ticker lists into one symbol -> quote
// map. A symbol is written only when not already present, so the earliest
// exchange in the priority order wins for every symbol it reports. This is
// not an average and not a most-recent rule.
func Merge(ordered [][]domain.ExchangeTicker) map[string]domain.ExchangeTicker {
	merged := make(map[string]domain.ExchangeTicker)
	for _, tickers := range ordered {
		for _, t := range tickers {
			if t.Symbol == "" || t.LastPrice <= 0 {
				continue
			}
			if _, ok := merged[t.Symbol]; ok {
				continue
			}
			merged[t.Symbol] = t
		}
	}
	return merged
}
