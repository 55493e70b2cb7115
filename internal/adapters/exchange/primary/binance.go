// Package primary implements the fast single-symbol exchange feed tried
// first by the waterfall.
package primary

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"pricewaterfall/internal/adapters/exchange/httpx"
	"pricewaterfall/internal/core/domain"
)

const defaultBaseURL = "https://api.binance.com"

// BinanceClient queries the 24h ticker endpoint for USDT-quoted pairs.
type BinanceClient struct {
	client  *httpx.Client
	baseURL string
}

func NewBinanceClient(baseURL string, client *httpx.Client) *BinanceClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &BinanceClient{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (b *BinanceClient) Name() string { return "binance" }

type binanceTicker struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	PriceChangePercent string `json:"priceChangePercent"`
}

// FetchSymbol queries the USDT pair for one base symbol. Any transport
// error, non-success status, or missing/zero price is reported as
// domain.ErrProviderUnavailable so the waterfall continues to the next
// source.
func (b *BinanceClient) FetchSymbol(ctx context.Context, symbol string) (*domain.ExchangeTicker, error) {
	url := fmt.Sprintf("%s/api/v3/ticker/24hr?symbol=%sUSDT", b.baseURL, symbol)

	var raw binanceTicker
	if err := b.client.GetJSON(ctx, url, &raw); err != nil {
		return nil, fmt.Errorf("%w: binance ticker for %s: %v", domain.ErrProviderUnavailable, symbol, err)
	}

	price, err := strconv.ParseFloat(raw.LastPrice, 64)
	if err != nil || price <= 0 {
		return nil, fmt.Errorf("%w: binance returned no usable price for %s", domain.ErrProviderUnavailable, symbol)
	}

	// A missing change field degrades to 0, not to an error.
	change, _ := strconv.ParseFloat(raw.PriceChangePercent, 64)

	return &domain.ExchangeTicker{
		Exchange:         b.Name(),
		Symbol:           symbol,
		LastPrice:        price,
		Change24hPercent: change,
	}, nil
}
