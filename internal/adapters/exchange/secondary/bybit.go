package secondary

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"pricewaterfall/internal/adapters/exchange/httpx"
	"pricewaterfall/internal/core/domain"
)

const bybitDefaultBaseURL = "https://api.bybit.com"

// BybitClient is the highest-priority secondary exchange. Bybit reports a
// 24h-ago reference price (prevPrice24h) instead of a percentage, so the
// change is computed here.
type BybitClient struct {
	client  *httpx.Client
	baseURL string
}

func NewBybitClient(baseURL string, client *httpx.Client) *BybitClient {
	if baseURL == "" {
		baseURL = bybitDefaultBaseURL
	}
	return &BybitClient{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (b *BybitClient) Name() string { return "bybit" }

type bybitResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		List []bybitTicker `json:"list"`
	} `json:"result"`
}

type bybitTicker struct {
	Symbol       string `json:"symbol"` // e.g. "BTCUSDT"
	LastPrice    string `json:"lastPrice"`
	PrevPrice24h string `json:"prevPrice24h"`
}

func (b *BybitClient) FetchAll(ctx context.Context) ([]domain.ExchangeTicker, error) {
	url := b.baseURL + "/v5/market/tickers?category=spot"

	var raw bybitResponse
	if err := b.client.GetJSON(ctx, url, &raw); err != nil {
		return nil, fmt.Errorf("%w: bybit tickers: %v", domain.ErrProviderUnavailable, err)
	}
	if raw.RetCode != 0 {
		return nil, fmt.Errorf("%w: bybit error %d: %s", domain.ErrProviderUnavailable, raw.RetCode, raw.RetMsg)
	}

	tickers := make([]domain.ExchangeTicker, 0, len(raw.Result.List))
	for _, t := range raw.Result.List {
		if nt, ok := b.normalize(t); ok {
			tickers = append(tickers, nt)
		}
	}
	return tickers, nil
}

func (b *BybitClient) FetchSymbol(ctx context.Context, symbol string) (*domain.ExchangeTicker, error) {
	url := fmt.Sprintf("%s/v5/market/tickers?category=spot&symbol=%sUSDT", b.baseURL, symbol)

	var raw bybitResponse
	if err := b.client.GetJSON(ctx, url, &raw); err != nil {
		return nil, fmt.Errorf("%w: bybit ticker for %s: %v", domain.ErrProviderUnavailable, symbol, err)
	}
	if raw.RetCode != 0 || len(raw.Result.List) == 0 {
		return nil, fmt.Errorf("%w: bybit has no quote for %s", domain.ErrProviderUnavailable, symbol)
	}

	nt, ok := b.normalize(raw.Result.List[0])
	if !ok {
		return nil, fmt.Errorf("%w: bybit returned no usable price for %s", domain.ErrProviderUnavailable, symbol)
	}
	return &nt, nil
}

func (b *BybitClient) normalize(t bybitTicker) (domain.ExchangeTicker, bool) {
	base, ok := strings.CutSuffix(t.Symbol, "USDT")
	if !ok || base == "" {
		return domain.ExchangeTicker{}, false
	}
	last, err := strconv.ParseFloat(t.LastPrice, 64)
	if err != nil || last <= 0 {
		return domain.ExchangeTicker{}, false
	}
	var change float64
	if prev, err := strconv.ParseFloat(t.PrevPrice24h, 64); err == nil && prev > 0 {
		change = (last - prev) / prev * 100
	}
	return domain.ExchangeTicker{
		Exchange:         b.Name(),
		Symbol:           base,
		LastPrice:        last,
		Change24hPercent: change,
	}, true
}
