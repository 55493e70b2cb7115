package secondary

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"pricewaterfall/internal/adapters/exchange/httpx"
	"pricewaterfall/internal/core/domain"
)

const kucoinDefaultBaseURL = "https://api.kucoin.com"

// KuCoinClient is second in the secondary priority order. KuCoin uses
// dash-separated pairs ("BTC-USDT") and reports the 24h change as a
// fraction (changeRate), converted to a percentage here.
type KuCoinClient struct {
	client  *httpx.Client
	baseURL string
}

func NewKuCoinClient(baseURL string, client *httpx.Client) *KuCoinClient {
	if baseURL == "" {
		baseURL = kucoinDefaultBaseURL
	}
	return &KuCoinClient{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (k *KuCoinClient) Name() string { return "kucoin" }

type kucoinAllResponse struct {
	Code string `json:"code"`
	Data struct {
		Ticker []kucoinTicker `json:"ticker"`
	} `json:"data"`
}

type kucoinStatsResponse struct {
	Code string       `json:"code"`
	Data kucoinTicker `json:"data"`
}

type kucoinTicker struct {
	Symbol     string `json:"symbol"` // e.g. "BTC-USDT"
	Last       string `json:"last"`
	ChangeRate string `json:"changeRate"` // fraction, e.g. "0.0213"
}

func (k *KuCoinClient) FetchAll(ctx context.Context) ([]domain.ExchangeTicker, error) {
	url := k.baseURL + "/api/v1/market/allTickers"

	var raw kucoinAllResponse
	if err := k.client.GetJSON(ctx, url, &raw); err != nil {
		return nil, fmt.Errorf("%w: kucoin tickers: %v", domain.ErrProviderUnavailable, err)
	}

	tickers := make([]domain.ExchangeTicker, 0, len(raw.Data.Ticker))
	for _, t := range raw.Data.Ticker {
		if nt, ok := k.normalize(t); ok {
			tickers = append(tickers, nt)
		}
	}
	return tickers, nil
}

func (k *KuCoinClient) FetchSymbol(ctx context.Context, symbol string) (*domain.ExchangeTicker, error) {
	url := fmt.Sprintf("%s/api/v1/market/stats?symbol=%s-USDT", k.baseURL, symbol)

	var raw kucoinStatsResponse
	if err := k.client.GetJSON(ctx, url, &raw); err != nil {
		return nil, fmt.Errorf("%w: kucoin stats for %s: %v", domain.ErrProviderUnavailable, symbol, err)
	}

	// The stats endpoint omits the symbol field's pair when unknown.
	if raw.Data.Symbol == "" {
		raw.Data.Symbol = symbol + "-USDT"
	}
	nt, ok := k.normalize(raw.Data)
	if !ok {
		return nil, fmt.Errorf("%w: kucoin returned no usable price for %s", domain.ErrProviderUnavailable, symbol)
	}
	return &nt, nil
}

func (k *KuCoinClient) normalize(t kucoinTicker) (domain.ExchangeTicker, bool) {
	base, ok := strings.CutSuffix(t.Symbol, "-USDT")
	if !ok || base == "" {
		return domain.ExchangeTicker{}, false
	}
	last, err := strconv.ParseFloat(t.Last, 64)
	if err != nil || last <= 0 {
		return domain.ExchangeTicker{}, false
	}
	var change float64
	if rate, err := strconv.ParseFloat(t.ChangeRate, 64); err == nil {
		change = rate * 100
	}
	return domain.ExchangeTicker{
		Exchange:         k.Name(),
		Symbol:           base,
		LastPrice:        last,
		Change24hPercent: change,
	}, true
}
