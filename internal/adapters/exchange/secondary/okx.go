package secondary

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"pricewaterfall/internal/adapters/exchange/httpx"
	"pricewaterfall/internal/core/domain"
)

const okxDefaultBaseURL = "https://www.okx.com"

// OKXClient is last in the secondary priority order. OKX reports the 24h
// open price (open24h) as the reference; the change is computed here.
type OKXClient struct {
	client  *httpx.Client
	baseURL string
}

func NewOKXClient(baseURL string, client *httpx.Client) *OKXClient {
	if baseURL == "" {
		baseURL = okxDefaultBaseURL
	}
	return &OKXClient{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (o *OKXClient) Name() string { return "okx" }

type okxResponse struct {
	Code string      `json:"code"`
	Data []okxTicker `json:"data"`
}

type okxTicker struct {
	InstID  string `json:"instId"` // e.g. "BTC-USDT"
	Last    string `json:"last"`
	Open24h string `json:"open24h"`
}

func (o *OKXClient) FetchAll(ctx context.Context) ([]domain.ExchangeTicker, error) {
	url := o.baseURL + "/api/v5/market/tickers?instType=SPOT"

	var raw okxResponse
	if err := o.client.GetJSON(ctx, url, &raw); err != nil {
		return nil, fmt.Errorf("%w: okx tickers: %v", domain.ErrProviderUnavailable, err)
	}
	if raw.Code != "0" {
		return nil, fmt.Errorf("%w: okx error code %s", domain.ErrProviderUnavailable, raw.Code)
	}

	tickers := make([]domain.ExchangeTicker, 0, len(raw.Data))
	for _, t := range raw.Data {
		if nt, ok := o.normalize(t); ok {
			tickers = append(tickers, nt)
		}
	}
	return tickers, nil
}

func (o *OKXClient) FetchSymbol(ctx context.Context, symbol string) (*domain.ExchangeTicker, error) {
	url := fmt.Sprintf("%s/api/v5/market/ticker?instId=%s-USDT", o.baseURL, symbol)

	var raw okxResponse
	if err := o.client.GetJSON(ctx, url, &raw); err != nil {
		return nil, fmt.Errorf("%w: okx ticker for %s: %v", domain.ErrProviderUnavailable, symbol, err)
	}
	if raw.Code != "0" || len(raw.Data) == 0 {
		return nil, fmt.Errorf("%w: okx has no quote for %s", domain.ErrProviderUnavailable, symbol)
	}

	nt, ok := o.normalize(raw.Data[0])
	if !ok {
		return nil, fmt.Errorf("%w: okx returned no usable price for %s", domain.ErrProviderUnavailable, symbol)
	}
	return &nt, nil
}

func (o *OKXClient) normalize(t okxTicker) (domain.ExchangeTicker, bool) {
	base, ok := strings.CutSuffix(t.InstID, "-USDT")
	if !ok || base == "" {
		return domain.ExchangeTicker{}, false
	}
	last, err := strconv.ParseFloat(t.Last, 64)
	if err != nil || last <= 0 {
		return domain.ExchangeTicker{}, false
	}
	var change float64
	if open, err := strconv.ParseFloat(t.Open24h, 64); err == nil && open > 0 {
		change = (last - open) / open * 100
	}
	return domain.ExchangeTicker{
		Exchange:         o.Name(),
		Symbol:           base,
		LastPrice:        last,
		Change24hPercent: change,
	}, true
}
