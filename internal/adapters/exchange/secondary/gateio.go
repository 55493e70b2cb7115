package secondary

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"pricewaterfall/internal/adapters/exchange/httpx"
	"pricewaterfall/internal/core/domain"
)

const gateioDefaultBaseURL = "https://api.gateio.ws"

// GateIOClient is third in the secondary priority order. Gate.io uses
// underscore-separated pairs ("BTC_USDT") and reports the 24h change as a
// ready-made percentage string.
type GateIOClient struct {
	client  *httpx.Client
	baseURL string
}

func NewGateIOClient(baseURL string, client *httpx.Client) *GateIOClient {
	if baseURL == "" {
		baseURL = gateioDefaultBaseURL
	}
	return &GateIOClient{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (g *GateIOClient) Name() string { return "gateio" }

type gateioTicker struct {
	CurrencyPair     string `json:"currency_pair"` // e.g. "BTC_USDT"
	Last             string `json:"last"`
	ChangePercentage string `json:"change_percentage"` // e.g. "-2.14"
}

func (g *GateIOClient) FetchAll(ctx context.Context) ([]domain.ExchangeTicker, error) {
	url := g.baseURL + "/api/v4/spot/tickers"

	var raw []gateioTicker
	if err := g.client.GetJSON(ctx, url, &raw); err != nil {
		return nil, fmt.Errorf("%w: gateio tickers: %v", domain.ErrProviderUnavailable, err)
	}

	tickers := make([]domain.ExchangeTicker, 0, len(raw))
	for _, t := range raw {
		if nt, ok := g.normalize(t); ok {
			tickers = append(tickers, nt)
		}
	}
	return tickers, nil
}

func (g *GateIOClient) FetchSymbol(ctx context.Context, symbol string) (*domain.ExchangeTicker, error) {
	url := fmt.Sprintf("%s/api/v4/spot/tickers?currency_pair=%s_USDT", g.baseURL, symbol)

	var raw []gateioTicker
	if err := g.client.GetJSON(ctx, url, &raw); err != nil {
		return nil, fmt.Errorf("%w: gateio ticker for %s: %v", domain.ErrProviderUnavailable, symbol, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: gateio has no quote for %s", domain.ErrProviderUnavailable, symbol)
	}

	nt, ok := g.normalize(raw[0])
	if !ok {
		return nil, fmt.Errorf("%w: gateio returned no usable price for %s", domain.ErrProviderUnavailable, symbol)
	}
	return &nt, nil
}

func (g *GateIOClient) normalize(t gateioTicker) (domain.ExchangeTicker, bool) {
	base, ok := strings.CutSuffix(t.CurrencyPair, "_USDT")
	if !ok || base == "" {
		return domain.ExchangeTicker{}, false
	}
	last, err := strconv.ParseFloat(t.Last, 64)
	if err != nil || last <= 0 {
		return domain.ExchangeTicker{}, false
	}
	change, _ := strconv.ParseFloat(t.ChangePercentage, 64)
	return domain.ExchangeTicker{
		Exchange:         g.Name(),
		Symbol:           base,
		LastPrice:        last,
		Change24hPercent: change,
	}, true
}
