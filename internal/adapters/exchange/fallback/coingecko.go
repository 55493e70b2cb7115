// Package fallback implements the slow universal price lookup keyed by
// asset id. It covers assets no fast-path exchange trades, at the cost of
// aggressive upstream rate limits, which is why the waterfall guards it
// with a per-asset cooldown.
package fallback

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"pricewaterfall/internal/adapters/exchange/httpx"
	"pricewaterfall/internal/core/domain"
)

const defaultBaseURL = "https://api.coingecko.com"

type CoinGeckoClient struct {
	client  *httpx.Client
	baseURL string
}

func NewCoinGeckoClient(baseURL string, client *httpx.Client) *CoinGeckoClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &CoinGeckoClient{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (c *CoinGeckoClient) Name() string { return "coingecko" }

type geckoEntry struct {
	USD          float64 `json:"usd"`
	USD24hChange float64 `json:"usd_24h_change"`
}

// FetchAsset looks up the USD price and 24h change for one asset id. A
// missing id in the response (unknown asset) and a zero price are both
// reported as domain.ErrProviderUnavailable; the waterfall decides whether
// that becomes a cached answer or not-found.
func (c *CoinGeckoClient) FetchAsset(ctx context.Context, assetID string) (*domain.FallbackQuote, error) {
	u := fmt.Sprintf("%s/api/v3/simple/price?ids=%s&vs_currencies=usd&include_24hr_change=true",
		c.baseURL, url.QueryEscape(assetID))

	var raw map[string]geckoEntry
	if err := c.client.GetJSON(ctx, u, &raw); err != nil {
		return nil, fmt.Errorf("%w: fallback lookup for %s: %v", domain.ErrProviderUnavailable, assetID, err)
	}

	entry, ok := raw[assetID]
	if !ok || entry.USD <= 0 {
		return nil, fmt.Errorf("%w: fallback has no usable price for %s", domain.ErrProviderUnavailable, assetID)
	}

	return &domain.FallbackQuote{
		AssetID:          assetID,
		PriceUSD:         entry.USD,
		Change24hPercent: entry.USD24hChange,
	}, nil
}
