package primary

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewaterfall/internal/adapters/exchange/httpx"
	"pricewaterfall/internal/core/domain"
)

func TestFetchSymbol_ParsesTicker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/24hr", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		w.Write([]byte(`{"symbol":"BTCUSDT","lastPrice":"64250.10","priceChangePercent":"-1.25"}`))
	}))
	defer srv.Close()

	c := NewBinanceClient(srv.URL, httpx.New(2*time.Second))
	ticker, err := c.FetchSymbol(context.Background(), "BTC")
	require.NoError(t, err)

	assert.Equal(t, "binance", ticker.Exchange)
	assert.Equal(t, "BTC", ticker.Symbol)
	assert.Equal(t, 64250.10, ticker.LastPrice)
	assert.Equal(t, -1.25, ticker.Change24hPercent)
}

func TestFetchSymbol_BadStatusIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewBinanceClient(srv.URL, httpx.New(2*time.Second))
	_, err := c.FetchSymbol(context.Background(), "NOPE")
	assert.True(t, errors.Is(err, domain.ErrProviderUnavailable))
}

func TestFetchSymbol_ZeroPriceIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol":"XUSDT","lastPrice":"0.0","priceChangePercent":"0"}`))
	}))
	defer srv.Close()

	c := NewBinanceClient(srv.URL, httpx.New(2*time.Second))
	_, err := c.FetchSymbol(context.Background(), "X")
	assert.True(t, errors.Is(err, domain.ErrProviderUnavailable))
}

func TestFetchSymbol_TransportErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	c := NewBinanceClient(srv.URL, httpx.New(500*time.Millisecond))
	_, err := c.FetchSymbol(context.Background(), "BTC")
	assert.True(t, errors.Is(err, domain.ErrProviderUnavailable))
}
