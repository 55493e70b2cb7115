package secondary

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewaterfall/internal/core/domain"
)

// fakeExchange implements port.SecondaryExchange with canned data.
type fakeExchange struct {
	name    string
	tickers []domain.ExchangeTicker
	err     error
	calls   int
}

func (f *fakeExchange) Name() string { return f.name }

func (f *fakeExchange) FetchAll(context.Context) ([]domain.ExchangeTicker, error) {
	f.calls++
	return f.tickers, f.err
}

func (f *fakeExchange) FetchSymbol(_ context.Context, symbol string) (*domain.ExchangeTicker, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	for _, t := range f.tickers {
		if t.Symbol == symbol {
			return &t, nil
		}
	}
	return nil, domain.ErrProviderUnavailable
}

func ticker(exchange, symbol string, price float64) domain.ExchangeTicker {
	return domain.ExchangeTicker{Exchange: exchange, Symbol: symbol, LastPrice: price}
}

func TestFetchAll_FirstPriorityProviderWinsPerSymbol(t *testing.T) {
	a := &fakeExchange{name: "a", tickers: []domain.ExchangeTicker{ticker("a", "SOL", 100)}}
	b := &fakeExchange{name: "b", tickers: []domain.ExchangeTicker{ticker("b", "SOL", 102), ticker("b", "ETH", 3000)}}
	c := &fakeExchange{name: "c", tickers: []domain.ExchangeTicker{ticker("c", "SOL", 103), ticker("c", "DOGE", 0.2)}}
	d := &fakeExchange{name: "d", tickers: []domain.ExchangeTicker{ticker("d", "SOL", 104), ticker("d", "XRP", 0.6)}}

	agg := NewAggregator(time.Second, a, b, c, d)
	merged, err := agg.FetchAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 100.0, merged["SOL"].LastPrice, "highest-priority exchange wins")
	assert.Equal(t, "a", merged["SOL"].Exchange)
	assert.Equal(t, 3000.0, merged["ETH"].LastPrice, "later exchanges fill gaps")
	assert.Equal(t, 0.2, merged["DOGE"].LastPrice)
	assert.Equal(t, 0.6, merged["XRP"].LastPrice)
}

func TestFetchAll_FailedExchangeContributesNothing(t *testing.T) {
	a := &fakeExchange{name: "a", err: errors.New("timeout")}
	b := &fakeExchange{name: "b", tickers: []domain.ExchangeTicker{ticker("b", "ETH", 3000)}}

	agg := NewAggregator(time.Second, a, b)
	merged, err := agg.FetchAll(context.Background())
	require.NoError(t, err)

	assert.Len(t, merged, 1)
	assert.Equal(t, "b", merged["ETH"].Exchange)
}

func TestFetchSymbol_ShortCircuitsOnFirstHit(t *testing.T) {
	a := &fakeExchange{name: "a", tickers: []domain.ExchangeTicker{ticker("a", "SOL", 100)}}
	b := &fakeExchange{name: "b", tickers: []domain.ExchangeTicker{ticker("b", "SOL", 102)}}

	agg := NewAggregator(time.Second, a, b)
	got, err := agg.FetchSymbol(context.Background(), "SOL")
	require.NoError(t, err)

	assert.Equal(t, 100.0, got.LastPrice, "first exchange's value wins even when later ones disagree")
	assert.Equal(t, 0, b.calls, "lower-priority exchanges are not consulted")
}

func TestFetchSymbol_SkipsFailingExchanges(t *testing.T) {
	a := &fakeExchange{name: "a", err: errors.New("down")}
	b := &fakeExchange{name: "b", tickers: []domain.ExchangeTicker{ticker("b", "SOL", 102)}}

	agg := NewAggregator(time.Second, a, b)
	got, err := agg.FetchSymbol(context.Background(), "SOL")
	require.NoError(t, err)
	assert.Equal(t, "b", got.Exchange)
}

func TestFetchSymbol_AllMissIsProviderUnavailable(t *testing.T) {
	a := &fakeExchange{name: "a"}
	b := &fakeExchange{name: "b", err: errors.New("down")}

	agg := NewAggregator(time.Second, a, b)
	_, err := agg.FetchSymbol(context.Background(), "SOL")
	assert.True(t, errors.Is(err, domain.ErrProviderUnavailable))
}

func TestMerge_DropsInvalidTickers(t *testing.T) {
	merged := Merge([][]domain.ExchangeTicker{
		{ticker("a", "", 10), ticker("a", "BTC", 0)},
		{ticker("b", "BTC", 64000)},
	})

	assert.Len(t, merged, 1)
	assert.Equal(t, "b", merged["BTC"].Exchange)
}
