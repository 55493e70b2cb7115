package prices

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewaterfall/internal/core/domain"
	"pricewaterfall/internal/core/service/ratelimit"
	"pricewaterfall/internal/core/service/symbols"
)

// In-memory test doubles for the store, feeds and shared key-value store.

type fakeStore struct {
	mu      sync.Mutex
	quotes  map[string]domain.PriceQuote
	history map[string][]domain.PriceHistoryPoint
	upserts int
	err     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		quotes:  make(map[string]domain.PriceQuote),
		history: make(map[string][]domain.PriceHistoryPoint),
	}
}

func (f *fakeStore) UpsertQuote(_ context.Context, quote domain.PriceQuote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.upserts++
	f.quotes[quote.AssetID] = quote
	f.history[quote.AssetID] = append(f.history[quote.AssetID], domain.PriceHistoryPoint{
		AssetID:    quote.AssetID,
		PriceUSD:   quote.PriceUSD,
		RecordedAt: quote.UpdatedAt,
	})
	return nil
}

func (f *fakeStore) GetQuote(_ context.Context, assetID string) (*domain.PriceQuote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	q, ok := f.quotes[assetID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &q, nil
}

func (f *fakeStore) ListQuotes(context.Context) ([]domain.PriceQuote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.PriceQuote, 0, len(f.quotes))
	for _, q := range f.quotes {
		out = append(out, q)
	}
	return out, nil
}

func (f *fakeStore) ListTracked(context.Context) ([]domain.TrackedAsset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.TrackedAsset, 0, len(f.quotes))
	for id, q := range f.quotes {
		out = append(out, domain.TrackedAsset{AssetID: id, Symbol: q.Symbol})
	}
	return out, nil
}

func (f *fakeStore) GetHistory(_ context.Context, assetID string, limit int) ([]domain.PriceHistoryPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	points := f.history[assetID]
	if len(points) > limit {
		points = points[len(points)-limit:]
	}
	return points, nil
}

func (f *fakeStore) GetHistorySince(_ context.Context, assetID string, since time.Time) ([]domain.PriceHistoryPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.PriceHistoryPoint
	for _, p := range f.history[assetID] {
		if !p.RecordedAt.Before(since) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }

type fakePrimary struct {
	mu      sync.Mutex
	tickers map[string]domain.ExchangeTicker
	calls   int
}

func (f *fakePrimary) Name() string { return "primary-fake" }

func (f *fakePrimary) FetchSymbol(_ context.Context, symbol string) (*domain.ExchangeTicker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	t, ok := f.tickers[symbol]
	if !ok {
		return nil, domain.ErrProviderUnavailable
	}
	return &t, nil
}

type fakeSecondary struct {
	mu      sync.Mutex
	tickers map[string]domain.ExchangeTicker
	calls   int
}

func (f *fakeSecondary) FetchAll(context.Context) (map[string]domain.ExchangeTicker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	out := make(map[string]domain.ExchangeTicker, len(f.tickers))
	for k, v := range f.tickers {
		out[k] = v
	}
	return out, nil
}

func (f *fakeSecondary) FetchSymbol(_ context.Context, symbol string) (*domain.ExchangeTicker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	t, ok := f.tickers[symbol]
	if !ok {
		return nil, domain.ErrProviderUnavailable
	}
	return &t, nil
}

type fakeFallback struct {
	mu     sync.Mutex
	quotes map[string]domain.FallbackQuote
	calls  int
}

func (f *fakeFallback) Name() string { return "fallback-fake" }

func (f *fakeFallback) FetchAsset(_ context.Context, assetID string) (*domain.FallbackQuote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	q, ok := f.quotes[assetID]
	if !ok {
		return nil, domain.ErrProviderUnavailable
	}
	return &q, nil
}

type fakeKV struct {
	mu    sync.Mutex
	flags map[string]bool
}

func newFakeKV() *fakeKV { return &fakeKV{flags: make(map[string]bool)} }

func (f *fakeKV) Increment(_ context.Context, key string, _ time.Duration) (int64, error) {
	return 1, nil
}

func (f *fakeKV) SetIfAbsent(_ context.Context, key string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.flags[key] {
		return false, nil
	}
	f.flags[key] = true
	return true, nil
}

func (f *fakeKV) expire(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.flags, key)
}

func (f *fakeKV) Keys(context.Context, string) ([]string, error) { return nil, nil }

func (f *fakeKV) TTL(context.Context, string) (time.Duration, error) { return 0, nil }

func (f *fakeKV) Ping(context.Context) error { return nil }

type fixture struct {
	store     *fakeStore
	primary   *fakePrimary
	secondary *fakeSecondary
	fallback  *fakeFallback
	kv        *fakeKV
	svc       *Service
}

func newFixture(cfg Config) *fixture {
	f := &fixture{
		store:     newFakeStore(),
		primary:   &fakePrimary{tickers: make(map[string]domain.ExchangeTicker)},
		secondary: &fakeSecondary{tickers: make(map[string]domain.ExchangeTicker)},
		fallback:  &fakeFallback{quotes: make(map[string]domain.FallbackQuote)},
		kv:        newFakeKV(),
	}
	f.svc = NewService(f.store, f.primary, f.secondary, f.fallback,
		ratelimit.NewLimiter(f.kv), symbols.NewResolver(nil), cfg)
	return f
}

func TestGetCurrentQuote_PrimaryHitPersistsWriteThrough(t *testing.T) {
	f := newFixture(Config{})
	f.primary.tickers["BTC"] = domain.ExchangeTicker{Exchange: "binance", Symbol: "BTC", LastPrice: 64000, Change24hPercent: 1.5}

	quote, err := f.svc.GetCurrentQuote(context.Background(), "bitcoin", "")
	require.NoError(t, err)

	assert.Equal(t, domain.SourcePrimary, quote.Source)
	assert.Equal(t, 64000.0, quote.PriceUSD)

	stored, err := f.store.GetQuote(context.Background(), "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, 64000.0, stored.PriceUSD)
	assert.Len(t, f.store.history["bitcoin"], 1, "write-through appends a history point")
}

func TestGetCurrentQuote_FallsThroughToSecondary(t *testing.T) {
	f := newFixture(Config{})
	f.secondary.tickers["ETH"] = domain.ExchangeTicker{Exchange: "bybit", Symbol: "ETH", LastPrice: 3100}

	quote, err := f.svc.GetCurrentQuote(context.Background(), "ethereum", "")
	require.NoError(t, err)

	assert.Equal(t, "bybit", quote.Source, "secondary quotes carry the exchange name")
	assert.Equal(t, 3100.0, quote.PriceUSD)
}

func TestGetCurrentQuote_CacheShortCircuitsBeforeFallback(t *testing.T) {
	f := newFixture(Config{})
	f.store.quotes["solana"] = domain.PriceQuote{
		AssetID: "solana", Symbol: "SOL", PriceUSD: 145, Source: domain.SourcePrimary,
		UpdatedAt: time.Now().Add(-time.Minute),
	}
	f.fallback.quotes["solana"] = domain.FallbackQuote{AssetID: "solana", PriceUSD: 146}

	quote, err := f.svc.GetCurrentQuote(context.Background(), "solana", "")
	require.NoError(t, err)

	assert.Equal(t, domain.SourceCache, quote.Source)
	assert.Equal(t, 145.0, quote.PriceUSD)
	assert.Equal(t, 0, f.fallback.calls, "a cached price must never reach the fallback provider")
}

func TestGetCurrentQuote_FallbackForUnlistedAsset(t *testing.T) {
	f := newFixture(Config{})
	f.fallback.quotes["some-obscure-coin"] = domain.FallbackQuote{
		AssetID: "some-obscure-coin", PriceUSD: 0.042, Change24hPercent: -7.5,
	}

	quote, err := f.svc.GetCurrentQuote(context.Background(), "some-obscure-coin", "")
	require.NoError(t, err)

	assert.Equal(t, domain.SourceFallback, quote.Source)
	assert.Equal(t, 0.042, quote.PriceUSD)
	assert.Equal(t, "SOME-OBSCURE-COIN", quote.Symbol, "asset id is the symbol of last resort")

	_, err = f.store.GetQuote(context.Background(), "some-obscure-coin")
	assert.NoError(t, err, "fallback results are persisted too")
}

func TestGetCurrentQuote_FallbackUsesHintSymbolWhenPresent(t *testing.T) {
	f := newFixture(Config{})
	f.fallback.quotes["pepe"] = domain.FallbackQuote{AssetID: "pepe", PriceUSD: 0.00001}

	quote, err := f.svc.GetCurrentQuote(context.Background(), "pepe", "pepe")
	require.NoError(t, err)
	assert.Equal(t, "PEPE", quote.Symbol)
}

func TestGetCurrentQuote_CooldownBlocksSecondFallbackAttempt(t *testing.T) {
	f := newFixture(Config{FallbackCooldown: time.Minute})

	// Nothing knows this asset: first call burns the cooldown and fails.
	_, err := f.svc.GetCurrentQuote(context.Background(), "ghost-coin", "")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Equal(t, 1, f.fallback.calls)

	// Second call inside the window must not touch the fallback again.
	_, err = f.svc.GetCurrentQuote(context.Background(), "ghost-coin", "")
	assert.True(t, errors.Is(err, domain.ErrCooldownActive))
	assert.Equal(t, 1, f.fallback.calls)

	// After expiry the fallback becomes reachable again.
	f.kv.expire(ratelimit.FallbackCooldownKey("ghost-coin"))
	_, err = f.svc.GetCurrentQuote(context.Background(), "ghost-coin", "")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Equal(t, 2, f.fallback.calls)
}

func TestGetCurrentQuote_CooldownServesStaleCacheInstead(t *testing.T) {
	f := newFixture(Config{FallbackCooldown: time.Minute})
	f.store.quotes["stale-coin"] = domain.PriceQuote{
		AssetID: "stale-coin", Symbol: "STALE", PriceUSD: 0, Source: domain.SourceFallback,
	}

	// Zero cached price does not satisfy the cache step, but once the
	// cooldown is burned the stale row is still better than an error.
	_, err := f.svc.GetCurrentQuote(context.Background(), "stale-coin", "")
	require.NoError(t, err) // fallback itself fails, cached row served
	assert.Equal(t, 1, f.fallback.calls)

	quote, err := f.svc.GetCurrentQuote(context.Background(), "stale-coin", "")
	require.NoError(t, err)
	assert.Equal(t, domain.SourceCache, quote.Source)
	assert.Equal(t, 1, f.fallback.calls)
}

func TestGetCurrentQuote_EmptyAssetIDIsInvalid(t *testing.T) {
	f := newFixture(Config{})
	_, err := f.svc.GetCurrentQuote(context.Background(), "   ", "BTC")
	assert.True(t, errors.Is(err, domain.ErrInvalidAsset))
}

func TestRefreshAll_OnlyOneConcurrentCallerRuns(t *testing.T) {
	f := newFixture(Config{
		RefreshCooldown: time.Minute,
		TrackedAssets:   []domain.TrackedAsset{{AssetID: "bitcoin"}},
	})
	f.primary.tickers["BTC"] = domain.ExchangeTicker{Exchange: "binance", Symbol: "BTC", LastPrice: 64000}

	const callers = 8
	var wg sync.WaitGroup
	ran := make(chan bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := f.svc.RefreshAll(context.Background())
			assert.NoError(t, err)
			ran <- ok
		}()
	}
	wg.Wait()
	close(ran)

	var winners int
	for ok := range ran {
		if ok {
			winners++
		}
	}
	assert.Equal(t, 1, winners, "the debounce flag admits exactly one refresh per window")
}

func TestRefreshAll_ResolvesSeedAndStoredAssets(t *testing.T) {
	f := newFixture(Config{
		RefreshCooldown: time.Minute,
		TrackedAssets:   []domain.TrackedAsset{{AssetID: "bitcoin"}},
	})
	f.store.quotes["ethereum"] = domain.PriceQuote{AssetID: "ethereum", Symbol: "ETH", PriceUSD: 3000}
	f.primary.tickers["BTC"] = domain.ExchangeTicker{Exchange: "binance", Symbol: "BTC", LastPrice: 64000}
	f.secondary.tickers["ETH"] = domain.ExchangeTicker{Exchange: "kucoin", Symbol: "ETH", LastPrice: 3100}

	ran, err := f.svc.RefreshAll(context.Background())
	require.NoError(t, err)
	require.True(t, ran)

	btc, err := f.store.GetQuote(context.Background(), "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, domain.SourcePrimary, btc.Source)

	eth, err := f.store.GetQuote(context.Background(), "ethereum")
	require.NoError(t, err)
	assert.Equal(t, 3100.0, eth.PriceUSD)
	assert.Equal(t, "kucoin", eth.Source, "refresh uses the bulk secondary snapshot")
}

func TestGetHistory_UnknownAssetIsNotFound(t *testing.T) {
	f := newFixture(Config{})
	_, err := f.svc.GetHistory(context.Background(), "nobody-home", 10)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestGetHistory_ReturnsChronologicalPoints(t *testing.T) {
	f := newFixture(Config{})
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		f.store.history["bitcoin"] = append(f.store.history["bitcoin"], domain.PriceHistoryPoint{
			AssetID: "bitcoin", PriceUSD: 64000 + float64(i), RecordedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	f.store.quotes["bitcoin"] = domain.PriceQuote{AssetID: "bitcoin"}

	points, err := f.svc.GetHistory(context.Background(), "Bitcoin", 2)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.True(t, points[0].RecordedAt.Before(points[1].RecordedAt))
	assert.Equal(t, 64002.0, points[1].PriceUSD, "the newest points are kept")
}
