// Package prices implements the provider waterfall: a layered resolution
// strategy that tries the fast primary exchange, then the prioritized
// secondary exchanges, then the durable cache, and finally the slow
// universal fallback guarded by a per-asset cooldown.
package prices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"pricewaterfall/internal/core/domain"
	"pricewaterfall/internal/core/port"
	"pricewaterfall/internal/core/service/ratelimit"
	"pricewaterfall/internal/core/service/symbols"
)

// Config carries the waterfall's timing knobs and the seed list of assets
// the refresh loop keeps warm.
type Config struct {
	FallbackCooldown time.Duration
	RefreshCooldown  time.Duration
	TrackedAssets    []domain.TrackedAsset
}

type Service struct {
	store     port.QuoteStore
	primary   port.PrimaryFeed
	secondary port.SecondaryAggregator
	fallback  port.FallbackProvider
	limiter   *ratelimit.Limiter
	resolver  *symbols.Resolver
	cfg       Config

	// Collapses concurrent in-process resolutions of the same asset.
	group singleflight.Group
}

func NewService(
	store port.QuoteStore,
	primary port.PrimaryFeed,
	secondary port.SecondaryAggregator,
	fallback port.FallbackProvider,
	limiter *ratelimit.Limiter,
	resolver *symbols.Resolver,
	cfg Config,
) *Service {
	if cfg.FallbackCooldown <= 0 {
		cfg.FallbackCooldown = 60 * time.Second
	}
	if cfg.RefreshCooldown <= 0 {
		cfg.RefreshCooldown = 30 * time.Second
	}
	return &Service{
		store:     store,
		primary:   primary,
		secondary: secondary,
		fallback:  fallback,
		limiter:   limiter,
		resolver:  resolver,
		cfg:       cfg,
	}
}

// GetCurrentQuote resolves the current price for one asset. Concurrent
// calls for the same asset share a single resolution.
func (s *Service) GetCurrentQuote(ctx context.Context, assetID, hintSymbol string) (*domain.PriceQuote, error) {
	id := symbols.NormalizeAssetID(assetID)
	if id == "" {
		return nil, fmt.Errorf("%w: empty asset id", domain.ErrInvalidAsset)
	}

	v, err, _ := s.group.Do(id+"|"+hintSymbol, func() (interface{}, error) {
		return s.resolve(ctx, id, hintSymbol)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.PriceQuote), nil
}

// resolve walks the waterfall for one normalized asset id.
func (s *Service) resolve(ctx context.Context, id, hintSymbol string) (*domain.PriceQuote, error) {
	sym := s.resolver.Resolve(id, hintSymbol)

	if sym != "" {
		if ticker, err := s.primary.FetchSymbol(ctx, sym); err == nil {
			return s.persistTicker(ctx, id, ticker, domain.SourcePrimary), nil
		} else {
			slog.Debug("primary feed miss", "asset", id, "symbol", sym, "error", err)
		}

		if ticker, err := s.secondary.FetchSymbol(ctx, sym); err == nil {
			return s.persistTicker(ctx, id, ticker, ticker.Exchange), nil
		} else {
			slog.Debug("secondary feeds miss", "asset", id, "symbol", sym, "error", err)
		}
	}

	cached, err := s.store.GetQuote(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("cache lookup for %s: %w", id, err)
	}
	if cached != nil && cached.PriceUSD > 0 {
		served := *cached
		served.Source = domain.SourceCache
		return &served, nil
	}

	return s.resolveViaFallback(ctx, id, hintSymbol, sym, cached)
}

// resolveViaFallback is the last waterfall step: the universal provider,
// allowed at most once per asset per cooldown window.
func (s *Service) resolveViaFallback(ctx context.Context, id, hintSymbol, sym string, cached *domain.PriceQuote) (*domain.PriceQuote, error) {
	allowed, err := s.limiter.Debounce(ctx, ratelimit.FallbackCooldownKey(id), s.cfg.FallbackCooldown)
	if err != nil {
		return nil, fmt.Errorf("fallback cooldown check for %s: %w", id, err)
	}
	if !allowed {
		if cached != nil {
			served := *cached
			served.Source = domain.SourceCache
			return &served, nil
		}
		return nil, fmt.Errorf("%w: fallback for %s is cooling down", domain.ErrCooldownActive, id)
	}

	fq, err := s.fallback.FetchAsset(ctx, id)
	if err != nil {
		slog.Warn("fallback lookup failed", "asset", id, "provider", s.fallback.Name(), "error", err)
		if cached != nil {
			served := *cached
			served.Source = domain.SourceCache
			return &served, nil
		}
		return nil, fmt.Errorf("%w: no provider has a price for %s", domain.ErrNotFound, id)
	}

	quote := domain.PriceQuote{
		AssetID:          id,
		Symbol:           s.bestKnownSymbol(sym, hintSymbol, cached, id),
		PriceUSD:         fq.PriceUSD,
		Change24hPercent: fq.Change24hPercent,
		UpdatedAt:        time.Now().UTC(),
		Source:           domain.SourceFallback,
	}
	s.persist(ctx, quote)
	return &quote, nil
}

// bestKnownSymbol picks a display symbol for a fallback-sourced quote,
// preferring resolved over hinted over previously stored.
func (s *Service) bestKnownSymbol(resolved, hint string, cached *domain.PriceQuote, id string) string {
	if resolved != "" {
		return resolved
	}
	if h := strings.ToUpper(strings.TrimSpace(hint)); h != "" {
		return h
	}
	if cached != nil && cached.Symbol != "" {
		return cached.Symbol
	}
	return strings.ToUpper(id)
}

func (s *Service) persistTicker(ctx context.Context, id string, ticker *domain.ExchangeTicker, source string) *domain.PriceQuote {
	quote := domain.PriceQuote{
		AssetID:          id,
		Symbol:           ticker.Symbol,
		PriceUSD:         ticker.LastPrice,
		Change24hPercent: ticker.Change24hPercent,
		UpdatedAt:        time.Now().UTC(),
		Source:           source,
	}
	s.persist(ctx, quote)
	return &quote
}

// persist writes through to the durable store. A failed write is logged
// but does not fail the resolution: the caller still gets the live quote.
func (s *Service) persist(ctx context.Context, quote domain.PriceQuote) {
	if err := s.store.UpsertQuote(ctx, quote); err != nil {
		slog.Error("quote write-through failed", "asset", quote.AssetID, "source", quote.Source, "error", err)
	}
}

// RefreshAll re-resolves every tracked asset. The execution is collapsed
// across instances: only the caller that wins the shared debounce flag
// actually refreshes, everyone else returns immediately with ran=false.
// The refresh itself runs on a detached context so an impatient caller
// cannot cancel work shared by the whole deployment.
func (s *Service) RefreshAll(ctx context.Context) (bool, error) {
	won, err := s.limiter.Debounce(ctx, ratelimit.RefreshDebounceKey(), s.cfg.RefreshCooldown)
	if err != nil {
		return false, fmt.Errorf("refresh debounce: %w", err)
	}
	if !won {
		return false, nil
	}

	done := make(chan error, 1)
	go func() {
		refreshCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		done <- s.refreshTracked(refreshCtx)
	}()

	select {
	case err := <-done:
		return true, err
	case <-ctx.Done():
		// Refresh continues in the background.
		return true, nil
	}
}

func (s *Service) refreshTracked(ctx context.Context) error {
	tracked, err := s.trackedAssets(ctx)
	if err != nil {
		return err
	}

	// One bulk fetch covers the secondary step for every asset.
	merged, err := s.secondary.FetchAll(ctx)
	if err != nil {
		slog.Warn("secondary bulk fetch failed during refresh", "error", err)
		merged = nil
	}

	var failed int
	for _, asset := range tracked {
		if err := s.refreshOne(ctx, asset, merged); err != nil {
			failed++
			slog.Warn("refresh failed for asset", "asset", asset.AssetID, "error", err)
		}
	}
	slog.Info("refresh completed", "assets", len(tracked), "failed", failed)
	if failed == len(tracked) && len(tracked) > 0 {
		return fmt.Errorf("%w: refresh could not resolve any tracked asset", domain.ErrProviderUnavailable)
	}
	return nil
}

// refreshOne mirrors the per-request waterfall but consults the bulk
// secondary snapshot instead of issuing per-symbol secondary calls, and
// never serves from cache (refresh exists to replace the cache).
func (s *Service) refreshOne(ctx context.Context, asset domain.TrackedAsset, merged map[string]domain.ExchangeTicker) error {
	id := symbols.NormalizeAssetID(asset.AssetID)
	if id == "" {
		return nil
	}
	sym := s.resolver.Resolve(id, asset.Symbol)

	if sym != "" {
		if ticker, err := s.primary.FetchSymbol(ctx, sym); err == nil {
			s.persistTicker(ctx, id, ticker, domain.SourcePrimary)
			return nil
		}
		if ticker, ok := merged[sym]; ok {
			s.persistTicker(ctx, id, &ticker, ticker.Exchange)
			return nil
		}
	}

	_, err := s.resolveViaFallback(ctx, id, asset.Symbol, sym, nil)
	if errors.Is(err, domain.ErrCooldownActive) {
		// Still cooling down from a previous attempt; the cached quote
		// stays current until the next cycle.
		return nil
	}
	return err
}

// trackedAssets is the union of the configured seed list and every asset
// that already has a stored quote.
func (s *Service) trackedAssets(ctx context.Context) ([]domain.TrackedAsset, error) {
	stored, err := s.store.ListTracked(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tracked assets: %w", err)
	}

	seen := make(map[string]bool, len(stored)+len(s.cfg.TrackedAssets))
	assets := make([]domain.TrackedAsset, 0, len(stored)+len(s.cfg.TrackedAssets))
	for _, a := range s.cfg.TrackedAssets {
		id := symbols.NormalizeAssetID(a.AssetID)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		assets = append(assets, domain.TrackedAsset{AssetID: id, Symbol: a.Symbol})
	}
	for _, a := range stored {
		if seen[a.AssetID] {
			continue
		}
		seen[a.AssetID] = true
		assets = append(assets, a)
	}
	return assets, nil
}

// ListCurrentQuotes returns every stored quote plus the overall as-of
// timestamp computed by the freshness evaluator.
func (s *Service) ListCurrentQuotes(ctx context.Context) ([]domain.PriceQuote, *time.Time, error) {
	quotes, err := s.store.ListQuotes(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("listing quotes: %w", err)
	}
	return quotes, s.oldestRelevantUpdate(quotes), nil
}

// GetHistory returns the most recent limit history points for an asset in
// chronological order.
func (s *Service) GetHistory(ctx context.Context, assetID string, limit int) ([]domain.PriceHistoryPoint, error) {
	id := symbols.NormalizeAssetID(assetID)
	if id == "" {
		return nil, fmt.Errorf("%w: empty asset id", domain.ErrInvalidAsset)
	}
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	points, err := s.store.GetHistory(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("history for %s: %w", id, err)
	}
	if len(points) == 0 {
		// Distinguish "no history yet" from "unknown asset".
		if _, err := s.store.GetQuote(ctx, id); err != nil {
			return nil, err
		}
	}
	return points, nil
}
