package prices

import (
	"context"
	"fmt"
	"math"
	"time"

	"pricewaterfall/internal/core/domain"
	"pricewaterfall/internal/core/service/symbols"
)

// Lookback bounds for volatility queries, in days.
const (
	MinLookbackDays = 7
	MaxLookbackDays = 365
)

// ComputeVolatilities returns, per asset, the population standard
// deviation of simple returns over the lookback window. Population rather
// than sample: an asset with exactly two history points has one return,
// where the sample estimator is undefined, and a flat price must still
// report zero volatility. Assets with fewer than two points in the window
// yield no entry. An empty assetIDs selects every tracked asset.
func (s *Service) ComputeVolatilities(ctx context.Context, lookbackDays int, assetIDs []string) (map[string]float64, error) {
	if lookbackDays < MinLookbackDays || lookbackDays > MaxLookbackDays {
		return nil, fmt.Errorf("%w: lookback must be between %d and %d days, got %d",
			domain.ErrInvalidLookback, MinLookbackDays, MaxLookbackDays, lookbackDays)
	}

	ids, err := s.volatilityTargets(ctx, assetIDs)
	if err != nil {
		return nil, err
	}

	since := time.Now().UTC().AddDate(0, 0, -lookbackDays)
	result := make(map[string]float64, len(ids))
	for _, id := range ids {
		points, err := s.store.GetHistorySince(ctx, id, since)
		if err != nil {
			return nil, fmt.Errorf("history for %s: %w", id, err)
		}
		if vol, ok := volatilityOf(points); ok {
			result[id] = vol
		}
	}
	return result, nil
}

func (s *Service) volatilityTargets(ctx context.Context, assetIDs []string) ([]string, error) {
	if len(assetIDs) > 0 {
		ids := make([]string, 0, len(assetIDs))
		for _, raw := range assetIDs {
			if id := symbols.NormalizeAssetID(raw); id != "" {
				ids = append(ids, id)
			}
		}
		return ids, nil
	}

	tracked, err := s.trackedAssets(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(tracked))
	for _, a := range tracked {
		ids = append(ids, a.AssetID)
	}
	return ids, nil
}

// volatilityOf reduces a chronological price series to the population
// standard deviation of its simple returns. Intervals starting at a
// non-positive price are skipped.
func volatilityOf(points []domain.PriceHistoryPoint) (float64, bool) {
	if len(points) < 2 {
		return 0, false
	}

	returns := make([]float64, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		prev := points[i-1].PriceUSD
		if prev <= 0 {
			continue
		}
		returns = append(returns, (points[i].PriceUSD-prev)/prev)
	}
	if len(returns) == 0 {
		return 0, false
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns))

	return math.Sqrt(variance), true
}
