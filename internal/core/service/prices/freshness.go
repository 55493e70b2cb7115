package prices

import (
	"time"

	"pricewaterfall/internal/core/domain"
)

// oldestRelevantUpdate computes the overall as-of timestamp for a quote
// listing: the oldest UpdatedAt among assets the fast-path feeds can
// serve. Assets with no resolvable ticker symbol refresh on the slow
// fallback cadence and would drag the timestamp back for everyone, so
// they only count when no fast-path asset exists at all. Returns nil for
// an empty listing.
func (s *Service) oldestRelevantUpdate(quotes []domain.PriceQuote) *time.Time {
	var eligible, all *time.Time
	for i := range quotes {
		q := &quotes[i]
		if all == nil || q.UpdatedAt.Before(*all) {
			all = &q.UpdatedAt
		}
		if s.resolver.Resolve(q.AssetID, q.Symbol) == "" {
			continue
		}
		if eligible == nil || q.UpdatedAt.Before(*eligible) {
			eligible = &q.UpdatedAt
		}
	}
	if eligible != nil {
		return eligible
	}
	return all
}
