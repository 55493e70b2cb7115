package health

import (
	"context"
	"fmt"
	"time"

	"pricewaterfall/internal/core/domain"
	"pricewaterfall/internal/core/port"
)

// staleAfter is the age past which the stored quotes count as stale for
// the detailed health view.
const staleAfter = 15 * time.Minute

type HealthService struct {
	store port.QuoteStore
	kv    port.KeyValue
}

func NewHealthService(store port.QuoteStore, kv port.KeyValue) port.HealthService {
	return &HealthService{
		store: store,
		kv:    kv,
	}
}

func (s *HealthService) GetSystemHealth(ctx context.Context) (*domain.HealthStatus, error) {
	status := &domain.HealthStatus{
		Components: make(map[string]string),
		Timestamp:  time.Now().Unix(),
	}

	allHealthy := true

	// Check PostgreSQL
	if s.store != nil {
		if err := s.store.Ping(ctx); err != nil {
			status.Components["database"] = "unhealthy"
			allHealthy = false
		} else {
			status.Components["database"] = "healthy"
		}
	} else {
		status.Components["database"] = "unavailable"
		allHealthy = false
	}

	// Check Redis
	if s.kv != nil {
		if err := s.kv.Ping(ctx); err != nil {
			status.Components["limiter_store"] = "unhealthy"
			allHealthy = false
		} else {
			status.Components["limiter_store"] = "healthy"
		}
	} else {
		status.Components["limiter_store"] = "unavailable"
		allHealthy = false
	}

	if allHealthy {
		status.Status = "healthy"
		status.Message = "All systems operational"
	} else if status.Components["database"] != "healthy" {
		// Without the durable store neither cache reads nor write-through
		// work, so the service cannot answer anything.
		status.Status = "unhealthy"
		status.Message = "Durable price store is down"
	} else {
		// Without the limiter store cooldowns fail closed; resolution is
		// degraded but cached answers still flow.
		status.Status = "degraded"
		status.Message = "Some components are not fully operational"
	}

	return status, nil
}

func (s *HealthService) GetDetailedHealth(ctx context.Context) (*domain.HealthStatus, error) {
	status, err := s.GetSystemHealth(ctx)
	if err != nil {
		return nil, err
	}

	if s.store != nil && status.Components["database"] == "healthy" {
		quotes, err := s.store.ListQuotes(ctx)
		if err == nil {
			status.Components["tracked_assets"] = fmt.Sprintf("%d", len(quotes))
			status.Components["data_freshness"] = freshnessOf(quotes)
		}
	}

	if s.kv != nil && status.Components["limiter_store"] == "healthy" {
		if keys, err := s.kv.Keys(ctx, "cooldown:fallback:*"); err == nil {
			status.Components["active_fallback_cooldowns"] = fmt.Sprintf("%d", len(keys))
		}
	}

	return status, nil
}

func freshnessOf(quotes []domain.PriceQuote) string {
	if len(quotes) == 0 {
		return "empty"
	}
	oldest := quotes[0].UpdatedAt
	for _, q := range quotes[1:] {
		if q.UpdatedAt.Before(oldest) {
			oldest = q.UpdatedAt
		}
	}
	if time.Since(oldest) > staleAfter {
		return "stale"
	}
	return "fresh"
}
