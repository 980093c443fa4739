package service

import (
	"context"
	"strconv"

	"github.com/andresuchdata/freshflow-go/internal/cache"
	"github.com/andresuchdata/freshflow-go/internal/domain"
	"github.com/rs/zerolog/log"
)

// InsightsService serves the read-heavy catalogue queries through a
// cache-aside layer. Cache failures are logged and never fail a request.
type InsightsService struct {
	provider *EngineProvider
	cache    cache.InsightsCache
}

func NewInsightsService(provider *EngineProvider, cacheImpl cache.InsightsCache) *InsightsService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopInsightsCache()
	}
	s := &InsightsService{provider: provider, cache: cacheImpl}
	provider.OnReload(func(ctx context.Context, _ *Engine) {
		if err := s.cache.InvalidateAll(ctx); err != nil {
			log.Warn().Err(err).Msg("insights: cache invalidate failed")
		}
	})
	return s
}

func cached[T any](ctx context.Context, s *InsightsService, op string, params cache.Params, compute func(*Engine) (T, error)) (T, error) {
	var zero T
	e, err := s.provider.Engine(ctx)
	if err != nil {
		return zero, err
	}
	if params == nil {
		params = cache.Params{}
	}
	params["generation"] = strconv.FormatInt(e.BuiltAt().UnixNano(), 10)

	var hit T
	if ok, err := s.cache.Get(ctx, op, params, &hit); err == nil && ok {
		return hit, nil
	} else if err != nil {
		log.Warn().Err(err).Str("op", op).Msg("insights: cache get failed")
	}

	value, err := compute(e)
	if err != nil {
		return zero, err
	}

	if err := s.cache.Set(ctx, op, params, value); err != nil {
		log.Warn().Err(err).Str("op", op).Msg("insights: cache set failed")
	}
	return value, nil
}

func optionalID(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}

func (s *InsightsService) Summary(ctx context.Context, itemID, locationID *int64, lastNDays int) (domain.DemandSummary, error) {
	params := cache.Params{"item_id": optionalID(itemID), "location_id": optionalID(locationID), "last_n_days": strconv.Itoa(lastNDays)}
	return cached(ctx, s, "summary", params, func(e *Engine) (domain.DemandSummary, error) {
		return e.GetDemandSummary(itemID, locationID, lastNDays)
	})
}

func (s *InsightsService) History(ctx context.Context, lastNDays int) ([]domain.HistoryPoint, error) {
	return cached(ctx, s, "history", cache.Params{"last_n_days": strconv.Itoa(lastNDays)}, func(e *Engine) ([]domain.HistoryPoint, error) {
		return e.GetDemandHistory(ctx, lastNDays)
	})
}

func (s *InsightsService) TopItems(ctx context.Context, n int, by domain.RankBy) ([]domain.TopItem, error) {
	return cached(ctx, s, "top_items", cache.Params{"n": strconv.Itoa(n), "by": string(by)}, func(e *Engine) ([]domain.TopItem, error) {
		return e.GetTopItems(n, by)
	})
}

func (s *InsightsService) BestSellers(ctx context.Context, n int) ([]domain.BestSeller, error) {
	return cached(ctx, s, "best_sellers", cache.Params{"n": strconv.Itoa(n)}, func(e *Engine) ([]domain.BestSeller, error) {
		return e.GetBestSellers(n)
	})
}

func (s *InsightsService) SlowMovers(ctx context.Context, n int, maxDailyAvg float64) ([]domain.SlowMover, error) {
	params := cache.Params{"n": strconv.Itoa(n), "max_daily_avg": strconv.FormatFloat(maxDailyAvg, 'f', -1, 64)}
	return cached(ctx, s, "slow_movers", params, func(e *Engine) ([]domain.SlowMover, error) {
		return e.GetSlowMovingItems(n, maxDailyAvg)
	})
}

func (s *InsightsService) BundleSuggestions(ctx context.Context, minPairs, topN int) ([]domain.BundleSuggestion, error) {
	params := cache.Params{"min_pairs": strconv.Itoa(minPairs), "top_n": strconv.Itoa(topN)}
	return cached(ctx, s, "bundle_suggestions", params, func(e *Engine) ([]domain.BundleSuggestion, error) {
		return e.GetBundleSuggestions(minPairs, topN)
	})
}
