// Package weather provides cached multi-day forecasts for trip destinations.
package weather

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kjstillabower/travel-planner/internal/cache"
	"github.com/kjstillabower/travel-planner/internal/models"
	"github.com/kjstillabower/travel-planner/internal/observability"
)

// Source produces a forecast when the cache has none.
type Source interface {
	Fetch(ctx context.Context, location string, start time.Time, days int) (models.WeatherForecast, error)
}

// Provider is what callers depend on; *Service implements it.
type Provider interface {
	Forecast(ctx context.Context, location string, start time.Time, days int) (models.WeatherForecast, error)
}

// Service serves forecasts cache-aside over a Source. Concurrent misses for the
// same key share one Source call.
type Service struct {
	cache  cache.Cache[models.WeatherForecast]
	source Source
	group  singleflight.Group
}

// NewService returns a Service. A nil source uses StubSource.
func NewService(c cache.Cache[models.WeatherForecast], source Source) *Service {
	if source == nil {
		source = StubSource{}
	}
	return &Service{cache: c, source: source}
}

// CacheKey returns the cache key for a forecast starting on start.
// The day count is not part of the key: a cached forecast is served as-is for
// any num_days with the same location and start date.
func CacheKey(location string, start time.Time) string {
	return fmt.Sprintf("weather_%s_%s", NormalizeLocation(location), start.Format("20060102"))
}

// NormalizeLocation trims whitespace and lower-cases location.
func NormalizeLocation(location string) string {
	return strings.ToLower(strings.TrimSpace(location))
}

// Forecast returns the forecast for location from start over days days.
// Cache errors are logged and treated as misses.
func (s *Service) Forecast(ctx context.Context, location string, start time.Time, days int) (models.WeatherForecast, error) {
	logger := observability.LoggerFromContext(ctx)
	key := CacheKey(location, start)

	cached, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("get").Inc()
		logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		observability.CacheHitsTotal.WithLabelValues("weather").Inc()
		logger.Debug("cache hit", zap.String("key", key))
		return cached, nil
	}
	observability.CacheMissesTotal.WithLabelValues("weather").Inc()

	ch := s.group.DoChan(key, func() (interface{}, error) {
		// Detached from the first caller's cancellation so waiters are not failed by it.
		fetchCtx := context.WithoutCancel(ctx)
		forecast, err := s.source.Fetch(fetchCtx, strings.TrimSpace(location), start, days)
		if err != nil {
			return models.WeatherForecast{}, err
		}
		if err := s.cache.Set(fetchCtx, key, forecast); err != nil {
			observability.CacheErrorsTotal.WithLabelValues("set").Inc()
			logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		}
		return forecast, nil
	})

	select {
	case <-ctx.Done():
		return models.WeatherForecast{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return models.WeatherForecast{}, fmt.Errorf("fetch forecast for %s: %w", NormalizeLocation(location), res.Err)
		}
		if res.Shared {
			logger.Debug("forecast fetch coalesced", zap.String("key", key))
		}
		return res.Val.(models.WeatherForecast), nil
	}
}
