// Package app builds the trip planning components from configuration.
// cmd/service and cmd/planner share it.
package app

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/kjstillabower/travel-planner/internal/agent"
	"github.com/kjstillabower/travel-planner/internal/cache"
	"github.com/kjstillabower/travel-planner/internal/circuitbreaker"
	"github.com/kjstillabower/travel-planner/internal/client"
	"github.com/kjstillabower/travel-planner/internal/config"
	"github.com/kjstillabower/travel-planner/internal/models"
	"github.com/kjstillabower/travel-planner/internal/observability"
	"github.com/kjstillabower/travel-planner/internal/ratelimit"
	"github.com/kjstillabower/travel-planner/internal/service"
	"github.com/kjstillabower/travel-planner/internal/traffic"
	"github.com/kjstillabower/travel-planner/internal/weather"
)

// App holds the wired components. Close releases cache connections.
type App struct {
	Trips   *service.TripService
	Weather *weather.Service
	Limiter *ratelimit.Limiter
	Traffic *traffic.Tracker
	// CachePing is nil for the in-memory backend.
	CachePing func() error
	closers   []io.Closer
	// forecasts is set only for the openweathermap provider.
	forecasts client.ForecastClient
}

// Closers returns the resources to release on shutdown.
func (a *App) Closers() []io.Closer {
	return a.closers
}

// Close releases every closer, returning the first error.
func (a *App) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// ValidateCredentials confirms the weather API key with one small request.
// It returns nil for the stub provider. A rejected key wraps client.ErrInvalidAPIKey.
func (a *App) ValidateCredentials(ctx context.Context) error {
	if a.forecasts == nil {
		return nil
	}
	if err := a.forecasts.ValidateAPIKey(ctx); err != nil {
		return fmt.Errorf("weather api key: %w", err)
	}
	return nil
}

// Build wires caches, upstream clients, agents and the trip service from cfg.
func Build(cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{}

	forecastCache, err := a.buildCache(cfg, logger)
	if err != nil {
		return nil, err
	}

	retry := client.RetryPolicy{
		Attempts:  cfg.RetryAttempts,
		BaseDelay: cfg.RetryBaseDelay,
		MaxDelay:  cfg.RetryMaxDelay,
	}

	llm, err := client.NewOpenAIClient(client.OpenAIConfig{
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.OpenAIModel,
		BaseURL: cfg.OpenAIBaseURL,
		Timeout: cfg.OpenAITimeout,
		Retry:   retry,
		Breaker: breaker(cfg, client.UpstreamOpenAI, logger),
	})
	if err != nil {
		return nil, fmt.Errorf("openai client: %w", err)
	}

	search, err := client.NewSerpAPIClient(client.SerpAPIConfig{
		APIKey:          cfg.SearchAPIKey,
		URL:             cfg.SearchURL,
		Timeout:         cfg.SearchTimeout,
		ResultsPerQuery: cfg.SearchResultsPerQuery,
		Retry:           retry,
		Breaker:         breaker(cfg, client.UpstreamSerpAPI, logger),
	})
	if err != nil {
		return nil, fmt.Errorf("search client: %w", err)
	}

	var source weather.Source = weather.StubSource{}
	if cfg.WeatherProvider == "openweathermap" {
		owm, err := client.NewOpenWeatherClientWithRetry(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPITimeout,
			retry, breaker(cfg, client.UpstreamOpenWeatherMap, logger))
		if err != nil {
			return nil, fmt.Errorf("weather client: %w", err)
		}
		source = weather.UpstreamSource{Client: owm}
		a.forecasts = owm
	}
	logger.Info("weather provider", zap.String("provider", cfg.WeatherProvider))

	a.Weather = weather.NewService(forecastCache, source)
	a.Limiter = ratelimit.New(cfg.PlannerCallsPerMinute, cfg.PlannerWindow)
	a.Traffic = traffic.NewTracker(cfg.DegradedWindow)
	a.Trips = service.NewTripService(
		a.Limiter,
		agent.NewResearcher(llm, search),
		a.Weather,
		agent.NewPlanner(llm),
		a.Traffic,
	)

	observability.RegisterLimiterGauge(a.Limiter.InWindow)
	if len(cfg.TrackedDestinations) > 0 {
		observability.SetTrackedDestinations(cfg.TrackedDestinations)
	}
	return a, nil
}

func (a *App) buildCache(cfg *config.Config, logger *zap.Logger) (cache.Cache[models.WeatherForecast], error) {
	switch cfg.CacheBackend {
	case "memcached":
		mc := cache.NewMemcachedCache[models.WeatherForecast](cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns, cfg.CacheTTL)
		a.closers = append(a.closers, mc)
		a.CachePing = mc.Ping
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
		return mc, nil
	case "redis":
		rc := cache.NewRedisCache[models.WeatherForecast](cache.NewRedisClient(cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}), cfg.CacheTTL)
		a.closers = append(a.closers, rc)
		a.CachePing = rc.Ping
		logger.Info("cache backend: redis", zap.String("addr", cfg.RedisAddr))
		return rc, nil
	case "", "in_memory":
		logger.Info("cache backend: in_memory")
		return cache.NewInMemoryCache[models.WeatherForecast](cfg.CacheTTL), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}

// breaker returns a circuit breaker for upstream, or nil when disabled.
// The nil is returned as an untyped interface so clients skip the breaker.
func breaker(cfg *config.Config, upstream string, logger *zap.Logger) client.Breaker {
	if !cfg.CircuitBreakerEnabled {
		return nil
	}
	cb := circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.CircuitBreakerFailureThreshold,
		SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
		Timeout:          cfg.CircuitBreakerTimeout,
		Component:        upstream,
		OnStateChange: func(from, to circuitbreaker.State) {
			observability.RecordCircuitBreakerTransition(upstream, from.String(), to.String())
			logger.Warn("circuit breaker state change",
				zap.String("component", upstream),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	observability.SetCircuitBreakerState(upstream, circuitbreaker.StateClosed.String())
	return cb
}
