//go:build integration
// +build integration

// Package testhelpers builds live components for integration tests.
package testhelpers

import (
	"os"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/kjstillabower/travel-planner/internal/app"
	"github.com/kjstillabower/travel-planner/internal/config"
)

// LiveConfig returns a configuration for live upstream calls. It skips the test
// unless OPENAI_API_KEY and SERP_AI_API_KEY are set. WEATHER_API_KEY switches the
// weather provider to openweathermap; INTEGRATION_CACHE_BACKEND selects the cache.
func LiveConfig(t *testing.T) *config.Config {
	t.Helper()
	openAIKey := os.Getenv("OPENAI_API_KEY")
	serpKey := os.Getenv("SERP_AI_API_KEY")
	if openAIKey == "" || serpKey == "" {
		t.Skip("OPENAI_API_KEY or SERP_AI_API_KEY not set, skipping integration test")
	}

	cfg := &config.Config{
		OpenAIAPIKey:          openAIKey,
		OpenAIModel:           os.Getenv("OPENAI_MODEL"),
		OpenAITimeout:         2 * time.Minute,
		SearchAPIKey:          serpKey,
		SearchTimeout:         10 * time.Second,
		SearchResultsPerQuery: 5,
		WeatherProvider:       "stub",
		WeatherAPITimeout:     5 * time.Second,
		CacheBackend:          "in_memory",
		CacheTTL:              5 * time.Minute,
		MemcachedAddrs:        "localhost:11211",
		MemcachedTimeout:      500 * time.Millisecond,
		MemcachedMaxIdleConns: 2,
		RedisAddr:             "localhost:6379",
		PlannerCallsPerMinute: 10,
		PlannerWindow:         time.Minute,
		RetryAttempts:         2,
		RetryBaseDelay:        200 * time.Millisecond,
		RetryMaxDelay:         2 * time.Second,
		DegradedWindow:        5 * time.Minute,
	}
	if key := os.Getenv("WEATHER_API_KEY"); key != "" {
		cfg.WeatherProvider = "openweathermap"
		cfg.WeatherAPIKey = key
	}
	if backend := os.Getenv("INTEGRATION_CACHE_BACKEND"); backend != "" {
		cfg.CacheBackend = backend
	}
	return cfg
}

// SetupLiveApp builds the application from cfg and closes it when the test ends.
// A remote cache that does not answer a ping skips the test.
func SetupLiveApp(t *testing.T, cfg *config.Config) *app.App {
	t.Helper()
	a, err := app.Build(cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("app.Build() error = %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	if a.CachePing != nil {
		if err := a.CachePing(); err != nil {
			t.Skipf("%s not reachable: %v", cfg.CacheBackend, err)
		}
	}
	return a
}
