package weather

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/travel-planner/internal/observability"
)

// Warmer prefetches forecasts for popular destinations so the first trip plan
// for them is served from cache.
type Warmer struct {
	provider Provider
	logger   *zap.Logger
	days     int
	now      func() time.Time
}

// NewWarmer returns a Warmer that fetches days-long forecasts starting tomorrow.
func NewWarmer(provider Provider, days int, logger *zap.Logger) *Warmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Warmer{provider: provider, logger: logger, days: days, now: time.Now}
}

// Warm fetches every destination concurrently. Returns all failures joined.
func (w *Warmer) Warm(ctx context.Context, destinations []string) error {
	start := time.Now()
	y, m, d := w.now().UTC().Date()
	tomorrow := time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	errCh := make(chan error, len(destinations))
	for _, dest := range destinations {
		wg.Add(1)
		go func(dest string) {
			defer wg.Done()
			if _, err := w.provider.Forecast(ctx, dest, tomorrow, w.days); err != nil {
				errCh <- fmt.Errorf("warm %s: %w", dest, err)
			}
		}(dest)
	}
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		observability.CacheErrorsTotal.WithLabelValues("warm").Inc()
	}
	w.logger.Info("forecast cache warmed",
		zap.Int("destinations", len(destinations)),
		zap.Int("errors", len(errs)),
		zap.Duration("duration", time.Since(start)))
	return errors.Join(errs...)
}

// WarmPeriodic runs Warm now and then every interval until ctx is done.
// Each run targets the new tomorrow, so the cache follows the calendar.
func (w *Warmer) WarmPeriodic(ctx context.Context, destinations []string, interval time.Duration) error {
	if err := w.Warm(ctx, destinations); err != nil {
		w.logger.Warn("forecast warm failed", zap.Error(err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Warm(ctx, destinations); err != nil {
				w.logger.Warn("forecast warm failed", zap.Error(err))
			}
		}
	}
}
