package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/travel-planner/internal/app"
	"github.com/kjstillabower/travel-planner/internal/client"
	"github.com/kjstillabower/travel-planner/internal/config"
	httphandler "github.com/kjstillabower/travel-planner/internal/http"
	"github.com/kjstillabower/travel-planner/internal/lifecycle"
	"github.com/kjstillabower/travel-planner/internal/observability"
	"github.com/kjstillabower/travel-planner/internal/validation"
	"github.com/kjstillabower/travel-planner/internal/weather"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	components, err := app.Build(cfg, logger)
	if err != nil {
		logger.Fatal("wiring", zap.Error(err))
	}
	if err := checkCredentials(components, logger); err != nil {
		logger.Fatal("credentials", zap.Error(err))
	}
	if cfg.CircuitBreakerEnabled {
		logger.Info("circuit breaker enabled",
			zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold),
			zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}
	logger.Info("planner rate limit",
		zap.Int("calls_per_window", cfg.PlannerCallsPerMinute),
		zap.Duration("window", cfg.PlannerWindow))

	warmCtx, stopWarming := context.WithCancel(context.Background())
	defer stopWarming()
	if cfg.WarmCache && len(cfg.TrackedDestinations) > 0 {
		warmer := weather.NewWarmer(components.Weather, validation.DefaultNumDays, logger)
		if cfg.WarmInterval > 0 {
			go func() {
				if err := warmer.WarmPeriodic(warmCtx, cfg.TrackedDestinations, cfg.WarmInterval); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("periodic forecast warming stopped", zap.Error(err))
				}
			}()
		} else {
			ctx, cancel := context.WithTimeout(warmCtx, 30*time.Second)
			if err := warmer.Warm(ctx, cfg.TrackedDestinations); err != nil {
				logger.Warn("forecast warming failed", zap.Error(err))
			}
			cancel()
		}
	}

	state := lifecycle.New(time.Now())
	handler := httphandler.NewHandler(components.Trips, components.Weather, &httphandler.HealthConfig{
		Lifecycle:        state,
		Traffic:          components.Traffic,
		DegradedWindow:   cfg.DegradedWindow,
		DegradedErrorPct: cfg.DegradedErrorPct,
		CachePing:        components.CachePing,
	}, logger)

	inFlight := &httphandler.InFlightTracker{}
	router := httphandler.NewRouter(handler, httphandler.RouterConfig{
		Logger:         logger,
		InFlight:       inFlight,
		RequestTimeout: cfg.RequestTimeout,
		TripLimiter:    inboundLimiter(cfg),
		Denials:        components.Traffic,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Trip plans run for minutes; the write deadline must outlast the request timeout.
		WriteTimeout: cfg.RequestTimeout + 30*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	state.SetShuttingDown(true)
	stopWarming()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight.Count()))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := inFlight.WaitForZero(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", inFlight.Count()))
	}

	logger.Info("shutdown complete")
	if err := observability.FlushTelemetry(context.Background(), logger, components.Closers()...); err != nil {
		fmt.Fprintf(os.Stderr, "telemetry flush: %v\n", err)
	}
}

// inboundLimiter returns the token bucket for POST /trips, or nil when disabled.
func inboundLimiter(cfg *config.Config) *rate.Limiter {
	if cfg.RateLimitRPS <= 0 {
		return nil
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
}

// checkCredentials fails startup on a rejected API key. Transport errors only
// warn so a flaky upstream does not block the service from starting.
func checkCredentials(components *app.App, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := components.ValidateCredentials(ctx)
	if err == nil || errors.Is(err, client.ErrInvalidAPIKey) {
		return err
	}
	logger.Warn("credential check inconclusive", zap.Error(err))
	return nil
}
