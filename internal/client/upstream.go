package client

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/kjstillabower/travel-planner/internal/observability"
)

var (
	ErrInvalidAPIKey    = errors.New("invalid API key")
	ErrLocationNotFound = errors.New("location not found")
	ErrUpstreamFailure  = errors.New("upstream failure")
	ErrRateLimited      = errors.New("rate limited")
	ErrNoResults        = errors.New("no results")
)

// Upstream names used as metric labels.
const (
	UpstreamOpenAI         = "openai"
	UpstreamSerpAPI        = "serpapi"
	UpstreamOpenWeatherMap = "openweathermap"
)

// Breaker guards upstream calls. *circuitbreaker.CircuitBreaker satisfies it.
type Breaker interface {
	Call(ctx context.Context, fn func() error) error
}

// RetryPolicy configures exponential backoff with jitter between attempts.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetryPolicy is used when a client is built without an explicit policy.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: 2 * time.Second}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultRetryPolicy.BaseDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

// retry runs call up to p.Attempts times, backing off between retryable failures.
// Each attempt goes through breaker when one is set.
func retry(ctx context.Context, upstream string, p RetryPolicy, breaker Breaker, call func(ctx context.Context) error) error {
	p = p.normalized()
	var lastErr error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		if attempt > 0 {
			observability.UpstreamRetriesTotal.WithLabelValues(upstream).Inc()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(calculateBackoff(p, attempt)):
			}
		}

		var err error
		if breaker != nil {
			err = breaker.Call(ctx, func() error { return call(ctx) })
		} else {
			err = call(ctx)
		}
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) {
			return err
		}
	}
	return fmt.Errorf("exhausted retries: %w", lastErr)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamFailure) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") || strings.Contains(errStr, "context deadline exceeded")
}

func calculateBackoff(p RetryPolicy, attempt int) time.Duration {
	delay := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

// checkStatus maps non-2xx responses to sentinel errors. notFound is returned for 404.
func checkStatus(resp *http.Response, notFound error) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", ErrInvalidAPIKey, resp.StatusCode)
	case http.StatusNotFound:
		if notFound != nil {
			return notFound
		}
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}
	return nil
}

// observe records one upstream call outcome.
func observe(upstream, status string, start time.Time) {
	observability.UpstreamCallsTotal.WithLabelValues(upstream, status).Inc()
	observability.UpstreamDuration.WithLabelValues(upstream, status).Observe(time.Since(start).Seconds())
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == http.StatusTooManyRequests {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}

// setCorrelationHeader forwards the request's correlation id upstream.
func setCorrelationHeader(ctx context.Context, req *http.Request) {
	if id := observability.CorrelationID(ctx); id != "" {
		req.Header.Set("X-Correlation-ID", id)
	}
}

// wrapTransportError normalizes errors returned by http.Client.Do.
func wrapTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("request timeout: %w", err)
	}
	return fmt.Errorf("http request failed: %w", err)
}
