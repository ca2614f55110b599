package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/kjstillabower/travel-planner/internal/circuitbreaker"
)

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"nil", nil, ""},
		{"deadline", context.DeadlineExceeded, ErrorCategoryTimeout},
		{"wrapped deadline", fmt.Errorf("request timeout: %w", context.DeadlineExceeded), ErrorCategoryTimeout},
		{"circuit open", circuitbreaker.ErrOpen, ErrorCategoryCircuitOpen},
		{"invalid key", fmt.Errorf("%w: HTTP 401", ErrInvalidAPIKey), ErrorCategoryInvalidAPIKey},
		{"not found", ErrLocationNotFound, ErrorCategoryLocationNotFound},
		{"rate limited", fmt.Errorf("exhausted retries: %w", ErrRateLimited), ErrorCategoryRateLimited},
		{"5xx", fmt.Errorf("%w: HTTP 502", ErrUpstreamFailure), ErrorCategoryUpstream5xx},
		{"no results", ErrNoResults, ErrorCategoryNoResults},
		{"network", errors.New("dial tcp: connection refused"), ErrorCategoryNetwork},
		{"parsing", errors.New("parse response: unexpected EOF"), ErrorCategoryParsing},
		{"net timeout", &net.OpError{Op: "dial", Err: timeoutErr{}}, ErrorCategoryTimeout},
		{"json syntax", json.Unmarshal([]byte("{"), new(map[string]any)), ErrorCategoryParsing},
		{"unknown", errors.New("boom"), ErrorCategoryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CategorizeError(tt.err); got != tt.want {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := retry(ctx, UpstreamSerpAPI, RetryPolicy{Attempts: 5, BaseDelay: 1e9}, nil, func(ctx context.Context) error {
		calls++
		cancel()
		return ErrUpstreamFailure
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("retry() error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetry_UsesBreaker(t *testing.T) {
	cb := circuitbreaker.New(circuitbreaker.Config{FailureThreshold: 1, Timeout: 1e12})
	calls := 0
	fn := func(ctx context.Context) error { calls++; return ErrUpstreamFailure }
	_ = retry(context.Background(), UpstreamOpenAI, RetryPolicy{Attempts: 1}, cb, fn)
	err := retry(context.Background(), UpstreamOpenAI, RetryPolicy{Attempts: 1}, cb, fn)
	if !errors.Is(err, circuitbreaker.ErrOpen) {
		t.Errorf("retry() error = %v, want ErrOpen", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
