package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/travel-planner/internal/observability"
	"github.com/kjstillabower/travel-planner/internal/traffic"
)

func TestCorrelationIDMiddleware_GeneratesID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = observability.CorrelationID(r.Context())
		observability.LoggerFromContext(r.Context()).Info("inside")
	})

	w := httptest.NewRecorder()
	CorrelationIDMiddleware(zap.New(core))(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == "" {
		t.Fatal("no correlation id in context")
	}
	if got := w.Header().Get(CorrelationHeader); got != seen {
		t.Errorf("response header = %q, want %q", got, seen)
	}
	entries := logs.FilterMessage("inside").All()
	if len(entries) != 1 || entries[0].ContextMap()["correlation_id"] != seen {
		t.Errorf("request logger not tagged with correlation id: %v", entries)
	}
}

func TestCorrelationIDMiddleware_KeepsIncomingID(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = observability.CorrelationID(r.Context())
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationHeader, "trip-123")

	CorrelationIDMiddleware(zap.NewNop())(next).ServeHTTP(httptest.NewRecorder(), req)

	if seen != "trip-123" {
		t.Errorf("correlation id = %q, want trip-123", seen)
	}
}

func TestMetricsMiddleware_TracksInFlight(t *testing.T) {
	tracker := &InFlightTracker{}
	var during int64
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		during = tracker.Count()
		w.WriteHeader(http.StatusAccepted)
	})
	w := httptest.NewRecorder()
	MetricsMiddleware(tracker)(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/options", nil))

	if during != 1 {
		t.Errorf("in-flight during request = %d, want 1", during)
	}
	if tracker.Count() != 0 {
		t.Errorf("in-flight after request = %d, want 0", tracker.Count())
	}
	if w.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", w.Code)
	}
}

func TestGetRoute_UsesTemplate(t *testing.T) {
	var route string
	router := mux.NewRouter()
	router.HandleFunc("/weather/{location}", func(w http.ResponseWriter, r *http.Request) {
		route = getRoute(r)
	})
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/weather/paris", nil))
	if route != "/weather/{location}" {
		t.Errorf("getRoute() = %q, want /weather/{location}", route)
	}
}

func TestStatusCodeString(t *testing.T) {
	for code, want := range map[int]string{200: "2xx", 404: "4xx", 429: "4xx", 503: "5xx"} {
		if got := statusCodeString(code); got != want {
			t.Errorf("statusCodeString(%d) = %q, want %q", code, got, want)
		}
	}
}

func TestTimeoutMiddleware_SetsDeadline(t *testing.T) {
	var hasDeadline bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasDeadline = r.Context().Deadline()
	})
	TimeoutMiddleware(time.Second)(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !hasDeadline {
		t.Error("context has no deadline")
	}

	hasDeadline = false
	TimeoutMiddleware(0)(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if hasDeadline {
		t.Error("zero timeout should not set a deadline")
	}
}

func TestTimeoutMiddleware_CancelsSlowHandler(t *testing.T) {
	var ctxErr error
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		ctxErr = r.Context().Err()
	})
	TimeoutMiddleware(10*time.Millisecond)(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if ctxErr != context.DeadlineExceeded {
		t.Errorf("ctx.Err() = %v, want DeadlineExceeded", ctxErr)
	}
}

// TestRateLimitMiddleware_DeniesOverBurst verifies requests beyond the burst get 429
// and are recorded as denials.
func TestRateLimitMiddleware_DeniesOverBurst(t *testing.T) {
	tracker := traffic.NewTracker(0)
	limiter := rate.NewLimiter(rate.Every(time.Hour), 2)
	handler := RateLimitMiddleware(limiter, tracker)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var codes []int
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/trips", nil))
		codes = append(codes, w.Code)
		if w.Code == http.StatusTooManyRequests {
			if !strings.Contains(w.Body.String(), "RATE_LIMITED") {
				t.Errorf("429 body = %s, want RATE_LIMITED", w.Body)
			}
			if w.Header().Get("Retry-After") == "" {
				t.Error("429 without Retry-After")
			}
		}
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != 429 {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}
	if n := tracker.DenialCount(time.Minute); n != 1 {
		t.Errorf("DenialCount() = %d, want 1", n)
	}
}

func TestRateLimitMiddleware_NilLimiterPassesThrough(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
	RateLimitMiddleware(nil, nil)(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/trips", nil))
	if !called {
		t.Error("handler not called with nil limiter")
	}
}
