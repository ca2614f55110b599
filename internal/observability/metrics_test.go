package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestMetrics_Usable verifies that all metrics accept the label dimensions used
// across the client, http, service, ratelimit and cache packages.
func TestMetrics_Usable(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("POST", "/trips", "2xx").Inc()
	HTTPRequestDuration.WithLabelValues("POST", "/trips").Observe(3.2)
	UpstreamCallsTotal.WithLabelValues("openai", "success").Inc()
	UpstreamDuration.WithLabelValues("serpapi", "error").Observe(0.4)
	UpstreamRetriesTotal.WithLabelValues("openweathermap").Inc()
	CacheHitsTotal.WithLabelValues("weather").Inc()
	CacheMissesTotal.WithLabelValues("weather").Inc()
	CacheErrorsTotal.WithLabelValues("get").Inc()
	RateLimiterAdmissionsTotal.WithLabelValues("delayed").Inc()
	RateLimiterWaitSeconds.Observe(12)
	InboundRateLimitDeniedTotal.Inc()
	TripPlansTotal.WithLabelValues("success").Inc()
	PlanningPhaseDuration.WithLabelValues("research").Observe(8)
}

// TestRecordTripDestination verifies tracked destinations get their own label and
// everything else is folded into "other".
func TestRecordTripDestination(t *testing.T) {
	SetTrackedDestinations([]string{"Lisbon", "tokyo"})
	defer SetTrackedDestinations(nil)

	if got := MetricDestinationLabel("  LISBON "); got != "lisbon" {
		t.Errorf("MetricDestinationLabel() = %q, want lisbon", got)
	}
	if got := MetricDestinationLabel("atlantis"); got != "other" {
		t.Errorf("MetricDestinationLabel() = %q, want other", got)
	}

	before := testutil.ToFloat64(TripsByDestinationTotal.WithLabelValues("tokyo"))
	RecordTripDestination("Tokyo")
	if got := testutil.ToFloat64(TripsByDestinationTotal.WithLabelValues("tokyo")); got != before+1 {
		t.Errorf("tokyo count = %v, want %v", got, before+1)
	}
}

func TestRecordCircuitBreakerTransition(t *testing.T) {
	RecordCircuitBreakerTransition("openai", "closed", "open")
	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("openai")); got != 2 {
		t.Errorf("state gauge = %v, want 2", got)
	}
	RecordCircuitBreakerTransition("openai", "open", "half-open")
	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("openai")); got != 1 {
		t.Errorf("state gauge = %v, want 1", got)
	}
}

func TestSetCircuitBreakerState(t *testing.T) {
	before := testutil.ToFloat64(CircuitBreakerTransitionsTotal.WithLabelValues("serpapi", "closed", "closed"))
	SetCircuitBreakerState("serpapi", "open")
	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("serpapi")); got != 2 {
		t.Errorf("state gauge = %v, want 2", got)
	}
	SetCircuitBreakerState("serpapi", "closed")
	if got := testutil.ToFloat64(CircuitBreakerTransitionsTotal.WithLabelValues("serpapi", "closed", "closed")); got != before {
		t.Errorf("transitions changed to %v, want %v", got, before)
	}
}

// TestMetricsHandler_ServesPrometheusFormat verifies that MetricsHandler serves
// Prometheus text exposition format including the limiter gauge.
func TestMetricsHandler_ServesPrometheusFormat(t *testing.T) {
	RegisterLimiterGauge(func() int { return 3 })
	HTTPRequestsTotal.WithLabelValues("GET", "/health", "2xx").Inc()

	handler := MetricsHandler()
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("MetricsHandler status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "httpRequestsTotal") {
		t.Error("MetricsHandler response should contain metric output")
	}
	if !strings.Contains(body, "rateLimiterCallsInWindow 3") {
		t.Error("MetricsHandler response should contain limiter gauge")
	}
}
