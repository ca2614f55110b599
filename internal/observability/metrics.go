package observability

import (
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency. Trip planning routes are dominated by LLM latency and limiter waits.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// Upstream call rate per upstream (openai, serpapi, openweathermap). Watch for: error vs success ratio.
	UpstreamCallsTotal *prometheus.CounterVec

	// Upstream latency per call. Watch for: p95 growth on openai (planner prompts are large).
	UpstreamDuration *prometheus.HistogramVec

	// Retry attempts per upstream. Watch for: high retries = unstable upstream.
	UpstreamRetriesTotal *prometheus.CounterVec

	// Forecast cache hits and misses. Hit rate = hits/(hits+misses).
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Cache errors by operation (get, set, warm). Get errors are treated as misses.
	CacheErrorsTotal *prometheus.CounterVec

	// Outbound limiter admissions by outcome (immediate, delayed).
	RateLimiterAdmissionsTotal *prometheus.CounterVec

	// Time callers spent blocked in the outbound limiter.
	RateLimiterWaitSeconds prometheus.Histogram

	// Inbound 429 responses. Watch for: clients exceeding the configured request rate.
	InboundRateLimitDeniedTotal prometheus.Counter

	// Trip plan outcomes (success, error).
	TripPlansTotal *prometheus.CounterVec

	// Trip planning latency per phase (research, forecast, plan, packing).
	PlanningPhaseDuration *prometheus.HistogramVec

	// Per-destination trip count (allow-list; others go to "other").
	TripsByDestinationTotal *prometheus.CounterVec

	// Circuit breaker state per component: 0 closed, 1 half_open, 2 open.
	CircuitBreakerState *prometheus.GaugeVec

	// Circuit breaker transitions per component.
	CircuitBreakerTransitionsTotal *prometheus.CounterVec

	trackedDestinationsMu sync.RWMutex
	trackedDestinations   map[string]struct{}

	limiterGaugeOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	UpstreamCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamCallsTotal",
			Help: "Total number of upstream API calls",
		},
		[]string{"upstream", "status"},
	)
	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstreamDurationSeconds",
			Help:    "Upstream API latency in seconds (per call)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"upstream", "status"},
	)
	UpstreamRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamRetriesTotal",
			Help: "Total number of retry attempts for upstream calls",
		},
		[]string{"upstream"},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of fresh cache hits",
		},
		[]string{"cacheType"},
	)
	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheMissesTotal",
			Help: "Total number of cache misses, expired entries included",
		},
		[]string{"cacheType"},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Total number of cache backend errors",
		},
		[]string{"operation"},
	)
	RateLimiterAdmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rateLimiterAdmissionsTotal",
			Help: "Outbound calls admitted by the sliding-window limiter",
		},
		[]string{"outcome"},
	)
	RateLimiterWaitSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rateLimiterWaitSeconds",
			Help:    "Time callers were delayed by the outbound limiter",
			Buckets: []float64{.1, 1, 5, 15, 30, 45, 60},
		},
	)
	InboundRateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "inboundRateLimitDeniedTotal",
			Help: "Total number of requests denied by the inbound rate limiter (429)",
		},
	)
	TripPlansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripPlansTotal",
			Help: "Trip plans by outcome",
		},
		[]string{"status"},
	)
	PlanningPhaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "planningPhaseDurationSeconds",
			Help:    "Trip planning latency per phase",
			Buckets: []float64{.01, .1, .5, 1, 5, 15, 30, 60, 120},
		},
		[]string{"phase"},
	)
	TripsByDestinationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripsByDestinationTotal",
			Help: "Trip plans by destination (allow-list; others use destination=other)",
		},
		[]string{"destination"},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state: 0 closed, 1 half_open, 2 open",
		},
		[]string{"component"},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions",
		},
		[]string{"component", "from", "to"},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		UpstreamCallsTotal, UpstreamDuration, UpstreamRetriesTotal,
		CacheHitsTotal, CacheMissesTotal, CacheErrorsTotal,
		RateLimiterAdmissionsTotal, RateLimiterWaitSeconds, InboundRateLimitDeniedTotal,
		TripPlansTotal, PlanningPhaseDuration, TripsByDestinationTotal,
		CircuitBreakerState, CircuitBreakerTransitionsTotal,
	)
}

// RegisterLimiterGauge exposes the outbound limiter's in-window admissions.
// Only the first call registers; later calls are ignored.
func RegisterLimiterGauge(inWindow func() int) {
	limiterGaugeOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimiterCallsInWindow",
					Help: "Outbound calls admitted in the current sliding window, pending waits included",
				},
				func() float64 { return float64(inWindow()) },
			),
		)
	})
}

// SetCircuitBreakerState sets the breaker state gauge without counting a transition.
func SetCircuitBreakerState(component, state string) {
	CircuitBreakerState.WithLabelValues(component).Set(circuitBreakerStateValue(state))
}

// RecordCircuitBreakerTransition updates breaker state metrics for component.
func RecordCircuitBreakerTransition(component, from, to string) {
	CircuitBreakerTransitionsTotal.WithLabelValues(component, from, to).Inc()
	CircuitBreakerState.WithLabelValues(component).Set(circuitBreakerStateValue(to))
}

func circuitBreakerStateValue(state string) float64 {
	switch state {
	case "half_open", "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

// SetTrackedDestinations sets the allow-list for destination metrics. Others increment "other".
func SetTrackedDestinations(destinations []string) {
	trackedDestinationsMu.Lock()
	defer trackedDestinationsMu.Unlock()
	trackedDestinations = make(map[string]struct{}, len(destinations))
	for _, d := range destinations {
		trackedDestinations[normalizeForMetrics(d)] = struct{}{}
	}
}

// RecordTripDestination counts a trip plan for destination.
func RecordTripDestination(destination string) {
	TripsByDestinationTotal.WithLabelValues(MetricDestinationLabel(destination)).Inc()
}

// MetricDestinationLabel returns the bounded-cardinality label for destination.
func MetricDestinationLabel(destination string) string {
	d := normalizeForMetrics(destination)
	trackedDestinationsMu.RLock()
	_, ok := trackedDestinations[d] // nil map read is safe in Go
	trackedDestinationsMu.RUnlock()
	if ok {
		return d
	}
	return "other"
}

func normalizeForMetrics(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
