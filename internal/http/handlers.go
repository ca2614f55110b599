package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/travel-planner/internal/lifecycle"
	"github.com/kjstillabower/travel-planner/internal/models"
	"github.com/kjstillabower/travel-planner/internal/observability"
	"github.com/kjstillabower/travel-planner/internal/packing"
	"github.com/kjstillabower/travel-planner/internal/service"
	"github.com/kjstillabower/travel-planner/internal/traffic"
	"github.com/kjstillabower/travel-planner/internal/validation"
	"github.com/kjstillabower/travel-planner/internal/weather"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// TripPlanner produces a trip plan from a validated request. *service.TripService implements it.
type TripPlanner interface {
	Plan(ctx context.Context, req models.TripRequest) (models.TripPlan, error)
}

// HealthConfig holds lifecycle state and thresholds for the health handler.
type HealthConfig struct {
	Lifecycle        *lifecycle.State
	Traffic          *traffic.Tracker
	DegradedWindow   time.Duration
	DegradedErrorPct int
	// CachePing, when set, is called to check cache reachability. Set for memcached and redis.
	CachePing func() error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	trips            TripPlanner
	forecasts        weather.Provider
	healthConfig     *HealthConfig
	logger           *zap.Logger
	now              func() time.Time
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. healthConfig may be nil.
func NewHandler(trips TripPlanner, forecasts weather.Provider, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		trips:        trips,
		forecasts:    forecasts,
		healthConfig: healthConfig,
		logger:       logger,
		now:          time.Now,
	}
}

// PostTrip handles POST /trips. The plan is returned as a JSON document, or as
// Markdown when format=markdown; both are sent as attachments.
func (h *Handler) PostTrip(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format != "" && format != "json" && format != "markdown" && format != "md" {
		writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "format must be json or markdown")
		return
	}

	var req models.TripRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "request body must be a JSON trip request")
		return
	}
	req, err := validation.ValidateTripRequest(req, h.now())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	plan, err := h.trips.Plan(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, "PLANNING_FAILED", "Unable to plan the trip", err)
		return
	}

	if format == "markdown" || format == "md" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Header().Set("Content-Disposition", attachment(service.Filename(plan, "md")))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(service.Markdown(plan)))
		return
	}
	w.Header().Set("Content-Disposition", attachment(service.Filename(plan, "json")))
	writeJSON(w, http.StatusOK, plan)
}

// GetWeather handles GET /weather/{location}?start=YYYY-MM-DD&days=N.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	location, err := validation.ValidateLocation(mux.Vars(r)["location"], validation.MinDestinationLen, validation.MaxDestinationLen)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_LOCATION", err.Error())
		return
	}

	q := r.URL.Query()
	y, m, d := h.now().UTC().Date()
	start := time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
	if raw := q.Get("start"); raw != "" {
		if start, err = time.Parse(models.DateLayout, raw); err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "start must be YYYY-MM-DD")
			return
		}
	}
	days := validation.DefaultNumDays
	if raw := q.Get("days"); raw != "" {
		days, err = strconv.Atoi(raw)
		if err != nil || days < validation.MinNumDays || days > validation.MaxNumDays {
			writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "days must be between 1 and 30")
			return
		}
	}

	forecast, err := h.forecasts.Forecast(r.Context(), location, start, days)
	if err != nil {
		writeServiceError(w, r, "UPSTREAM_UNAVAILABLE", "Unable to fetch weather data", err)
		return
	}
	writeJSON(w, http.StatusOK, forecast)
}

// packingRequest is the body of POST /packing-list.
type packingRequest struct {
	Weather     models.WeatherForecast `json:"weather"`
	TravelStyle string                 `json:"travel_style"`
	NumDays     int                    `json:"num_days"`
}

// PostPackingList handles POST /packing-list.
func (h *Handler) PostPackingList(w http.ResponseWriter, r *http.Request) {
	var body packingRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "request body must be JSON")
		return
	}
	style, err := validation.ValidateTravelStyle(body.TravelStyle)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{
		"items": packing.Generate(body.Weather, style, body.NumDays),
	})
}

// GetOptions handles GET /options.
func (h *Handler) GetOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.DefaultCatalog())
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	cacheStatus := h.checkCache()
	result := h.computeHealthStatus(cacheStatus)

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"planner": "healthy"}
	if result.reason == "error_rate_breach" {
		checks["planner"] = "unhealthy"
	}
	if cacheStatus != "" {
		checks["cache"] = cacheStatus
	}
	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "travel-planner",
		"version":   "dev",
		"checks":    checks,
		"timestamp": h.now().UTC().Format(time.RFC3339),
	}
	if hc := h.healthConfig; hc != nil {
		if hc.Lifecycle != nil {
			resp["uptime"] = hc.Lifecycle.Uptime(h.now()).Round(time.Second).String()
		}
		if hc.Traffic != nil && hc.DegradedWindow > 0 {
			errs, total := hc.Traffic.ErrorRate(hc.DegradedWindow)
			resp["window"] = map[string]interface{}{
				"length":  hc.DegradedWindow.String(),
				"plans":   total,
				"errors":  errs,
				"denials": hc.Traffic.DenialCount(hc.DegradedWindow),
			}
		}
	}
	writeJSON(w, result.statusCode, resp)
}

// checkCache returns "" when no cache check is configured.
func (h *Handler) checkCache() string {
	if h.healthConfig == nil || h.healthConfig.CachePing == nil {
		return ""
	}
	if err := h.healthConfig.CachePing(); err != nil {
		h.logger.Warn("cache ping failed", zap.Error(err))
		return "unhealthy"
	}
	return "healthy"
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > cache unreachable > error rate > healthy.
func (h *Handler) computeHealthStatus(cacheStatus string) healthResult {
	hc := h.healthConfig
	if hc == nil {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	if hc.Lifecycle != nil && hc.Lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if cacheStatus == "unhealthy" {
		return healthResult{"degraded", http.StatusServiceUnavailable, "cache_unreachable"}
	}
	if hc.Traffic != nil && hc.DegradedWindow > 0 && hc.DegradedErrorPct > 0 &&
		hc.Traffic.Degraded(hc.DegradedWindow, hc.DegradedErrorPct) {
		return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func attachment(filename string) string {
	return `attachment; filename="` + filename + `"`
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}

// writeServiceError maps a dependency failure to 503, or 504 when the request deadline passed.
func writeServiceError(w http.ResponseWriter, r *http.Request, code, message string, err error) {
	observability.LoggerFromContext(r.Context()).Warn("request failed", zap.String("code", code), zap.Error(err))
	if errors.Is(err, context.DeadlineExceeded) {
		writeError(w, r, http.StatusGatewayTimeout, "TIMEOUT", "Request timed out")
		return
	}
	writeError(w, r, http.StatusServiceUnavailable, code, message)
}
