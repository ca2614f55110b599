package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/travel-planner/internal/observability"
)

// RouterConfig carries the middleware settings for NewRouter.
type RouterConfig struct {
	Logger         *zap.Logger
	InFlight       *InFlightTracker
	RequestTimeout time.Duration
	// TripLimiter guards POST /trips; nil disables inbound limiting.
	TripLimiter *rate.Limiter
	Denials     DenialRecorder
}

// NewRouter registers every route on a gorilla/mux router.
func NewRouter(h *Handler, cfg RouterConfig) *mux.Router {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware(cfg.InFlight))

	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)
	router.HandleFunc("/options", h.GetOptions).Methods(http.MethodGet)
	router.HandleFunc("/packing-list", h.PostPackingList).Methods(http.MethodPost)

	weatherRouter := router.PathPrefix("/weather").Subrouter()
	weatherRouter.Use(TimeoutMiddleware(cfg.RequestTimeout))
	weatherRouter.HandleFunc("/{location}", h.GetWeather).Methods(http.MethodGet)

	tripChain := RateLimitMiddleware(cfg.TripLimiter, cfg.Denials)(
		TimeoutMiddleware(cfg.RequestTimeout)(http.HandlerFunc(h.PostTrip)))
	router.Handle("/trips", tripChain).Methods(http.MethodPost)
	return router
}
