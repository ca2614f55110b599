// Package service orchestrates a trip plan: research, forecast, itinerary and packing list.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/travel-planner/internal/models"
	"github.com/kjstillabower/travel-planner/internal/observability"
	"github.com/kjstillabower/travel-planner/internal/packing"
	"github.com/kjstillabower/travel-planner/internal/weather"
)

// Planning phases, used as metric labels.
const (
	PhaseResearch = "research"
	PhaseForecast = "forecast"
	PhasePlan     = "plan"
	PhasePacking  = "packing"
)

// ErrPlanningFailed wraps every error returned by TripService.Plan.
var ErrPlanningFailed = errors.New("trip planning failed")

// Limiter delays model calls so the configured rate is never exceeded.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Researcher gathers destination research for a request.
type Researcher interface {
	Research(ctx context.Context, req models.TripRequest) (models.Research, error)
}

// ItineraryPlanner drafts the itinerary text.
type ItineraryPlanner interface {
	Plan(ctx context.Context, req models.TripRequest, forecast models.WeatherForecast, research string) (string, error)
}

// Outcomes receives the result of each Plan call. *traffic.Tracker implements it.
type Outcomes interface {
	RecordSuccess()
	RecordError()
}

// TripService runs the planning pipeline. The request is expected to be validated.
type TripService struct {
	limiter    Limiter
	researcher Researcher
	weather    weather.Provider
	planner    ItineraryPlanner
	outcomes   Outcomes
}

// NewTripService wires the pipeline. limiter and outcomes may be nil.
func NewTripService(limiter Limiter, researcher Researcher, forecasts weather.Provider, planner ItineraryPlanner, outcomes Outcomes) *TripService {
	return &TripService{
		limiter:    limiter,
		researcher: researcher,
		weather:    forecasts,
		planner:    planner,
		outcomes:   outcomes,
	}
}

// Plan produces the itinerary document for req.
// A forecast failure does not fail the plan: placeholder weather is used instead.
func (s *TripService) Plan(ctx context.Context, req models.TripRequest) (models.TripPlan, error) {
	logger := observability.LoggerFromContext(ctx).With(zap.String("destination", req.Destination))
	start := time.Now()

	plan, err := s.plan(ctx, logger, req)
	if err != nil {
		observability.TripPlansTotal.WithLabelValues("error").Inc()
		if s.outcomes != nil {
			s.outcomes.RecordError()
		}
		logger.Warn("trip plan failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return models.TripPlan{}, fmt.Errorf("%w: %w", ErrPlanningFailed, err)
	}

	observability.TripPlansTotal.WithLabelValues("success").Inc()
	observability.RecordTripDestination(req.Destination)
	if s.outcomes != nil {
		s.outcomes.RecordSuccess()
	}
	logger.Info("trip planned", zap.Int("num_days", req.NumDays), zap.Duration("duration", time.Since(start)))
	return plan, nil
}

func (s *TripService) plan(ctx context.Context, logger *zap.Logger, req models.TripRequest) (models.TripPlan, error) {
	if err := s.wait(ctx); err != nil {
		return models.TripPlan{}, fmt.Errorf("wait for research slot: %w", err)
	}
	var research models.Research
	err := timed(PhaseResearch, func() (err error) {
		research, err = s.researcher.Research(ctx, req)
		return err
	})
	if err != nil {
		return models.TripPlan{}, fmt.Errorf("research: %w", err)
	}

	var forecast models.WeatherForecast
	_ = timed(PhaseForecast, func() error {
		f, err := s.weather.Forecast(ctx, req.Destination, req.StartDate, req.NumDays)
		if err != nil {
			logger.Warn("forecast unavailable, using placeholder weather", zap.Error(err))
			f = weather.Synthesize(req.Destination, req.StartDate, req.NumDays)
		}
		forecast = f
		return nil
	})

	if err := s.wait(ctx); err != nil {
		return models.TripPlan{}, fmt.Errorf("wait for planner slot: %w", err)
	}
	var itinerary string
	err = timed(PhasePlan, func() (err error) {
		itinerary, err = s.planner.Plan(ctx, req, forecast, research.Content)
		return err
	})
	if err != nil {
		return models.TripPlan{}, fmt.Errorf("plan itinerary: %w", err)
	}

	var items []string
	_ = timed(PhasePacking, func() error {
		items = packing.Generate(forecast, req.TravelStyle, req.NumDays)
		return nil
	})

	return models.TripPlan{
		Destination: req.Destination,
		Duration:    req.NumDays,
		StartDate:   req.StartDate.Format(models.DateLayout),
		Itinerary:   itinerary,
		Weather:     forecast,
		PackingList: items,
	}, nil
}

func (s *TripService) wait(ctx context.Context) error {
	if s.limiter == nil {
		return ctx.Err()
	}
	return s.limiter.Wait(ctx)
}

// timed runs fn and records its latency under phase.
func timed(phase string, fn func() error) error {
	start := time.Now()
	err := fn()
	observability.PlanningPhaseDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
	return err
}

// Filename returns the download name for plan in the given extension ("md" or "json").
func Filename(plan models.TripPlan, ext string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ' ', ',', '\'', '/', '\\':
			return '_'
		}
		return r
	}, strings.TrimSpace(plan.Destination))
	return name + "_itinerary." + ext
}
