package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kjstillabower/travel-planner/internal/client"
	"github.com/kjstillabower/travel-planner/internal/models"
)

// ErrEmptyItinerary is returned when the model produced no text.
var ErrEmptyItinerary = errors.New("empty itinerary")

// Planner drafts a Markdown itinerary from the request, forecast and research.
type Planner struct {
	llm client.LLM
	now func() time.Time
}

func NewPlanner(llm client.LLM) *Planner {
	return &Planner{llm: llm, now: time.Now}
}

// Plan returns the itinerary text.
func (p *Planner) Plan(ctx context.Context, req models.TripRequest, forecast models.WeatherForecast, research string) (string, error) {
	prompt, err := buildPlannerPrompt(req, forecast, research)
	if err != nil {
		return "", err
	}
	out, err := p.llm.Generate(ctx, withDate(plannerSystemPrompt, p.now()), prompt)
	if err != nil {
		return "", fmt.Errorf("generate itinerary: %w", err)
	}
	if strings.TrimSpace(out) == "" {
		return "", ErrEmptyItinerary
	}
	return out, nil
}
