package weather

import (
	"context"
	"time"

	"github.com/kjstillabower/travel-planner/internal/client"
	"github.com/kjstillabower/travel-planner/internal/models"
)

// Placeholder values produced by StubSource for every day.
const (
	StubTemperatureC     = 25.0
	StubConditions       = "Sunny"
	StubPrecipitationPct = 0
)

// StubSource synthesizes a fixed forecast without any network call.
type StubSource struct{}

// Fetch implements Source.
func (StubSource) Fetch(_ context.Context, location string, start time.Time, days int) (models.WeatherForecast, error) {
	return Synthesize(location, start, days), nil
}

// Synthesize returns one placeholder record per day starting at start.
func Synthesize(location string, start time.Time, days int) models.WeatherForecast {
	f := models.WeatherForecast{Location: location, Source: "stub"}
	for i := 0; i < days; i++ {
		f.Forecast = append(f.Forecast, models.DayForecast{
			Date:             start.AddDate(0, 0, i).Format(models.DateLayout),
			TemperatureC:     StubTemperatureC,
			Conditions:       StubConditions,
			PrecipitationPct: StubPrecipitationPct,
		})
	}
	if f.Forecast == nil {
		f.Forecast = []models.DayForecast{}
	}
	return f
}

// UpstreamSource adapts a client.ForecastClient to Source.
type UpstreamSource struct {
	Client client.ForecastClient
}

// Fetch implements Source.
func (u UpstreamSource) Fetch(ctx context.Context, location string, start time.Time, days int) (models.WeatherForecast, error) {
	return u.Client.GetForecast(ctx, location, start, days)
}
