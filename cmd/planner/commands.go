package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/kjstillabower/travel-planner/internal/app"
	"github.com/kjstillabower/travel-planner/internal/cache"
	"github.com/kjstillabower/travel-planner/internal/client"
	"github.com/kjstillabower/travel-planner/internal/config"
	"github.com/kjstillabower/travel-planner/internal/models"
	"github.com/kjstillabower/travel-planner/internal/observability"
	"github.com/kjstillabower/travel-planner/internal/packing"
	"github.com/kjstillabower/travel-planner/internal/service"
	"github.com/kjstillabower/travel-planner/internal/validation"
	"github.com/kjstillabower/travel-planner/internal/weather"
)

// tripPlanner is satisfied by *service.TripService.
type tripPlanner interface {
	Plan(ctx context.Context, req models.TripRequest) (models.TripPlan, error)
}

// deps builds the heavy components lazily so that pack and forecast work without API keys.
type deps struct {
	planner  func(logger *zap.Logger) (tripPlanner, func(), error)
	forecast func(provider string) (weather.Provider, error)
	logger   func() (*zap.Logger, error)
	now      func() time.Time
}

func defaultDeps() deps {
	return deps{
		planner: func(logger *zap.Logger) (tripPlanner, func(), error) {
			cfg, err := config.Load()
			if err != nil {
				return nil, nil, err
			}
			a, err := app.Build(cfg, logger)
			if err != nil {
				return nil, nil, err
			}
			return a.Trips, func() { _ = a.Close() }, nil
		},
		forecast: func(provider string) (weather.Provider, error) {
			var source weather.Source = weather.StubSource{}
			if provider == "openweathermap" {
				c, err := client.NewOpenWeatherClient(os.Getenv("WEATHER_API_KEY"), os.Getenv("WEATHER_API_URL"), 5*time.Second)
				if err != nil {
					return nil, err
				}
				source = weather.UpstreamSource{Client: c}
			}
			return weather.NewService(cache.NewInMemoryCache[models.WeatherForecast](cache.DefaultTTL), source), nil
		},
		logger: observability.NewLogger,
		now:    time.Now,
	}
}

func newRootCommand(d deps, stdin io.Reader, stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "planner",
		Usage:     "plan trips with researched itineraries, forecasts and packing lists",
		Writer:    stdout,
		Reader:    stdin,
		Commands:  []*cli.Command{planCommand(d, stdout), forecastCommand(d, stdout), packCommand(stdin, stdout)},
		ErrWriter: os.Stderr,
	}
}

func planCommand(d deps, stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "plan",
		Usage:     "research and plan a trip; writes {destination}_itinerary.md and .json",
		UsageText: `planner plan --destination Lisbon --days 3 [options]`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "destination", Aliases: []string{"d"}, Usage: "where to go", Required: true},
			&cli.IntFlag{Name: "days", Aliases: []string{"n"}, Usage: "trip length in days (1-30)", Value: validation.DefaultNumDays},
			&cli.StringFlag{Name: "start", Usage: "start date YYYY-MM-DD (default tomorrow)"},
			&cli.StringFlag{Name: "budget", Usage: "Budget, Moderate or Luxury"},
			&cli.StringFlag{Name: "style", Usage: "Relaxed, Balanced or Adventure"},
			&cli.StringSliceFlag{Name: "interests", Usage: "interests, repeatable"},
			&cli.IntFlag{Name: "group-size", Usage: "travellers (1-20)", Value: validation.DefaultGroupSize},
			&cli.StringFlag{Name: "language", Usage: "itinerary language"},
			&cli.StringSliceFlag{Name: "dietary", Usage: "dietary restrictions, repeatable"},
			&cli.StringFlag{Name: "out-dir", Usage: "directory for the artifacts", Value: "."},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			req, err := validation.ValidateTripRequest(models.TripRequest{
				Destination:         cmd.String("destination"),
				NumDays:             cmd.Int("days"),
				StartDateRaw:        cmd.String("start"),
				Budget:              cmd.String("budget"),
				TravelStyle:         cmd.String("style"),
				Interests:           cmd.StringSlice("interests"),
				GroupSize:           cmd.Int("group-size"),
				Language:            cmd.String("language"),
				DietaryRestrictions: cmd.StringSlice("dietary"),
			}, d.now())
			if err != nil {
				return fmt.Errorf("invalid trip: %w", err)
			}

			logger, err := d.logger()
			if err != nil {
				return fmt.Errorf("logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			planner, cleanup, err := d.planner(logger)
			if err != nil {
				return err
			}
			defer cleanup()

			plan, err := planner.Plan(observability.WithLogger(ctx, logger), req)
			if err != nil {
				return err
			}
			paths, err := writeArtifacts(cmd.String("out-dir"), plan)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(stdout, p)
			}
			return nil
		},
	}
}

// writeArtifacts writes the Markdown and JSON documents for plan into dir.
func writeArtifacts(dir string, plan models.TripPlan) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	doc, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode plan: %w", err)
	}
	files := []struct {
		name string
		data []byte
	}{
		{service.Filename(plan, "md"), []byte(service.Markdown(plan))},
		{service.Filename(plan, "json"), append(doc, '\n')},
	}
	var paths []string
	for _, f := range files {
		p := filepath.Join(dir, f.name)
		if err := os.WriteFile(p, f.data, 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", f.name, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func forecastCommand(d deps, stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "forecast",
		Usage: "print the per-day forecast for a destination as JSON",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "location", Aliases: []string{"l"}, Required: true},
			&cli.StringFlag{Name: "start", Usage: "start date YYYY-MM-DD (default tomorrow)"},
			&cli.IntFlag{Name: "days", Aliases: []string{"n"}, Value: validation.DefaultNumDays},
			&cli.StringFlag{
				Name:    "provider",
				Usage:   "stub or openweathermap",
				Value:   "stub",
				Sources: cli.EnvVars("WEATHER_PROVIDER"),
				Validator: func(v string) error {
					if v != "stub" && v != "openweathermap" {
						return fmt.Errorf("must be stub or openweathermap, got %q", v)
					}
					return nil
				},
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			location, err := validation.ValidateLocation(cmd.String("location"), validation.MinDestinationLen, validation.MaxDestinationLen)
			if err != nil {
				return err
			}
			days := cmd.Int("days")
			if days < validation.MinNumDays || days > validation.MaxNumDays {
				return fmt.Errorf("%w: %d", validation.ErrNumDaysOutOfRange, days)
			}
			y, m, dd := d.now().UTC().Date()
			start := time.Date(y, m, dd+1, 0, 0, 0, 0, time.UTC)
			if raw := strings.TrimSpace(cmd.String("start")); raw != "" {
				if start, err = time.Parse(models.DateLayout, raw); err != nil {
					return fmt.Errorf("%w: %q", validation.ErrStartDateInvalid, raw)
				}
			}
			provider, err := d.forecast(cmd.String("provider"))
			if err != nil {
				return err
			}
			f, err := provider.Forecast(ctx, location, start, days)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(f)
		},
	}
}

func packCommand(stdin io.Reader, stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "pack",
		Usage:     "print a packing list for a forecast",
		UsageText: `planner forecast -l Oslo | planner pack --style Adventure`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "weather", Aliases: []string{"w"}, Usage: "forecast JSON file, - for stdin", Value: "-"},
			&cli.StringFlag{Name: "style", Usage: "Relaxed, Balanced or Adventure"},
			&cli.IntFlag{Name: "days", Aliases: []string{"n"}, Value: validation.DefaultNumDays},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			style, err := validation.ValidateTravelStyle(cmd.String("style"))
			if err != nil {
				return err
			}
			var r io.Reader = stdin
			if path := cmd.String("weather"); path != "-" {
				fh, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("open forecast: %w", err)
				}
				defer fh.Close()
				r = fh
			}
			var f models.WeatherForecast
			if err := json.NewDecoder(r).Decode(&f); err != nil {
				return fmt.Errorf("decode forecast: %w", err)
			}
			for _, item := range packing.Generate(f, style, cmd.Int("days")) {
				fmt.Fprintln(stdout, item)
			}
			return nil
		},
	}
}
