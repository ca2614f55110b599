package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kjstillabower/travel-planner/internal/models"
)

// ForecastClient fetches multi-day forecasts from an upstream weather API.
type ForecastClient interface {
	GetForecast(ctx context.Context, location string, start time.Time, days int) (models.WeatherForecast, error)
	ValidateAPIKey(ctx context.Context) error
}

// OpenWeatherClient calls the OpenWeatherMap 5-day/3-hour forecast endpoint.
type OpenWeatherClient struct {
	apiKey  string
	apiURL  string
	timeout time.Duration
	client  *http.Client
	retry   RetryPolicy
	breaker Breaker
}

// NewOpenWeatherClient builds a client using DefaultRetryPolicy.
func NewOpenWeatherClient(apiKey, apiURL string, timeout time.Duration) (*OpenWeatherClient, error) {
	return NewOpenWeatherClientWithRetry(apiKey, apiURL, timeout, DefaultRetryPolicy, nil)
}

// NewOpenWeatherClientWithRetry builds a client with an explicit retry policy and optional breaker.
func NewOpenWeatherClientWithRetry(apiKey, apiURL string, timeout time.Duration, retry RetryPolicy, breaker Breaker) (*OpenWeatherClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if len(apiKey) < 10 {
		return nil, fmt.Errorf("%w: API key appears invalid (too short)", ErrInvalidAPIKey)
	}
	if apiURL == "" {
		apiURL = "https://api.openweathermap.org/data/2.5/forecast"
	}
	return &OpenWeatherClient{
		apiKey:  apiKey,
		apiURL:  apiURL,
		timeout: timeout,
		retry:   retry,
		breaker: breaker,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

type openWeatherForecastResponse struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Weather []struct {
			Main        string `json:"main"`
			Description string `json:"description"`
		} `json:"weather"`
		Pop float64 `json:"pop"`
	} `json:"list"`
	City struct {
		Name     string `json:"name"`
		Timezone int    `json:"timezone"`
	} `json:"city"`
}

// GetForecast returns one record per requested day that the upstream covers.
// Days beyond the upstream horizon are omitted; ErrNoResults when none are covered.
func (c *OpenWeatherClient) GetForecast(ctx context.Context, location string, start time.Time, days int) (models.WeatherForecast, error) {
	var apiResp openWeatherForecastResponse
	err := retry(ctx, UpstreamOpenWeatherMap, c.retry, c.breaker, func(ctx context.Context) error {
		var err error
		apiResp, err = c.callAPI(ctx, location)
		return err
	})
	if err != nil {
		return models.WeatherForecast{}, err
	}
	forecast := aggregateDaily(apiResp, start, days)
	forecast.Location = location
	if len(forecast.Forecast) == 0 {
		return models.WeatherForecast{}, fmt.Errorf("%w: no forecast data for %s from %s", ErrNoResults, location, start.Format(models.DateLayout))
	}
	return forecast, nil
}

func (c *OpenWeatherClient) callAPI(ctx context.Context, location string) (openWeatherForecastResponse, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, location)
	if err != nil {
		observe(UpstreamOpenWeatherMap, "error", start)
		return openWeatherForecastResponse{}, fmt.Errorf("build request: %w", err)
	}
	setCorrelationHeader(ctx, req)

	resp, err := c.client.Do(req)
	if err != nil {
		observe(UpstreamOpenWeatherMap, "error", start)
		return openWeatherForecastResponse{}, wrapTransportError(err)
	}
	defer resp.Body.Close()
	observe(UpstreamOpenWeatherMap, statusLabel(resp.StatusCode), start)

	if err := checkStatus(resp, ErrLocationNotFound); err != nil {
		return openWeatherForecastResponse{}, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return openWeatherForecastResponse{}, fmt.Errorf("read response body: %w", err)
	}
	var apiResp openWeatherForecastResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return openWeatherForecastResponse{}, fmt.Errorf("parse response: %w", err)
	}
	return apiResp, nil
}

func (c *OpenWeatherClient) buildRequest(ctx context.Context, location string) (*http.Request, error) {
	baseURL, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := url.Values{}
	params.Set("q", location)
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

type dayBucket struct {
	tempSum    float64
	samples    int
	maxPop     float64
	conditions map[string]int
	order      []string
}

// aggregateDaily folds 3-hour slots into per-day records in the city's local time:
// mean temperature, the most frequent condition (earliest wins ties) and the highest
// precipitation probability.
func aggregateDaily(apiResp openWeatherForecastResponse, start time.Time, days int) models.WeatherForecast {
	offset := time.Duration(apiResp.City.Timezone) * time.Second
	buckets := make(map[string]*dayBucket)
	for _, slot := range apiResp.List {
		date := time.Unix(slot.Dt, 0).UTC().Add(offset).Format(models.DateLayout)
		b, ok := buckets[date]
		if !ok {
			b = &dayBucket{conditions: make(map[string]int)}
			buckets[date] = b
		}
		b.tempSum += slot.Main.Temp
		b.samples++
		if slot.Pop > b.maxPop {
			b.maxPop = slot.Pop
		}
		if len(slot.Weather) > 0 {
			cond := slot.Weather[0].Main
			if _, seen := b.conditions[cond]; !seen {
				b.order = append(b.order, cond)
			}
			b.conditions[cond]++
		}
	}

	out := models.WeatherForecast{Source: UpstreamOpenWeatherMap}
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i).Format(models.DateLayout)
		b, ok := buckets[date]
		if !ok {
			continue
		}
		out.Forecast = append(out.Forecast, models.DayForecast{
			Date:             date,
			TemperatureC:     math.Round(b.tempSum/float64(b.samples)*10) / 10,
			Conditions:       b.dominant(),
			PrecipitationPct: int(math.Round(b.maxPop * 100)),
		})
	}
	return out
}

func (b *dayBucket) dominant() string {
	best, bestN := "", 0
	for _, c := range b.order {
		if n := b.conditions[c]; n > bestN {
			best, bestN = c, n
		}
	}
	return strings.TrimSpace(best)
}

// ValidateAPIKey performs a single lightweight request to confirm the key is accepted.
func (c *OpenWeatherClient) ValidateAPIKey(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := c.buildRequest(ctx, "London")
	if err != nil {
		return fmt.Errorf("build validation request: %w", err)
	}
	q := req.URL.Query()
	q.Set("cnt", "1")
	req.URL.RawQuery = q.Encode()

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("validation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: API key is invalid or not activated", ErrInvalidAPIKey)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("validation failed: HTTP %d", resp.StatusCode)
	}
	return nil
}
