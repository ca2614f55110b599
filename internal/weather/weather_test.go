package weather

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kjstillabower/travel-planner/internal/cache"
	"github.com/kjstillabower/travel-planner/internal/models"
)

var start = time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)

type countingSource struct {
	calls   int32
	release chan struct{}
	err     error
}

func (s *countingSource) Fetch(ctx context.Context, location string, start time.Time, days int) (models.WeatherForecast, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.release != nil {
		<-s.release
	}
	if s.err != nil {
		return models.WeatherForecast{}, s.err
	}
	return Synthesize(location, start, days), nil
}

type failingCache struct{}

func (failingCache) Get(ctx context.Context, key string) (models.WeatherForecast, bool, error) {
	return models.WeatherForecast{}, false, errors.New("connection refused")
}

func (failingCache) Set(ctx context.Context, key string, value models.WeatherForecast) error {
	return errors.New("connection refused")
}

func TestCacheKey(t *testing.T) {
	tests := []struct {
		location string
		want     string
	}{
		{"Paris", "weather_paris_20261017"},
		{"  New York ", "weather_new york_20261017"},
		{"TOKYO", "weather_tokyo_20261017"},
	}
	for _, tt := range tests {
		if got := CacheKey(tt.location, start); got != tt.want {
			t.Errorf("CacheKey(%q) = %q, want %q", tt.location, got, tt.want)
		}
	}
}

func TestSynthesize(t *testing.T) {
	f := Synthesize("Paris", start, 3)
	if f.Location != "Paris" || len(f.Forecast) != 3 {
		t.Fatalf("Synthesize() = %+v", f)
	}
	want := []string{"2026-10-17", "2026-10-18", "2026-10-19"}
	for i, d := range f.Forecast {
		if d.Date != want[i] || d.TemperatureC != 25 || d.Conditions != "Sunny" || d.PrecipitationPct != 0 {
			t.Errorf("Forecast[%d] = %+v", i, d)
		}
	}
	if got := Synthesize("Paris", start, 0); len(got.Forecast) != 0 || got.Forecast == nil {
		t.Errorf("Synthesize(0 days) = %+v, want empty non-nil forecast", got)
	}
}

func TestService_Forecast_CachesBySource(t *testing.T) {
	src := &countingSource{}
	c := cache.NewInMemoryCache[models.WeatherForecast](time.Hour)
	svc := NewService(c, src)
	ctx := context.Background()

	first, err := svc.Forecast(ctx, "Paris", start, 2)
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}
	second, err := svc.Forecast(ctx, " paris ", start, 2)
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}
	if src.calls != 1 {
		t.Errorf("source calls = %d, want 1", src.calls)
	}
	if len(second.Forecast) != len(first.Forecast) {
		t.Errorf("cached forecast differs: %+v vs %+v", second, first)
	}
	if _, ok, _ := c.Get(ctx, "weather_paris_20261017"); !ok {
		t.Error("forecast not stored under normalized key")
	}
}

// TestService_Forecast_IgnoresDaysOnHit verifies that a cached forecast is reused
// for a different day count with the same location and start date.
func TestService_Forecast_IgnoresDaysOnHit(t *testing.T) {
	svc := NewService(cache.NewInMemoryCache[models.WeatherForecast](time.Hour), nil)
	ctx := context.Background()
	_, _ = svc.Forecast(ctx, "Paris", start, 2)
	got, _ := svc.Forecast(ctx, "Paris", start, 5)
	if len(got.Forecast) != 2 {
		t.Errorf("Forecast() days = %d, want cached 2", len(got.Forecast))
	}
}

func TestService_Forecast_DifferentStartMisses(t *testing.T) {
	src := &countingSource{}
	svc := NewService(cache.NewInMemoryCache[models.WeatherForecast](time.Hour), src)
	ctx := context.Background()
	_, _ = svc.Forecast(ctx, "Paris", start, 2)
	_, _ = svc.Forecast(ctx, "Paris", start.AddDate(0, 0, 1), 2)
	if src.calls != 2 {
		t.Errorf("source calls = %d, want 2", src.calls)
	}
}

func TestService_Forecast_SourceError(t *testing.T) {
	boom := errors.New("boom")
	c := cache.NewInMemoryCache[models.WeatherForecast](time.Hour)
	svc := NewService(c, &countingSource{err: boom})
	_, err := svc.Forecast(context.Background(), "Paris", start, 2)
	if !errors.Is(err, boom) {
		t.Errorf("Forecast() error = %v, want boom", err)
	}
	if c.Len() != 0 {
		t.Error("failed fetch should not be cached")
	}
}

func TestService_Forecast_CacheErrorsAreMisses(t *testing.T) {
	svc := NewService(failingCache{}, nil)
	got, err := svc.Forecast(context.Background(), "Paris", start, 1)
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}
	if len(got.Forecast) != 1 {
		t.Errorf("Forecast() = %+v", got)
	}
}

func TestService_Forecast_CoalescesConcurrentMisses(t *testing.T) {
	src := &countingSource{release: make(chan struct{})}
	svc := NewService(cache.NewInMemoryCache[models.WeatherForecast](time.Hour), src)

	const callers = 10
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Forecast(context.Background(), "Paris", start, 3)
			errs <- err
		}()
	}
	// Let the callers pile up on the in-flight fetch.
	for atomic.LoadInt32(&src.calls) == 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(src.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Forecast() error = %v", err)
		}
	}
	if got := atomic.LoadInt32(&src.calls); got != 1 {
		t.Errorf("source calls = %d, want 1", got)
	}
}

func TestService_Forecast_ContextCancelled(t *testing.T) {
	src := &countingSource{release: make(chan struct{})}
	defer close(src.release)
	svc := NewService(cache.NewInMemoryCache[models.WeatherForecast](time.Hour), src)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := svc.Forecast(ctx, "Paris", start, 1); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Forecast() error = %v, want DeadlineExceeded", err)
	}
}
