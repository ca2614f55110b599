package weather

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kjstillabower/travel-planner/internal/cache"
	"github.com/kjstillabower/travel-planner/internal/models"
)

type recordingProvider struct {
	mu    sync.Mutex
	calls map[string]time.Time
	fail  map[string]bool
}

func (p *recordingProvider) Forecast(_ context.Context, location string, start time.Time, days int) (models.WeatherForecast, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls == nil {
		p.calls = make(map[string]time.Time)
	}
	p.calls[location] = start
	if p.fail[location] {
		return models.WeatherForecast{}, errors.New("upstream down")
	}
	return Synthesize(location, start, days), nil
}

func TestWarmer_Warm(t *testing.T) {
	p := &recordingProvider{}
	w := NewWarmer(p, 7, nil)
	w.now = func() time.Time { return time.Date(2026, 10, 16, 23, 30, 0, 0, time.UTC) }

	if err := w.Warm(context.Background(), []string{"paris", "tokyo"}); err != nil {
		t.Fatalf("Warm() error = %v", err)
	}
	want := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	for _, dest := range []string{"paris", "tokyo"} {
		if got, ok := p.calls[dest]; !ok || !got.Equal(want) {
			t.Errorf("%s warmed from %v, want %v", dest, got, want)
		}
	}
}

func TestWarmer_Warm_JoinsErrors(t *testing.T) {
	p := &recordingProvider{fail: map[string]bool{"tokyo": true}}
	err := NewWarmer(p, 3, nil).Warm(context.Background(), []string{"paris", "tokyo"})
	if err == nil || !strings.Contains(err.Error(), "warm tokyo") {
		t.Fatalf("Warm() error = %v, want tokyo failure", err)
	}
	if len(p.calls) != 2 {
		t.Errorf("calls = %d, want 2 (failures do not stop other destinations)", len(p.calls))
	}
}

// TestWarmer_PopulatesServiceCache verifies a warmed destination is a cache hit afterwards.
func TestWarmer_PopulatesServiceCache(t *testing.T) {
	c := cache.NewInMemoryCache[models.WeatherForecast](time.Hour)
	svc := NewService(c, StubSource{})
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	w := NewWarmer(svc, 7, nil)
	w.now = func() time.Time { return now }

	if err := w.Warm(context.Background(), []string{"Lisbon"}); err != nil {
		t.Fatalf("Warm() error = %v", err)
	}
	if _, ok, _ := c.Get(context.Background(), CacheKey("lisbon", now.AddDate(0, 0, 1).Truncate(24*time.Hour))); !ok {
		t.Error("warmed forecast not in cache")
	}
}

func TestWarmer_WarmPeriodic_StopsOnCancel(t *testing.T) {
	p := &recordingProvider{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewWarmer(p, 1, nil).WarmPeriodic(ctx, []string{"oslo"}, time.Hour) }()

	deadline := time.After(time.Second)
	for {
		p.mu.Lock()
		n := len(p.calls)
		p.mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("initial warm did not run")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("WarmPeriodic() error = %v, want context.Canceled", err)
	}
}
