package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/travel-planner/internal/models"
	"github.com/kjstillabower/travel-planner/internal/weather"
)

var testNow = time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

type fakePlanner struct {
	got models.TripRequest
	err error
}

func (f *fakePlanner) Plan(_ context.Context, req models.TripRequest) (models.TripPlan, error) {
	f.got = req
	if f.err != nil {
		return models.TripPlan{}, f.err
	}
	return models.TripPlan{
		Destination: req.Destination,
		Duration:    req.NumDays,
		StartDate:   req.StartDate.Format(models.DateLayout),
		Itinerary:   "## Day 1\nWalk.",
		Weather:     weather.Synthesize(req.Destination, req.StartDate, req.NumDays),
		PackingList: []string{"Passport/ID"},
	}, nil
}

func testDeps(p *fakePlanner) deps {
	d := defaultDeps()
	d.planner = func(*zap.Logger) (tripPlanner, func(), error) { return p, func() {}, nil }
	d.logger = func() (*zap.Logger, error) { return zap.NewNop(), nil }
	d.now = func() time.Time { return testNow }
	return d
}

func run(t *testing.T, d deps, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand(d, strings.NewReader(stdin), &out)
	err := cmd.Run(context.Background(), append([]string{"planner"}, args...))
	return out.String(), err
}

func TestPlan_WritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	p := &fakePlanner{}

	out, err := run(t, testDeps(p), "", "plan", "--destination", "New York", "--days", "2",
		"--start", "2026-10-20", "--style", "adventure", "--interests", "food", "--interests", "art", "--out-dir", dir)
	if err != nil {
		t.Fatalf("plan error = %v", err)
	}
	if p.got.TravelStyle != "Adventure" || !reflect.DeepEqual(p.got.Interests, []string{"Food", "Art"}) {
		t.Errorf("planner received %+v, want normalized request", p.got)
	}

	md, err := os.ReadFile(filepath.Join(dir, "New_York_itinerary.md"))
	if err != nil {
		t.Fatalf("read markdown: %v", err)
	}
	if !strings.Contains(string(md), "## Packing List") {
		t.Errorf("markdown missing packing list:\n%s", md)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "New_York_itinerary.json"))
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	var plan models.TripPlan
	if err := json.Unmarshal(raw, &plan); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if plan.Duration != 2 || plan.StartDate != "2026-10-20" || len(plan.Weather.Forecast) != 2 {
		t.Errorf("json plan = %+v", plan)
	}
	if !strings.Contains(out, "New_York_itinerary.md") || !strings.Contains(out, "New_York_itinerary.json") {
		t.Errorf("stdout = %q, want both paths", out)
	}
}

func TestPlan_InvalidRequest(t *testing.T) {
	p := &fakePlanner{}
	_, err := run(t, testDeps(p), "", "plan", "--destination", "Paris", "--days", "45", "--out-dir", t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "num_days") {
		t.Fatalf("plan error = %v, want num_days error", err)
	}
	if p.got.Destination != "" {
		t.Error("planner called for invalid trip")
	}
	if code := exitCode(err); code != 2 {
		t.Errorf("exitCode() = %d, want 2 for rejected input", code)
	}
}

func TestPlan_PlannerError(t *testing.T) {
	dir := t.TempDir()
	p := &fakePlanner{err: errors.New("model unavailable")}
	if _, err := run(t, testDeps(p), "", "plan", "--destination", "Paris", "--out-dir", dir); err == nil {
		t.Fatal("plan error = nil, want planner error")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("artifacts written on failure: %v", entries)
	}
}

func TestExitCode(t *testing.T) {
	if code := exitCode(nil); code != 0 {
		t.Errorf("exitCode(nil) = %d, want 0", code)
	}
	_, err := run(t, testDeps(&fakePlanner{err: errors.New("model unavailable")}), "", "plan", "--destination", "Paris", "--out-dir", t.TempDir())
	if code := exitCode(err); code != 1 {
		t.Errorf("exitCode(%v) = %d, want 1", err, code)
	}
	_, err = run(t, testDeps(&fakePlanner{}), "", "forecast", "--location", "Rio/Janeiro")
	if code := exitCode(err); code != 2 {
		t.Errorf("exitCode(%v) = %d, want 2", err, code)
	}
}

func TestForecast_Stub(t *testing.T) {
	out, err := run(t, testDeps(&fakePlanner{}), "", "forecast", "--location", "Oslo", "--days", "3")
	if err != nil {
		t.Fatalf("forecast error = %v", err)
	}
	var f models.WeatherForecast
	if err := json.Unmarshal([]byte(out), &f); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(f.Forecast) != 3 || f.Forecast[0].Date != "2026-10-17" || f.Source != "stub" {
		t.Errorf("forecast = %+v, want 3 stub days from tomorrow", f)
	}
}

func TestForecast_RejectsUnknownProvider(t *testing.T) {
	if _, err := run(t, testDeps(&fakePlanner{}), "", "forecast", "--location", "Oslo", "--provider", "almanac"); err == nil {
		t.Fatal("forecast error = nil, want provider error")
	}
}

func TestPack_FromStdin(t *testing.T) {
	in := `{"location":"Oslo","forecast":[{"date":"2026-10-17","temperature":15,"conditions":"Light Rain","precipitation":60}]}`
	out, err := run(t, testDeps(&fakePlanner{}), in, "pack", "--style", "Adventure")
	if err != nil {
		t.Fatalf("pack error = %v", err)
	}
	got := strings.Split(strings.TrimSpace(out), "\n")
	want := []string{"Backpack", "Credit Cards", "Hiking Boots", "Jacket", "Medications", "Passport/ID", "Phone Charger", "Travel Insurance", "Umbrella", "Water Bottle"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("pack = %v, want %v", got, want)
	}
}

func TestPack_UnknownStyle(t *testing.T) {
	if _, err := run(t, testDeps(&fakePlanner{}), `{}`, "pack", "--style", "Cruise"); err == nil {
		t.Fatal("pack error = nil, want style error")
	}
}
