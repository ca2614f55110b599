package packing

import (
	"reflect"
	"testing"

	"github.com/kjstillabower/travel-planner/internal/models"
)

func forecast(days ...models.DayForecast) models.WeatherForecast {
	return models.WeatherForecast{Location: "Reykjavik", Forecast: days}
}

func TestGenerate_RainyColdAdventure(t *testing.T) {
	got := Generate(forecast(models.DayForecast{Date: "2026-10-17", TemperatureC: 15, Conditions: "Rain"}), "Adventure", 1)
	want := []string{
		"Backpack", "Credit Cards", "Hiking Boots", "Jacket", "Medications",
		"Passport/ID", "Phone Charger", "Travel Insurance", "Umbrella", "Water Bottle",
	}
	// Five essentials, Umbrella, Jacket and the three Adventure items.
	if len(got) != 10 {
		t.Errorf("Generate() returned %d items, want 10: %v", len(got), got)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Generate() = %v, want %v", got, want)
	}
}

func TestGenerate_Rules(t *testing.T) {
	tests := []struct {
		name        string
		days        []models.DayForecast
		style       string
		wantHas     []string
		wantMissing []string
		wantLen     int
	}{
		{
			name:        "stub weather relaxed",
			days:        []models.DayForecast{{TemperatureC: 25, Conditions: "Sunny"}},
			style:       "Relaxed",
			wantHas:     []string{"Comfortable Shoes", "Casual Clothes"},
			wantMissing: []string{"Umbrella", "Jacket"},
			wantLen:     7,
		},
		{
			name:    "rain case-insensitive in description",
			days:    []models.DayForecast{{TemperatureC: 22, Conditions: "light RAIN showers"}},
			style:   "Balanced",
			wantHas: []string{"Umbrella", "Walking Shoes", "Mix of Casual and Smart Clothes"},
			wantLen: 8,
		},
		{
			name:        "exactly 20 degrees is not cold",
			days:        []models.DayForecast{{TemperatureC: 20, Conditions: "Clear"}},
			style:       "Balanced",
			wantMissing: []string{"Jacket"},
		},
		{
			name:    "any cold day packs a jacket once",
			days:    []models.DayForecast{{TemperatureC: 25}, {TemperatureC: 5}, {TemperatureC: 3}},
			style:   "",
			wantHas: []string{"Jacket"},
			wantLen: 6,
		},
		{
			name:    "unknown style adds nothing",
			days:    nil,
			style:   "Luxury Cruise",
			wantLen: 5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Generate(forecast(tt.days...), tt.style, len(tt.days))
			set := make(map[string]bool, len(got))
			for _, it := range got {
				if set[it] {
					t.Errorf("duplicate item %q", it)
				}
				set[it] = true
			}
			for _, e := range Essentials {
				if !set[e] {
					t.Errorf("missing essential %q", e)
				}
			}
			for _, it := range tt.wantHas {
				if !set[it] {
					t.Errorf("missing %q in %v", it, got)
				}
			}
			for _, it := range tt.wantMissing {
				if set[it] {
					t.Errorf("unexpected %q in %v", it, got)
				}
			}
			if tt.wantLen > 0 && len(got) != tt.wantLen {
				t.Errorf("len = %d, want %d: %v", len(got), tt.wantLen, got)
			}
		})
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	f := forecast(
		models.DayForecast{TemperatureC: 12, Conditions: "Rain"},
		models.DayForecast{TemperatureC: 28, Conditions: "Clear"},
	)
	first := Generate(f, "Adventure", 2)
	for i := 0; i < 20; i++ {
		if got := Generate(f, "Adventure", 2); !reflect.DeepEqual(got, first) {
			t.Fatalf("Generate() run %d = %v, want %v", i, got, first)
		}
	}
}

func TestGenerate_ResultDoesNotAliasStyleItems(t *testing.T) {
	f := models.WeatherForecast{}
	items := Generate(f, "Adventure", 3)
	for i := range items {
		items[i] = "Mutated"
	}
	got := Generate(f, "Adventure", 3)
	if !reflect.DeepEqual(got, []string{"Backpack", "Credit Cards", "Hiking Boots", "Medications", "Passport/ID", "Phone Charger", "Travel Insurance", "Water Bottle"}) {
		t.Errorf("Generate() after mutation = %v", got)
	}
}
