// Package packing derives a packing list from a forecast and a travel style.
package packing

import (
	"sort"
	"strings"

	"github.com/kjstillabower/travel-planner/internal/models"
)

// JacketBelowC is the temperature under which a jacket is packed.
const JacketBelowC = 20.0

// Essentials are packed for every trip.
var Essentials = []string{
	"Passport/ID",
	"Travel Insurance",
	"Credit Cards",
	"Phone Charger",
	"Medications",
}

var styleItems = map[string][]string{
	"Relaxed":   {"Comfortable Shoes", "Casual Clothes"},
	"Adventure": {"Hiking Boots", "Backpack", "Water Bottle"},
	"Balanced":  {"Walking Shoes", "Mix of Casual and Smart Clothes"},
}

// Generate returns the sorted, deduplicated packing list. numDays does not
// change the result; it is accepted so callers pass the full trip shape.
func Generate(forecast models.WeatherForecast, travelStyle string, numDays int) []string {
	set := make(map[string]struct{}, len(Essentials)+5)
	add := func(items ...string) {
		for _, it := range items {
			set[it] = struct{}{}
		}
	}

	add(Essentials...)
	for _, day := range forecast.Forecast {
		if strings.Contains(strings.ToLower(day.Conditions), "rain") {
			add("Umbrella")
		}
		if day.TemperatureC < JacketBelowC {
			add("Jacket")
		}
	}
	add(styleItems[travelStyle]...)

	out := make([]string, 0, len(set))
	for it := range set {
		out = append(out, it)
	}
	sort.Strings(out)
	return out
}
