package service

import (
	"fmt"
	"strings"

	"github.com/kjstillabower/travel-planner/internal/models"
)

// Markdown renders plan as a downloadable document: the itinerary followed by
// the weather forecast and the packing list.
func Markdown(plan models.TripPlan) string {
	var b strings.Builder
	itinerary := strings.TrimSpace(plan.Itinerary)
	if !strings.HasPrefix(itinerary, "#") {
		fmt.Fprintf(&b, "# %d-Day Trip to %s\n\n", plan.Duration, plan.Destination)
	}
	b.WriteString(itinerary)
	b.WriteString("\n\n## Weather Forecast\n\n")
	if len(plan.Weather.Forecast) == 0 {
		b.WriteString("No forecast available.\n")
	} else {
		b.WriteString("| Date | Temperature (°C) | Conditions | Precipitation |\n")
		b.WriteString("|---|---|---|---|\n")
		for _, d := range plan.Weather.Forecast {
			fmt.Fprintf(&b, "| %s | %.1f | %s | %d%% |\n", d.Date, d.TemperatureC, d.Conditions, d.PrecipitationPct)
		}
	}
	b.WriteString("\n## Packing List\n\n")
	for _, item := range plan.PackingList {
		fmt.Fprintf(&b, "- [ ] %s\n", item)
	}
	return b.String()
}
