package agent

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kjstillabower/travel-planner/internal/models"
)

const researcherSystemPrompt = "You are a world-class travel researcher. Given a travel destination and the number of days the user wants to travel for, " +
	"generate a list of search terms for finding relevant travel activities and accommodations. " +
	"Then analyze the search results and return the most relevant results to the user's preferences. " +
	"Keep a high quality bar: only include results that are specific to the destination."

const plannerSystemPrompt = "You are a senior travel planner. Given a travel destination, the number of days the user wants to travel for, and a list of research results, " +
	"your goal is to generate a draft itinerary that meets the user's needs and preferences. " +
	"Ensure the itinerary is well-structured, informative, and engaging. " +
	"Provide a nuanced and balanced itinerary, quoting facts where possible. " +
	"Never make up facts or plagiarize; answer in Markdown."

// plannerFormat lists what the itinerary must cover, in order.
var plannerFormat = []string{
	"A brief introduction",
	"Day-by-day breakdown with estimated times",
	"Estimated costs for each activity",
	"Transportation options between locations",
	"Local tips and recommendations",
	"Emergency contacts",
	"Weather considerations",
	"Packing suggestions",
}

// withDate appends the current date so the model can reason about seasons and opening times.
func withDate(system string, now time.Time) string {
	return system + "\n\nThe current date and time is " + now.Format("2006-01-02 15:04:05 MST") + "."
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "None"
	}
	return strings.Join(items, ", ")
}

// tripBrief renders the traveller's preferences shared by both agents.
func tripBrief(req models.TripRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Budget: %s\n", req.Budget)
	fmt.Fprintf(&b, "Travel Style: %s\n", req.TravelStyle)
	fmt.Fprintf(&b, "Interests: %s\n", joinOrNone(req.Interests))
	fmt.Fprintf(&b, "Start Date: %s\n", req.StartDate.Format(models.DateLayout))
	fmt.Fprintf(&b, "Group Size: %d\n", req.GroupSize)
	fmt.Fprintf(&b, "Language: %s\n", req.Language)
	fmt.Fprintf(&b, "Dietary Restrictions: %s\n", joinOrNone(req.DietaryRestrictions))
	return b.String()
}

func buildSearchTermsPrompt(req models.TripRequest, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research %s for a %d day trip.\n", req.Destination, req.NumDays)
	b.WriteString(tripBrief(req))
	fmt.Fprintf(&b, "\nGenerate exactly %d search terms related to the destination and the number of days.\n", n)
	b.WriteString("Output ONLY a JSON array of strings, for example: [\"term one\", \"term two\"].\n")
	return b.String()
}

func buildSelectionPrompt(req models.TripRequest, results []models.SearchResult, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research %s for a %d day trip.\n", req.Destination, req.NumDays)
	b.WriteString(tripBrief(req))
	fmt.Fprintf(&b, "\nFrom the search results below, return the %d most relevant results to the user's preferences.\n", n)
	b.WriteString("For each, give the title, the link and one or two sentences on why it fits.\n\nSearch results:\n")
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n   %s\n   %s\n", i+1, r.Title, r.Link, r.Snippet)
	}
	return b.String()
}

func buildPlannerPrompt(req models.TripRequest, forecast models.WeatherForecast, research string) (string, error) {
	weatherJSON, err := json.Marshal(forecast)
	if err != nil {
		return "", fmt.Errorf("encode forecast: %w", err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Destination: %s\n", req.Destination)
	fmt.Fprintf(&b, "Duration: %d days\n", req.NumDays)
	b.WriteString(tripBrief(req))
	fmt.Fprintf(&b, "Weather Forecast: %s\n", weatherJSON)
	fmt.Fprintf(&b, "Research Results: %s\n\n", research)
	b.WriteString("Please create a detailed itinerary based on this research. Format the output with:\n")
	for _, s := range plannerFormat {
		fmt.Fprintf(&b, "- %s\n", s)
	}
	return b.String(), nil
}
