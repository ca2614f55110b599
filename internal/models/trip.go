package models

import "time"

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// TripRequest holds the traveller's preferences for a single itinerary.
type TripRequest struct {
	Destination         string    `json:"destination"`
	NumDays             int       `json:"num_days"`
	StartDate           time.Time `json:"-"`
	StartDateRaw        string    `json:"start_date,omitempty"`
	Budget              string    `json:"budget"`
	TravelStyle         string    `json:"travel_style"`
	Interests           []string  `json:"interests,omitempty"`
	GroupSize           int       `json:"group_size"`
	Language            string    `json:"language"`
	DietaryRestrictions []string  `json:"dietary_restrictions,omitempty"`
}

// SearchResult is a single relevance-ranked item returned by the search tool.
type SearchResult struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
}

// Research is the researcher agent's output.
type Research struct {
	SearchTerms []string       `json:"search_terms"`
	Results     []SearchResult `json:"results"`
	Content     string         `json:"content"`
}

// TripPlan is the exported itinerary document.
// Field names match the JSON download format.
type TripPlan struct {
	Destination string          `json:"destination"`
	Duration    int             `json:"duration"`
	StartDate   string          `json:"start_date"`
	Itinerary   string          `json:"itinerary"`
	Weather     WeatherForecast `json:"weather"`
	PackingList []string        `json:"packing_list"`
}
