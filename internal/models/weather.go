package models

// DayForecast is the forecast for a single calendar day of a trip.
type DayForecast struct {
	Date             string  `json:"date"`          // YYYY-MM-DD
	TemperatureC     float64 `json:"temperature"`   // degrees Celsius
	Conditions       string  `json:"conditions"`    // e.g. "Sunny", "light rain"
	PrecipitationPct int     `json:"precipitation"` // probability, 0-100
}

// WeatherForecast is the per-day forecast for a destination, ordered by date.
type WeatherForecast struct {
	Location string        `json:"location"`
	Forecast []DayForecast `json:"forecast"`
	Source   string        `json:"source,omitempty"` // "stub" or "openweathermap"
}
