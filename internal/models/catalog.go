package models

// Preference catalogue offered to travellers. Requests are validated against these lists.
var (
	BudgetRanges        = []string{"Budget", "Moderate", "Luxury"}
	TravelStyles        = []string{"Relaxed", "Balanced", "Adventure"}
	Interests           = []string{"Culture", "Food", "Nature", "History", "Shopping", "Nightlife", "Art", "Architecture", "Beach", "Mountains"}
	Languages           = []string{"English", "Spanish", "French", "German", "Italian"}
	DietaryRestrictions = []string{"None", "Vegetarian", "Vegan", "Gluten-Free", "Halal", "Kosher"}

	ItinerarySections = []string{
		"Introduction",
		"Day-by-Day Schedule",
		"Accommodations",
		"Transportation",
		"Local Tips",
		"Emergency Contacts",
		"Budget Breakdown",
		"Weather Forecast",
		"Packing List",
	}
)

// EmergencyService is a named emergency contact number.
type EmergencyService struct {
	Name   string `json:"name"`
	Number string `json:"number"`
}

// EmergencyServices lists the default emergency numbers (EU 112).
var EmergencyServices = []EmergencyService{
	{Name: "Police", Number: "112"},
	{Name: "Ambulance", Number: "112"},
	{Name: "Fire", Number: "112"},
	{Name: "Tourist Police", Number: "112"},
}

// Catalog is the preference catalogue as served by GET /options.
type Catalog struct {
	BudgetRanges        []string           `json:"budget_ranges"`
	TravelStyles        []string           `json:"travel_styles"`
	Interests           []string           `json:"interests"`
	Languages           []string           `json:"languages"`
	DietaryRestrictions []string           `json:"dietary_restrictions"`
	ItinerarySections   []string           `json:"itinerary_sections"`
	EmergencyServices   []EmergencyService `json:"emergency_services"`
}

// DefaultCatalog returns the preference catalogue.
func DefaultCatalog() Catalog {
	return Catalog{
		BudgetRanges:        BudgetRanges,
		TravelStyles:        TravelStyles,
		Interests:           Interests,
		Languages:           Languages,
		DietaryRestrictions: DietaryRestrictions,
		ItinerarySections:   ItinerarySections,
		EmergencyServices:   EmergencyServices,
	}
}
