package validation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kjstillabower/travel-planner/internal/models"
)

// Trip request bounds.
const (
	MinDestinationLen = 1
	MaxDestinationLen = 100
	MinNumDays        = 1
	MaxNumDays        = 30
	MinGroupSize      = 1
	MaxGroupSize      = 20

	DefaultNumDays   = 7
	DefaultGroupSize = 2
)

var (
	ErrNumDaysOutOfRange   = errors.New("num_days out of range")
	ErrGroupSizeOutOfRange = errors.New("group_size out of range")
	ErrStartDateInvalid    = errors.New("start_date must be YYYY-MM-DD")
	ErrStartDateInPast     = errors.New("start_date is in the past")
	ErrUnknownBudget       = errors.New("unknown budget")
	ErrUnknownTravelStyle  = errors.New("unknown travel_style")
	ErrUnknownInterest     = errors.New("unknown interest")
	ErrUnknownLanguage     = errors.New("unknown language")
	ErrUnknownDietary      = errors.New("unknown dietary restriction")
)

// ValidateTripRequest checks req against the bounds and the preference catalogue
// and returns a normalized copy with defaults filled in:
// num_days 7, start tomorrow, group of 2, and the first catalogue entry for
// budget, style and language. Dates are compared by calendar day in UTC.
func ValidateTripRequest(req models.TripRequest, now time.Time) (models.TripRequest, error) {
	out := req

	dest, err := ValidateLocation(req.Destination, MinDestinationLen, MaxDestinationLen)
	if err != nil {
		return models.TripRequest{}, err
	}
	out.Destination = dest

	if out.NumDays == 0 {
		out.NumDays = DefaultNumDays
	}
	if out.NumDays < MinNumDays || out.NumDays > MaxNumDays {
		return models.TripRequest{}, fmt.Errorf("%w: %d (allowed %d-%d)", ErrNumDaysOutOfRange, out.NumDays, MinNumDays, MaxNumDays)
	}

	if out.GroupSize == 0 {
		out.GroupSize = DefaultGroupSize
	}
	if out.GroupSize < MinGroupSize || out.GroupSize > MaxGroupSize {
		return models.TripRequest{}, fmt.Errorf("%w: %d (allowed %d-%d)", ErrGroupSizeOutOfRange, out.GroupSize, MinGroupSize, MaxGroupSize)
	}

	today := truncateDay(now)
	switch raw := strings.TrimSpace(req.StartDateRaw); {
	case raw != "":
		d, err := time.Parse(models.DateLayout, raw)
		if err != nil {
			return models.TripRequest{}, fmt.Errorf("%w: %q", ErrStartDateInvalid, raw)
		}
		out.StartDate = d
	case req.StartDate.IsZero():
		out.StartDate = today.AddDate(0, 0, 1)
	default:
		out.StartDate = truncateDay(req.StartDate)
	}
	if out.StartDate.Before(today) {
		return models.TripRequest{}, fmt.Errorf("%w: %s", ErrStartDateInPast, out.StartDate.Format(models.DateLayout))
	}
	out.StartDateRaw = out.StartDate.Format(models.DateLayout)

	if out.Budget, err = choice(req.Budget, models.BudgetRanges, ErrUnknownBudget); err != nil {
		return models.TripRequest{}, err
	}
	if out.TravelStyle, err = choice(req.TravelStyle, models.TravelStyles, ErrUnknownTravelStyle); err != nil {
		return models.TripRequest{}, err
	}
	if out.Language, err = choice(req.Language, models.Languages, ErrUnknownLanguage); err != nil {
		return models.TripRequest{}, err
	}
	if out.Interests, err = choices(req.Interests, models.Interests, ErrUnknownInterest); err != nil {
		return models.TripRequest{}, err
	}
	if out.DietaryRestrictions, err = choices(req.DietaryRestrictions, models.DietaryRestrictions, ErrUnknownDietary); err != nil {
		return models.TripRequest{}, err
	}
	return out, nil
}

// ValidateTravelStyle returns the canonical spelling of style. An empty style is
// returned unchanged so callers can build a list without style items.
func ValidateTravelStyle(style string) (string, error) {
	if strings.TrimSpace(style) == "" {
		return "", nil
	}
	return choice(style, models.TravelStyles, ErrUnknownTravelStyle)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// choice matches v case-insensitively against allowed and returns the canonical
// spelling. Empty v selects allowed[0].
func choice(v string, allowed []string, errUnknown error) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return allowed[0], nil
	}
	for _, a := range allowed {
		if strings.EqualFold(a, v) {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", errUnknown, v)
}

// choices canonicalizes each value and drops duplicates, keeping order.
func choices(vs []string, allowed []string, errUnknown error) ([]string, error) {
	if len(vs) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(vs))
	seen := make(map[string]struct{}, len(vs))
	for _, v := range vs {
		if strings.TrimSpace(v) == "" {
			continue
		}
		c, err := choice(v, allowed, errUnknown)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out, nil
}

// IsInvalid reports whether err came from request validation rather than from a dependency.
func IsInvalid(err error) bool {
	for _, target := range []error{
		ErrLocationEmpty, ErrLocationTooShort, ErrLocationTooLong, ErrLocationInvalidChars,
		ErrNumDaysOutOfRange, ErrGroupSizeOutOfRange, ErrStartDateInvalid, ErrStartDateInPast,
		ErrUnknownBudget, ErrUnknownTravelStyle, ErrUnknownInterest, ErrUnknownLanguage, ErrUnknownDietary,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
