package validation

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Place-name errors, shared by destinations and forecast locations.
var (
	ErrLocationEmpty        = errors.New("location is required")
	ErrLocationTooShort     = errors.New("location too short")
	ErrLocationTooLong      = errors.New("location too long")
	ErrLocationInvalidChars = errors.New("location contains invalid characters")
)

// placePunctuation lists the non-alphanumeric runes accepted in place names ("St. John's, NL").
const placePunctuation = " ,-.'"

// ValidateLocation trims a place name and checks it against [minLen, maxLen] runes
// and the place-name alphabet. A bound <= 0 is not enforced.
// Case is preserved; the weather cache key folds it.
func ValidateLocation(input string, minLen, maxLen int) (string, error) {
	place := strings.TrimSpace(input)
	switch n := utf8.RuneCountInString(place); {
	case n == 0:
		return "", ErrLocationEmpty
	case minLen > 0 && n < minLen:
		return "", ErrLocationTooShort
	case maxLen > 0 && n > maxLen:
		return "", ErrLocationTooLong
	}
	if strings.IndexFunc(place, notPlaceRune) >= 0 {
		return "", ErrLocationInvalidChars
	}
	return place, nil
}

func notPlaceRune(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsNumber(r) && !strings.ContainsRune(placePunctuation, r)
}
