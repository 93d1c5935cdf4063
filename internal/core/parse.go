package core

import (
	"strings"
	"time"
)

// sheetDateLayout accepts one or two digit day and month.
const sheetDateLayout = "2/1/2006"

var isoDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.DateOnly,
}

var paidValues = map[string]struct{}{
	"pagado":    {},
	"true":      {},
	"verdadero": {},
	"1":         {},
	"si":        {},
	"yes":       {},
}

// ParseDate reads a day/month/year cell, falling back to ISO forms.
// Impossible calendar dates such as 31/02/2024 are rejected. On failure the
// returned *ParseError wraps ErrInvalidDate.
func ParseDate(raw string) (Date, error) {
	s := strings.TrimSpace(raw)
	if t, err := time.Parse(sheetDateLayout, s); err == nil {
		return DateOf(t), nil
	}
	for _, layout := range isoDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, &ParseError{Field: "date", Value: raw, Err: ErrInvalidDate}
}

// ParsePaidStatus reports whether a status cell means "paid". Matching
// ignores case, accents and surrounding whitespace; anything else is false.
func ParsePaidStatus(raw string) bool {
	_, ok := paidValues[Fold(raw)]
	return ok
}
