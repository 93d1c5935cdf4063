// Package core provides the transaction model and the pure functions that
// turn raw sheet cells into it.
//
// This file contains amount parsing for the sheet's localized number
// format (dot thousands separator, comma decimal separator).
package core

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var numericPrefix = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?`)

// ParseAmount converts a localized amount cell into a float.
//
// Every "." is removed as a thousands separator, then the first "," becomes
// the decimal point. The longest leading numeric prefix is parsed, so
// trailing currency symbols are ignored. Empty or unparsable input yields 0.
// Overflow and "Infinity" yield an infinite value, which callers must reject.
//
// Examples:
//
//	ParseAmount("1.234,56") -> 1234.56
//	ParseAmount("100 €")    -> 100
//	ParseAmount("abc")      -> 0
func ParseAmount(raw string) float64 {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, ".", "")
	s = strings.Replace(s, ",", ".", 1)
	return parseFloatPrefix(s)
}

func parseFloatPrefix(s string) float64 {
	m := numericPrefix.FindString(s)
	if m == "" {
		sign := 1.0
		rest := s
		if strings.HasPrefix(rest, "-") {
			sign = -1
			rest = rest[1:]
		} else if strings.HasPrefix(rest, "+") {
			rest = rest[1:]
		}
		if strings.HasPrefix(rest, "Infinity") {
			return math.Inf(int(sign))
		}
		return 0
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		// ParseFloat returns ±Inf together with ErrRange on overflow.
		if errors.Is(err, strconv.ErrRange) {
			return f
		}
		return 0
	}
	return f
}

// IsFinite reports whether f is neither NaN nor infinite.
func IsFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// FormatAmount renders d in the sheet's number format: no thousands
// separator and "," as the decimal point.
//
//	FormatAmount(1234.56) -> "1234,56"
func FormatAmount(d decimal.Decimal) string {
	return strings.Replace(d.String(), ".", ",", 1)
}

// AmountFromFloat converts a finite parsed amount into a non-negative
// decimal magnitude. The sign of a transaction comes from its Kind.
func AmountFromFloat(f float64) (decimal.Decimal, error) {
	if !IsFinite(f) {
		return decimal.Zero, ErrInvalidAmount
	}
	return decimal.NewFromFloat(math.Abs(f)), nil
}
