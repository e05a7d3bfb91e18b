// Package core provides the expense-entry domain model.
//
// This file contains money parsing and formatting: decimal strings to integer
// cents and back. All arithmetic in the engine runs on cents to avoid
// floating-point drift.
package core

import (
	"strconv"
	"strings"
	"unicode"
)

// ParseDecimalToCents converts a decimal string to cents with half-up
// rounding on the third decimal place. Both "12.34" and "12,34" are accepted.
// Only positive amounts are valid.
//
// Examples:
//
//	ParseDecimalToCents("30.00")  -> 3000, nil
//	ParseDecimalToCents("12.346") -> 1235, nil (rounds up)
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafe = (1<<63 - 1) / 100
	if iv > maxSafe {
		return 0, ErrInvalidAmount
	}
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	cents := iv*100 + fracCents
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// FormatDollars renders cents as a dollar string, e.g. 5000 -> "$50.00".
func FormatDollars(cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	dollars := cents / 100
	rem := cents % 100
	s := strconv.FormatInt(dollars, 10) + "."
	if rem < 10 {
		s += "0"
	}
	s += strconv.FormatInt(rem, 10)
	if neg {
		return "-$" + s
	}
	return "$" + s
}

// String renders the amount for display, e.g. Money{3000} -> "$30.00".
func (m Money) String() string {
	return FormatDollars(m.Cents)
}

// Decimal renders the amount without a currency symbol, e.g. "30.00".
// Used for export rows and wire payloads.
func (m Money) Decimal() string {
	if m.Cents < 0 {
		return "-" + strings.TrimPrefix(FormatDollars(-m.Cents), "$")
	}
	return strings.TrimPrefix(FormatDollars(m.Cents), "$")
}
