// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts typed into the
// entry forms and formatting them for display.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a user-typed amount. Both dot (12.34) and comma (12,34)
// decimal separators are accepted. Negative and zero amounts are rejected.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// NormalizeAmount is the blur coercion of the amount field: a parseable
// number becomes a two-decimal string, anything else becomes "".
//
// Examples:
//
//	NormalizeAmount("12.3") -> "12.30"
//	NormalizeAmount("45")   -> "45.00"
//	NormalizeAmount("abc")  -> ""
func NormalizeAmount(raw string) string {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if s == "" {
		return ""
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ""
	}
	return d.StringFixed(2)
}

// FormatMoney renders an amount as dollars with two decimals, e.g. "$1,234.50".
func FormatMoney(d decimal.Decimal) string {
	neg := d.IsNegative()
	s := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := "$" + b.String() + "." + frac
	if neg {
		return "-" + out
	}
	return out
}
