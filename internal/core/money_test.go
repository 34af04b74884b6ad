package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestNormalizeAmount(t *testing.T) {
	cases := map[string]string{
		"12.3":   "12.30",
		"45":     "45.00",
		"45.00":  "45.00",
		"12,3":   "12.30",
		" 7.5 ":  "7.50",
		"1.005":  "1.01",
		"abc":    "",
		"":       "",
		"12.3.4": "",
	}
	for in, want := range cases {
		if got := NormalizeAmount(in); got != want {
			t.Fatalf("NormalizeAmount(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseAmount(t *testing.T) {
	ok := map[string]string{"12.34": "12.34", "12,34": "12.34", "45.00": "45"}
	for in, want := range ok {
		got, err := ParseAmount(in)
		if err != nil {
			t.Fatalf("ParseAmount(%q) error: %v", in, err)
		}
		if !got.Equal(decimal.RequireFromString(want)) {
			t.Fatalf("ParseAmount(%q) = %s, want %s", in, got, want)
		}
	}
	for _, in := range []string{"", "abc", "-1", "0", "0.00"} {
		if _, err := ParseAmount(in); err == nil {
			t.Fatalf("ParseAmount(%q) expected error", in)
		}
	}
}

func TestFormatMoney(t *testing.T) {
	cases := map[string]string{
		"0":         "$0.00",
		"12.3":      "$12.30",
		"1234.5":    "$1,234.50",
		"1234567.8": "$1,234,567.80",
		"-500":      "-$500.00",
	}
	for in, want := range cases {
		if got := FormatMoney(decimal.RequireFromString(in)); got != want {
			t.Fatalf("FormatMoney(%s) = %q, want %q", in, got, want)
		}
	}
}
