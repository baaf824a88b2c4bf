package core

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCoerceAmount(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want string
		ok   bool
	}{
		{"int", 25, "25", true},
		{"zero", 0, "0", true},
		{"float", 25.5, "25.5", true},
		{"dot string", "12.34", "12.34", true},
		{"comma string", "12,34", "12.34", true},
		{"padded string", "  7 ", "7", true},
		{"json number", json.Number("40"), "40", true},
		{"decimal", dec("3.10"), "3.1", true},
		{"uint", uint(9), "9", true},
		{"negative int", -5, "", false},
		{"negative string", "-1", "", false},
		{"blank", "   ", "", false},
		{"garbage", "abc", "", false},
		{"two separators", "1.2.3", "", false},
		{"nan", math.NaN(), "", false},
		{"inf", math.Inf(1), "", false},
		{"bool", true, "", false},
		{"nil", nil, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CoerceAmount(tc.in)
			if !tc.ok {
				if err != ErrInvalidAmount {
					t.Fatalf("CoerceAmount(%v) err = %v, want ErrInvalidAmount", tc.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("CoerceAmount(%v) unexpected error: %v", tc.in, err)
			}
			if !got.Equal(dec(tc.want)) {
				t.Errorf("CoerceAmount(%v) = %s, want %s", tc.in, got, tc.want)
			}
		})
	}
}

func TestFormatAmount(t *testing.T) {
	if got := FormatAmount(dec("25.50")); got != "25.5 €" {
		t.Fatalf("FormatAmount = %q, want %q", got, "25.5 €")
	}
	if got := Text(42); got != "42" {
		t.Fatalf("Text(42) = %q", got)
	}
	if got := Text(nil); got != "" {
		t.Fatalf("Text(nil) = %q", got)
	}
}
