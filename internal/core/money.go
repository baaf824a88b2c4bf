// Package core provides money parsing and handling utilities.
//
// This file contains the coercion rules applied to every amount entering the
// ledger, whether it comes from a form field, a JSON body or a stored snapshot.
package core

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// CoerceAmount converts a raw value to a non-negative decimal amount.
//
// Strings accept both dot (12.34) and comma (12,34) decimal separators and
// surrounding whitespace. Blank strings, NaN or infinite floats, booleans,
// nil and negative values all yield ErrInvalidAmount.
//
// Examples:
//
//	CoerceAmount("12.34")  -> 12.34, nil
//	CoerceAmount("12,34")  -> 12.34, nil
//	CoerceAmount(25)       -> 25, nil
//	CoerceAmount(-5)       -> 0, ErrInvalidAmount
//	CoerceAmount("abc")    -> 0, ErrInvalidAmount
func CoerceAmount(v any) (decimal.Decimal, error) {
	d, err := toDecimal(v)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch val := v.(type) {
	case decimal.Decimal:
		return val, nil
	case *decimal.Decimal:
		if val == nil {
			return decimal.Zero, ErrInvalidAmount
		}
		return *val, nil
	case float64:
		return fromFloat(val)
	case float32:
		return fromFloat(float64(val))
	case int:
		return decimal.NewFromInt(int64(val)), nil
	case int8:
		return decimal.NewFromInt(int64(val)), nil
	case int16:
		return decimal.NewFromInt(int64(val)), nil
	case int32:
		return decimal.NewFromInt(int64(val)), nil
	case int64:
		return decimal.NewFromInt(val), nil
	case uint:
		return fromUint(uint64(val)), nil
	case uint8:
		return fromUint(uint64(val)), nil
	case uint16:
		return fromUint(uint64(val)), nil
	case uint32:
		return fromUint(uint64(val)), nil
	case uint64:
		return fromUint(val), nil
	case json.Number:
		return parseDecimalString(val.String())
	case string:
		return parseDecimalString(val)
	default:
		return decimal.Zero, ErrInvalidAmount
	}
}

func fromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, ErrInvalidAmount
	}
	return decimal.NewFromFloat(f), nil
}

func fromUint(u uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(u), 0)
}

func parseDecimalString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatAmount renders an amount the way summaries show it: shortest exact
// decimal form followed by the euro sign.
func FormatAmount(d decimal.Decimal) string {
	return fmt.Sprintf("%s €", d.String())
}

// Text converts an arbitrary value to its text form, the way a description
// coming from a non-text field is stored.
func Text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
