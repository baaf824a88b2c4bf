package core

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// layouts accepted for textual timestamps, most specific first.
var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// nowFunc is the construction-time clock.
var nowFunc = time.Now

// maxMillis bounds numeric timestamps to the range a JavaScript Date holds.
const maxMillis = 8.64e15

// CoerceTimestamp converts a raw value to a point in time. Numbers are read as
// Unix milliseconds. The second result is false when v does not describe a
// valid time, including times outside years 0 to 9999, which cannot be
// written as RFC 3339.
func CoerceTimestamp(v any) (time.Time, bool) {
	t, ok := coerceTimestamp(v)
	if !ok || !representable(t) {
		return time.Time{}, false
	}
	return t, true
}

func coerceTimestamp(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, !val.IsZero()
	case *time.Time:
		if val == nil || val.IsZero() {
			return time.Time{}, false
		}
		return *val, true
	case string:
		return parseTimestamp(val)
	case json.Number:
		if ms, err := val.Int64(); err == nil {
			return fromMillis(float64(ms))
		}
		f, err := val.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return fromMillis(f)
	case int:
		return fromMillis(float64(val))
	case int64:
		return fromMillis(float64(val))
	case float64:
		return fromMillis(val)
	default:
		return time.Time{}, false
	}
}

func representable(t time.Time) bool {
	y := t.UTC().Year()
	return y >= 0 && y <= 9999
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func fromMillis(f float64) (time.Time, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > maxMillis {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(f)), true
}
