// Package http exposes the ledger as a JSON API.
//
// This file implements utilities for reading request bodies and query
// strings. Bodies may be JSON objects or form-encoded; values are handed to
// the ledger raw so that the core decides how to coerce them.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"presupuesto/internal/core"
	"presupuesto/internal/query"
)

const (
	// maxBodyBytes bounds every request body, snapshots included.
	maxBodyBytes   = 4 << 20
	dateOnlyLayout = "2006-01-02"
)

var (
	ErrBodyTooLarge  = errors.New("request body too large")
	ErrNotJSONObject = errors.New("JSON body must be an object")
	ErrInvalidQuery  = errors.New("invalid query parameter")
)

// RequestBodyParser reads a body once and exposes its fields regardless of
// whether it was sent as JSON or as a form.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if p.err == nil && len(p.body) > maxBodyBytes {
		p.err = ErrBodyTooLarge
	}
	return p
}

// Parse decodes the body as JSON when it looks like JSON and as a form
// otherwise. JSON numbers are kept as json.Number so amounts are never
// rounded through float64.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' || trimmed[0] == '[' {
		if trimmed[0] == '[' {
			p.err = ErrNotJSONObject
			return p.err
		}
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		p.jsonData = make(map[string]any)
		if err := dec.Decode(&p.jsonData); err != nil {
			p.jsonData = nil
			p.err = fmt.Errorf("decode JSON body: %w", err)
			return p.err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(trimmed))
	return p.err
}

// Has reports whether key was sent at all.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		_, ok := p.jsonData[key]
		return ok
	}
	if p.formData != nil {
		_, ok := p.formData[key]
		return ok
	}
	return false
}

// Get returns a field as sanitized text.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return strings.TrimSpace(sanitizeInput(core.Text(val)))
		}
		return ""
	}
	if p.formData != nil {
		return strings.TrimSpace(sanitizeInput(p.formData.Get(key)))
	}
	return ""
}

// Value returns a field untouched: json.Number, string, bool or nil for
// JSON bodies and the trimmed string for forms. A missing key yields nil.
func (p *RequestBodyParser) Value(key string) any {
	if p.jsonData != nil {
		return p.jsonData[key]
	}
	if p.formData != nil {
		if _, ok := p.formData[key]; ok {
			return strings.TrimSpace(p.formData.Get(key))
		}
	}
	return nil
}

// Tags reads a tag list sent either as a JSON array or as comma-separated
// text. Repeated form keys are merged. The boolean reports presence.
func (p *RequestBodyParser) Tags(key string) ([]string, bool) {
	if !p.Has(key) {
		return nil, false
	}
	if p.jsonData != nil {
		switch val := p.jsonData[key].(type) {
		case []any:
			out := make([]string, 0, len(val))
			for _, item := range val {
				if s := strings.TrimSpace(sanitizeInput(core.Text(item))); s != "" {
					out = append(out, s)
				}
			}
			return out, true
		case nil:
			return []string{}, true
		default:
			return core.SplitTags(sanitizeInput(core.Text(val))), true
		}
	}
	return splitTagValues(p.formData[key]), true
}

// GetRaw returns the raw body bytes.
func (p *RequestBodyParser) GetRaw() []byte {
	return p.body
}

// ContentType returns the Content-Type header value.
func (p *RequestBodyParser) ContentType() string {
	return p.contentType
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// ParseCriteria builds listing criteria from from, to, min, max, q and tags.
func ParseCriteria(q url.Values) (query.Criteria, error) {
	var c query.Criteria
	var err error

	if c.DateFrom, err = parseDateBound(q.Get("from"), false); err != nil {
		return c, err
	}
	if c.DateTo, err = parseDateBound(q.Get("to"), true); err != nil {
		return c, err
	}
	if c.MinAmount, err = parseAmountBound("min", q.Get("min")); err != nil {
		return c, err
	}
	if c.MaxAmount, err = parseAmountBound("max", q.Get("max")); err != nil {
		return c, err
	}
	c.DescriptionContains = sanitizeInput(q.Get("q"))
	c.HasAnyTag = splitTagValues(q["tags"])
	return c, nil
}

// ParseReportRange reads the from/to bounds of a report.
func ParseReportRange(q url.Values) (from, to time.Time, err error) {
	if from, err = parseDateBound(q.Get("from"), false); err != nil {
		return from, to, err
	}
	to, err = parseDateBound(q.Get("to"), true)
	return from, to, err
}

// parseDateBound accepts any timestamp the core accepts. A bare date used as
// an upper bound covers the whole day.
func parseDateBound(raw string, upper bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	var v any = raw
	dateOnly := len(raw) == len(dateOnlyLayout)
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		v = ms
		dateOnly = false
	}
	t, ok := core.CoerceTimestamp(v)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: unparsable date %q", ErrInvalidQuery, raw)
	}
	if upper && dateOnly {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func parseAmountBound(name, raw string) (decimal.NullDecimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := core.CoerceAmount(raw)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("%w: %s must be a non-negative number", ErrInvalidQuery, name)
	}
	return decimal.NewNullDecimal(d), nil
}

func splitTagValues(values []string) []string {
	var out []string
	for _, v := range values {
		out = append(out, core.SplitTags(sanitizeInput(v))...)
	}
	return out
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
