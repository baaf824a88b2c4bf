package query

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"presupuesto/internal/core"
	"presupuesto/internal/ledger"
)

// Criteria narrows a listing. Zero fields are unset; every set field must
// match. Bounds are inclusive.
type Criteria struct {
	DateFrom            time.Time
	DateTo              time.Time
	MinAmount           decimal.NullDecimal
	MaxAmount           decimal.NullDecimal
	DescriptionContains string
	HasAnyTag           []string
}

// Empty reports whether no criterion is set.
func (c Criteria) Empty() bool {
	return c.DateFrom.IsZero() && c.DateTo.IsZero() &&
		!c.MinAmount.Valid && !c.MaxAmount.Valid &&
		c.DescriptionContains == "" && len(c.HasAnyTag) == 0
}

// Match reports whether e satisfies every set criterion.
func (c Criteria) Match(e *core.Expense) bool {
	ts := e.Timestamp()
	if !c.DateFrom.IsZero() && ts.Before(c.DateFrom) {
		return false
	}
	if !c.DateTo.IsZero() && ts.After(c.DateTo) {
		return false
	}
	if c.MinAmount.Valid && e.Amount().LessThan(c.MinAmount.Decimal) {
		return false
	}
	if c.MaxAmount.Valid && e.Amount().GreaterThan(c.MaxAmount.Decimal) {
		return false
	}
	if c.DescriptionContains != "" && !containsIgnoreCase(e.Description(), c.DescriptionContains) {
		return false
	}
	if len(c.HasAnyTag) > 0 && !e.HasAnyTag(c.HasAnyTag...) {
		return false
	}
	return true
}

// Filter returns the matching records in insertion order.
func Filter(store *ledger.Store, c Criteria) []*core.Expense {
	all := store.List()
	if c.Empty() {
		return all
	}
	out := make([]*core.Expense, 0, len(all))
	for _, e := range all {
		if c.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
