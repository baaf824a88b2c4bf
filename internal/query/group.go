package query

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"presupuesto/internal/core"
	"presupuesto/internal/ledger"
)

// GroupByPeriod sums amounts per period bucket after narrowing by tags (any
// match) and inclusive date bounds. Zero bounds and empty tags are unset.
// An unrecognized period puts every matching record under the "" key.
func GroupByPeriod(store *ledger.Store, period core.Period, tags []string, from, to time.Time) map[string]decimal.Decimal {
	c := Criteria{DateFrom: from, DateTo: to, HasAnyTag: tags}
	out := make(map[string]decimal.Decimal)
	for _, e := range Filter(store, c) {
		key := e.PeriodKey(period)
		out[key] = out[key].Add(e.Amount())
	}
	return out
}

// SortedKeys returns the bucket keys in ascending order. Period keys sort
// chronologically as strings.
func SortedKeys(m map[string]decimal.Decimal) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Bucket is one period total of a report.
type Bucket struct {
	Key   string          `json:"key"`
	Total decimal.Decimal `json:"total"`
}

// Buckets flattens a grouping into key order.
func Buckets(m map[string]decimal.Decimal) []Bucket {
	out := make([]Bucket, 0, len(m))
	for _, k := range SortedKeys(m) {
		out = append(out, Bucket{Key: k, Total: m[k]})
	}
	return out
}
