// Package query answers read-only questions about a ledger: totals, the
// remaining balance, filtered subsets and per-period aggregates.
package query

import (
	"github.com/shopspring/decimal"

	"presupuesto/internal/core"
	"presupuesto/internal/ledger"
)

// TotalSpent sums every amount in the store.
func TotalSpent(store *ledger.Store) decimal.Decimal {
	total := decimal.Zero
	for _, e := range store.List() {
		total = total.Add(e.Amount())
	}
	return total
}

// Balance is budget minus TotalSpent. A negative balance is valid.
func Balance(budget *core.Budget, store *ledger.Store) decimal.Decimal {
	return budget.Value().Sub(TotalSpent(store))
}
