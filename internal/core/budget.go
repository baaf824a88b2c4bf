package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Budget is the spending ceiling. The zero value is a budget of 0.
type Budget struct {
	value decimal.Decimal
}

// Set replaces the budget when v coerces to a non-negative number. Otherwise
// it returns ErrInvalidAmount and the stored value is left unchanged.
func (b *Budget) Set(v any) (decimal.Decimal, error) {
	d, err := CoerceAmount(v)
	if err != nil {
		return decimal.Zero, err
	}
	b.value = d
	return d, nil
}

// Value returns the current budget.
func (b *Budget) Value() decimal.Decimal {
	return b.value
}

// Describe renders the budget as a sentence.
func (b *Budget) Describe() string {
	return fmt.Sprintf("Your current budget is %s", FormatAmount(b.value))
}
