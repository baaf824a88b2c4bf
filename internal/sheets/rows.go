package sheets

import (
	"strings"
	"time"
)

var (
	ExpenseHeader = []any{"ID", "Date", "Description", "Amount", "Tags"}
	SummaryHeader = []any{"Month", "Total"}
)

// ExpenseRows renders one row per expense below ExpenseHeader, in ledger
// order. Amounts are written as numbers so the sheet can sum them.
func ExpenseRows(d ExportData) [][]any {
	rows := make([][]any, 0, len(d.Expenses)+1)
	rows = append(rows, ExpenseHeader)
	for _, e := range d.Expenses {
		rows = append(rows, []any{
			e.ID,
			e.Timestamp.Format("2006-01-02"),
			e.Description,
			e.Amount.InexactFloat64(),
			strings.Join(e.Tags, ", "),
		})
	}
	return rows
}

// SummaryRows renders the monthly totals followed by the budget figures.
func SummaryRows(d ExportData) [][]any {
	rows := make([][]any, 0, len(d.Monthly)+6)
	rows = append(rows, SummaryHeader)
	for _, b := range d.Monthly {
		rows = append(rows, []any{b.Key, b.Total.InexactFloat64()})
	}
	rows = append(rows,
		[]any{},
		[]any{"Total spent", d.TotalSpent.InexactFloat64()},
		[]any{"Budget", d.Budget.InexactFloat64()},
		[]any{"Balance", d.Balance.InexactFloat64()},
		[]any{"Generated at", d.GeneratedAt.UTC().Format(time.RFC3339)},
	)
	return rows
}
