package sheets

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"presupuesto/internal/core"
	"presupuesto/internal/query"
)

// ExportData is everything written in one export pass.
type ExportData struct {
	Expenses    []core.ExpenseView
	Monthly     []query.Bucket
	Budget      decimal.Decimal
	TotalSpent  decimal.Decimal
	Balance     decimal.Decimal
	GeneratedAt time.Time
}

// Exporter replaces the spreadsheet contents with data.
type Exporter interface {
	Export(ctx context.Context, data ExportData) error
}
