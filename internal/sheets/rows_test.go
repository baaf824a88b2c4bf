package sheets

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"presupuesto/internal/core"
	"presupuesto/internal/query"
)

func sampleData() ExportData {
	return ExportData{
		Expenses: []core.ExpenseView{
			{ID: 0, Description: "Comida", Amount: decimal.RequireFromString("25.50"),
				Timestamp: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), Tags: []string{"alimentación", "restaurante"}},
			{ID: 2, Description: "Cine", Amount: decimal.NewFromInt(12),
				Timestamp: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Tags: []string{}},
		},
		Monthly: []query.Bucket{
			{Key: "2024-01", Total: decimal.RequireFromString("25.50")},
			{Key: "2024-02", Total: decimal.NewFromInt(12)},
		},
		Budget:      decimal.NewFromInt(100),
		TotalSpent:  decimal.RequireFromString("37.5"),
		Balance:     decimal.RequireFromString("62.5"),
		GeneratedAt: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestExpenseRows(t *testing.T) {
	rows := ExpenseRows(sampleData())
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(rows))
	}
	first := rows[1]
	if first[0] != int64(0) || first[1] != "2024-01-15" || first[2] != "Comida" {
		t.Fatalf("first row = %v", first)
	}
	if first[3] != 25.5 {
		t.Errorf("amount cell = %v, want 25.5", first[3])
	}
	if first[4] != "alimentación, restaurante" {
		t.Errorf("tags cell = %q", first[4])
	}
	if rows[2][4] != "" {
		t.Errorf("untagged row tags cell = %q, want empty", rows[2][4])
	}
}

func TestSummaryRows(t *testing.T) {
	rows := SummaryRows(sampleData())
	if len(rows) != 1+2+5 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[1][0] != "2024-01" || rows[2][0] != "2024-02" {
		t.Fatalf("bucket rows = %v %v", rows[1], rows[2])
	}
	if rows[5][0] != "Budget" || rows[5][1] != 100.0 {
		t.Errorf("budget row = %v", rows[5])
	}
	if rows[7][1] != "2024-03-01T08:00:00Z" {
		t.Errorf("generated at row = %v", rows[7])
	}
}
