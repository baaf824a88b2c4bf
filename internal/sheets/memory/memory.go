package memory

import (
	"context"
	"sync"

	"presupuesto/internal/core"
	ports "presupuesto/internal/sheets"
)

var _ ports.Exporter = (*Store)(nil)

// Store keeps the rendered sheets in process. It stands in for the Google
// exporter when no spreadsheet is configured.
type Store struct {
	mu       sync.Mutex
	exports  int
	last     ports.ExportData
	expenses [][]any
	summary  [][]any
}

func New() *Store {
	return &Store{}
}

// Export renders data the way the spreadsheet would receive it.
func (s *Store) Export(ctx context.Context, data ports.ExportData) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data.Expenses = append([]core.ExpenseView(nil), data.Expenses...)
	s.last = data
	s.expenses = ports.ExpenseRows(data)
	s.summary = ports.SummaryRows(data)
	s.exports++
	return nil
}

// Exports reports how many exports completed.
func (s *Store) Exports() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exports
}

// Last returns the most recent export and whether there was one.
func (s *Store) Last() (ports.ExportData, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.exports > 0
}

// Sheets returns copies of the rendered expense and summary rows.
func (s *Store) Sheets() (expenses, summary [][]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]any(nil), s.expenses...), append([][]any(nil), s.summary...)
}
