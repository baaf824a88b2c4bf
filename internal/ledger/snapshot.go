package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"presupuesto/internal/core"
)

var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Snapshot is the serializable form of a budget and its store.
type Snapshot struct {
	Budget   decimal.Decimal    `json:"budget"`
	NextID   int64              `json:"nextId"`
	Expenses []core.ExpenseView `json:"expenses"`
}

// Capture copies the current state of budget and store.
func Capture(budget *core.Budget, store *Store) Snapshot {
	snap := Snapshot{
		Budget:   budget.Value(),
		NextID:   store.NextID(),
		Expenses: make([]core.ExpenseView, 0, store.Len()),
	}
	for _, e := range store.List() {
		snap.Expenses = append(snap.Expenses, e.View())
	}
	return snap
}

// Validate checks the snapshot without touching any state.
func (s Snapshot) Validate() error {
	if s.Budget.IsNegative() {
		return fmt.Errorf("%w: negative budget", ErrInvalidSnapshot)
	}
	if s.NextID < 0 {
		return fmt.Errorf("%w: negative nextId", ErrInvalidSnapshot)
	}
	seen := make(map[int64]struct{}, len(s.Expenses))
	for _, v := range s.Expenses {
		if v.ID < 0 {
			return fmt.Errorf("%w: negative id %d", ErrInvalidSnapshot, v.ID)
		}
		if _, dup := seen[v.ID]; dup {
			return fmt.Errorf("%w: duplicate id %d", ErrInvalidSnapshot, v.ID)
		}
		seen[v.ID] = struct{}{}
		if v.Amount.IsNegative() {
			return fmt.Errorf("%w: negative amount for id %d", ErrInvalidSnapshot, v.ID)
		}
	}
	return nil
}

// Restore replaces the contents of budget and store with the snapshot. Each
// record keeps its stored id and the counter resumes after the highest one,
// so later adds never collide. On error neither argument is modified.
func (s Snapshot) Restore(budget *core.Budget, store *Store) error {
	if err := s.Validate(); err != nil {
		return err
	}
	records := make([]*core.Expense, 0, len(s.Expenses))
	next := s.NextID
	for _, v := range s.Expenses {
		var ts any
		if !v.Timestamp.IsZero() {
			ts = v.Timestamp
		}
		e := core.NewExpense(v.Description, v.Amount, ts, v.Tags...)
		if err := e.AssignID(v.ID); err != nil {
			return fmt.Errorf("restore expense %d: %w", v.ID, err)
		}
		records = append(records, e)
		if v.ID >= next {
			next = v.ID + 1
		}
	}
	if _, err := budget.Set(s.Budget); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	store.records = records
	store.nextID = next
	return nil
}
