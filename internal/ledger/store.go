// Package ledger holds the registered expenses and their identity counter.
package ledger

import (
	"errors"

	"presupuesto/internal/core"
)

var ErrNilExpense = errors.New("nil expense")

// Store is an insertion-ordered collection of expenses keyed by id. It owns
// the only live references to its records and the id counter, which never
// goes backwards. A Store is not safe for concurrent use.
type Store struct {
	records []*core.Expense
	nextID  int64
}

// NewStore returns an empty store whose first id is 0.
func NewStore() *Store {
	return &Store{}
}

// Add registers e under the next unused id and appends it.
func (s *Store) Add(e *core.Expense) (int64, error) {
	if e == nil {
		return 0, ErrNilExpense
	}
	id := s.nextID
	if err := e.AssignID(id); err != nil {
		return 0, err
	}
	s.records = append(s.records, e)
	s.nextID++
	return id, nil
}

// Remove drops the record with the given id, keeping the order of the rest.
func (s *Store) Remove(id int64) bool {
	i := s.index(id)
	if i < 0 {
		return false
	}
	copy(s.records[i:], s.records[i+1:])
	s.records[len(s.records)-1] = nil
	s.records = s.records[:len(s.records)-1]
	return true
}

// Get returns the live record for id.
func (s *Store) Get(id int64) (*core.Expense, bool) {
	i := s.index(id)
	if i < 0 {
		return nil, false
	}
	return s.records[i], true
}

// List returns the records in insertion order. The slice is fresh but the
// pointers are the store's own, so mutations through them are visible.
func (s *Store) List() []*core.Expense {
	out := make([]*core.Expense, len(s.records))
	copy(out, s.records)
	return out
}

func (s *Store) Len() int { return len(s.records) }

// NextID is the id the next Add will assign.
func (s *Store) NextID() int64 { return s.nextID }

func (s *Store) index(id int64) int {
	for i, e := range s.records {
		if rid, _ := e.ID(); rid == id {
			return i
		}
	}
	return -1
}
