package ledger

import (
	"testing"

	"presupuesto/internal/core"
)

func TestAddAssignsMonotonicIDs(t *testing.T) {
	s := NewStore()
	id0, _ := s.Add(core.NewExpense("a", 1, nil))
	id1, _ := s.Add(core.NewExpense("b", 2, nil))
	if id0 != 0 || id1 != 1 {
		t.Fatalf("ids = %d,%d want 0,1", id0, id1)
	}
	if !s.Remove(0) {
		t.Fatal("Remove(0) = false")
	}
	id2, err := s.Add(core.NewExpense("c", 3, nil))
	if err != nil || id2 != 2 {
		t.Fatalf("third id = %d (err=%v), want 2", id2, err)
	}
	if s.Remove(0) {
		t.Fatal("second Remove(0) should report false")
	}
	if s.Len() != 2 || s.NextID() != 3 {
		t.Fatalf("Len=%d NextID=%d, want 2,3", s.Len(), s.NextID())
	}
}

func TestAddRefusesRegistered(t *testing.T) {
	s := NewStore()
	e := core.NewExpense("a", 1, nil)
	if _, err := s.Add(e); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := s.Add(e); err != core.ErrAlreadyRegistered {
		t.Fatalf("re-adding err = %v, want ErrAlreadyRegistered", err)
	}
	if _, err := s.Add(nil); err != ErrNilExpense {
		t.Fatalf("Add(nil) err = %v", err)
	}
	if s.Len() != 1 || s.NextID() != 1 {
		t.Fatalf("failed adds changed the store: Len=%d NextID=%d", s.Len(), s.NextID())
	}
}

func TestListKeepsOrderAndSharesRecords(t *testing.T) {
	s := NewStore()
	for _, d := range []string{"a", "b", "c", "d"} {
		if _, err := s.Add(core.NewExpense(d, 1, nil)); err != nil {
			t.Fatal(err)
		}
	}
	s.Remove(1)
	list := s.List()
	var got string
	for _, e := range list {
		got += e.Description()
	}
	if got != "acd" {
		t.Fatalf("order = %q, want acd", got)
	}
	list[0].UpdateDescription("z")
	if e, _ := s.Get(0); e.Description() != "z" {
		t.Fatal("mutation through List() not visible in store")
	}
	list[0] = nil
	if e, ok := s.Get(0); !ok || e == nil {
		t.Fatal("replacing a slice element must not affect the store")
	}
}
