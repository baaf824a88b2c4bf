package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"presupuesto/internal/amqp"
	"presupuesto/internal/cache"
	"presupuesto/internal/core"
	"presupuesto/internal/ledger"
	"presupuesto/internal/query"
	"presupuesto/internal/storage"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
	err    error
}

func (p *recordingPublisher) PublishLedgerEvent(_ context.Context, evt *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func (p *recordingPublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type failingStore struct {
	storage.MemoryStore
}

func (f *failingStore) Save(context.Context, ledger.Snapshot) error {
	return errors.New("disk full")
}

func newService(t *testing.T) (*LedgerService, *storage.MemoryStore, *recordingPublisher) {
	t.Helper()
	store := storage.NewMemoryStore()
	pub := &recordingPublisher{}
	svc := NewLedgerService(Options{
		Snapshots: store,
		Events:    pub,
		Reports:   cache.NewLRUCache[Report](8, time.Minute),
	})
	return svc, store, pub
}

func mustAdd(t *testing.T, svc *LedgerService, desc string, amount any, date string, tags ...string) ExpenseDetail {
	t.Helper()
	d, err := svc.AddExpense(context.Background(), ExpenseInput{Description: desc, Amount: amount, Timestamp: date, Tags: tags})
	if err != nil {
		t.Fatalf("AddExpense(%q): %v", desc, err)
	}
	return d
}

func TestLedgerService_BudgetAndBalance(t *testing.T) {
	svc, store, pub := newService(t)
	ctx := context.Background()

	if _, err := svc.SetBudget(ctx, -5); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("SetBudget(-5) err = %v", err)
	}
	if store.Saves() != 0 || len(pub.types()) != 0 {
		t.Fatal("rejected budget update must not persist or publish")
	}

	sum, err := svc.SetBudget(ctx, "100")
	if err != nil {
		t.Fatal(err)
	}
	if !sum.Budget.Equal(decimal.NewFromInt(100)) || !sum.Balance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("summary = %+v", sum)
	}
	mustAdd(t, svc, "Comida", "25,50", "2024-01-15")
	sum = svc.Summary(ctx)
	if !sum.TotalSpent.Equal(decimal.RequireFromString("25.5")) || !sum.Balance.Equal(decimal.RequireFromString("74.5")) {
		t.Fatalf("summary after add = %+v", sum)
	}
	if sum.Expenses != 1 || sum.Description == "" {
		t.Fatalf("summary = %+v", sum)
	}
	if store.Saves() != 2 {
		t.Fatalf("Saves() = %d, want 2", store.Saves())
	}
	got := pub.types()
	if len(got) != 2 || got[0] != amqp.EventBudgetUpdated || got[1] != amqp.EventExpenseCreated {
		t.Fatalf("events = %v", got)
	}
}

func TestLedgerService_AddValidation(t *testing.T) {
	svc, _, _ := newService(t)
	cases := []struct {
		name string
		in   ExpenseInput
		want error
	}{
		{"blank description", ExpenseInput{Description: " ", Amount: 1}, core.ErrEmptyDescription},
		{"negative amount", ExpenseInput{Description: "x", Amount: -1}, core.ErrInvalidAmount},
		{"non-numeric amount", ExpenseInput{Description: "x", Amount: "abc"}, core.ErrInvalidAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.AddExpense(context.Background(), tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
	if svc.Version() != 0 {
		t.Fatalf("Version() = %d after rejected adds", svc.Version())
	}
}

func TestLedgerService_IDsAndRemoval(t *testing.T) {
	svc, _, pub := newService(t)
	ctx := context.Background()
	a := mustAdd(t, svc, "a", 1, "2024-01-01")
	b := mustAdd(t, svc, "b", 2, "2024-01-02")
	if a.ID != 0 || b.ID != 1 {
		t.Fatalf("ids = %d,%d", a.ID, b.ID)
	}
	if err := svc.RemoveExpense(ctx, 0); err != nil {
		t.Fatal(err)
	}
	if err := svc.RemoveExpense(ctx, 0); !errors.Is(err, ErrExpenseNotFound) {
		t.Fatalf("second remove err = %v", err)
	}
	if c := mustAdd(t, svc, "c", 3, "2024-01-03"); c.ID != 2 {
		t.Fatalf("id after removal = %d, want 2", c.ID)
	}
	if _, err := svc.GetExpense(ctx, 0); !errors.Is(err, ErrExpenseNotFound) {
		t.Fatalf("GetExpense(0) err = %v", err)
	}
	removed := pub.events[2]
	if removed.Type != amqp.EventExpenseRemoved || removed.ExpenseID == nil || *removed.ExpenseID != 0 {
		t.Fatalf("remove event = %+v", removed)
	}
}

func TestLedgerService_UpdateExpense(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	d := mustAdd(t, svc, "Cine", 12, "2024-01-13", "ocio", "amigos")

	desc := "Teatro"
	tags := []string{"cultura"}
	got, err := svc.UpdateExpense(ctx, d.ID, ExpensePatch{Description: &desc, Amount: "20", Timestamp: "not a date", Tags: &tags})
	if err != nil {
		t.Fatal(err)
	}
	if got.Description != "Teatro" || !got.Amount.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("updated = %+v", got)
	}
	if !got.Timestamp.Equal(d.Timestamp) {
		t.Fatal("unparsable timestamp should keep the old value")
	}
	if len(got.Tags) != 1 || got.Tags[0] != "cultura" {
		t.Fatalf("tags = %v, want replaced set", got.Tags)
	}

	if _, err := svc.UpdateExpense(ctx, d.ID, ExpensePatch{Amount: -1}); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("negative amount err = %v", err)
	}
	blank := ""
	if _, err := svc.UpdateExpense(ctx, d.ID, ExpensePatch{Description: &blank}); !errors.Is(err, core.ErrEmptyDescription) {
		t.Fatalf("blank description err = %v", err)
	}
	if _, err := svc.UpdateExpense(ctx, 99, ExpensePatch{}); !errors.Is(err, ErrExpenseNotFound) {
		t.Fatalf("missing id err = %v", err)
	}

	withTag, err := svc.AddTags(ctx, d.ID, []string{"cultura", "fin de semana"})
	if err != nil || len(withTag.Tags) != 2 {
		t.Fatalf("AddTags = %v, %v", withTag.Tags, err)
	}
	without, err := svc.RemoveTags(ctx, d.ID, []string{"cultura"})
	if err != nil || len(without.Tags) != 1 || without.Tags[0] != "fin de semana" {
		t.Fatalf("RemoveTags = %v, %v", without.Tags, err)
	}
}

func TestLedgerService_ListAndDetachedViews(t *testing.T) {
	svc, _, _ := newService(t)
	mustAdd(t, svc, "uno", 25, "2024-01-01", "comida")
	mustAdd(t, svc, "dos", 10, "2024-01-02", "comida")
	mustAdd(t, svc, "tres", 30, "2024-01-03", "ocio")

	got := svc.ListExpenses(context.Background(), query.Criteria{
		MinAmount: decimal.NewNullDecimal(decimal.NewFromInt(20)),
		HasAnyTag: []string{"comida"},
	})
	if len(got) != 1 || got[0].Description != "uno" {
		t.Fatalf("filtered = %+v", got)
	}
	got[0].Tags[0] = "mutated"
	again, _ := svc.GetExpense(context.Background(), got[0].ID)
	if again.Tags[0] != "comida" {
		t.Fatal("views must be detached from the ledger")
	}
}

func TestLedgerService_ReportCachedPerVersion(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	mustAdd(t, svc, "a", 10, "2024-01-03")
	mustAdd(t, svc, "b", 15, "2024-01-20")

	r1 := svc.Report(ctx, core.Month, nil, time.Time{}, time.Time{})
	if len(r1.Buckets) != 1 || !r1.Total.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("report = %+v", r1)
	}
	mustAdd(t, svc, "c", 5, "2024-02-01")
	r2 := svc.Report(ctx, core.Month, nil, time.Time{}, time.Time{})
	if len(r2.Buckets) != 2 || r2.Version == r1.Version {
		t.Fatalf("stale report after mutation: %+v", r2)
	}

	mustAdd(t, svc, "d", 10, "2024-03-01", "a,b")
	joined := svc.Report(ctx, core.Month, []string{"a,b"}, time.Time{}, time.Time{})
	if !joined.Total.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("report for tag a,b = %+v", joined)
	}
	split := svc.Report(ctx, core.Month, []string{"a", "b"}, time.Time{}, time.Time{})
	if !split.Total.IsZero() {
		t.Fatalf("tags a and b share the cached a,b report: %+v", split)
	}

	unknown := svc.Report(ctx, core.ParsePeriod("fortnight"), nil, time.Time{}, time.Time{})
	if len(unknown.Buckets) != 1 || unknown.Buckets[0].Key != "" {
		t.Fatalf("unknown period report = %+v", unknown)
	}
}

func TestLedgerService_SnapshotRestoreAndLoad(t *testing.T) {
	svc, store, pub := newService(t)
	ctx := context.Background()
	if seeded, err := svc.SeedDemo(ctx); err != nil || !seeded {
		t.Fatalf("SeedDemo = %v, %v", seeded, err)
	}
	if seeded, _ := svc.SeedDemo(ctx); seeded {
		t.Fatal("SeedDemo should not reseed a non-empty ledger")
	}
	snap := svc.Snapshot(ctx)
	if len(snap.Expenses) != 3 || !snap.Budget.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("demo snapshot = %+v", snap)
	}

	bad := ledger.Snapshot{Expenses: []core.ExpenseView{{ID: 1}, {ID: 1}}}
	if err := svc.Restore(ctx, bad); !errors.Is(err, ledger.ErrInvalidSnapshot) {
		t.Fatalf("Restore(bad) err = %v", err)
	}
	if svc.Summary(ctx).Expenses != 3 {
		t.Fatal("failed restore changed the ledger")
	}

	reloaded := NewLedgerService(Options{Snapshots: store})
	if err := reloaded.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if got := reloaded.Snapshot(ctx); len(got.Expenses) != 3 || got.NextID != 3 {
		t.Fatalf("reloaded snapshot = %+v", got)
	}

	if err := svc.Restore(ctx, ledger.Snapshot{Budget: decimal.NewFromInt(5), Expenses: []core.ExpenseView{}}); err != nil {
		t.Fatal(err)
	}
	if s := svc.Summary(ctx); s.Expenses != 0 || !s.Budget.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("after restore = %+v", s)
	}
	types := pub.types()
	if types[len(types)-1] != amqp.EventLedgerRestored {
		t.Fatalf("last event = %v", types[len(types)-1])
	}
}

func TestLedgerService_LoadWithoutSnapshot(t *testing.T) {
	svc := NewLedgerService(Options{Snapshots: storage.NewMemoryStore()})
	if err := svc.Load(context.Background()); err != nil {
		t.Fatalf("Load on empty store: %v", err)
	}
	if svc.Summary(context.Background()).Expenses != 0 {
		t.Fatal("expected empty ledger")
	}
}

func TestLedgerService_FailuresDoNotUndoMutations(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewLedgerService(Options{Snapshots: &failingStore{}, Events: pub})
	ctx := context.Background()
	d := mustAdd(t, svc, "a", 1, "2024-01-01")
	if _, err := svc.GetExpense(ctx, d.ID); err != nil {
		t.Fatalf("mutation lost after failed save: %v", err)
	}
	if err := svc.Ready(ctx); err == nil {
		t.Fatal("Ready should report the failed save")
	}
	if len(pub.types()) != 1 {
		t.Fatal("publish should still be attempted")
	}
}

func TestLedgerService_ConcurrentAdds(t *testing.T) {
	svc, _, _ := newService(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.AddExpense(context.Background(), ExpenseInput{Description: "x", Amount: 1})
		}()
	}
	wg.Wait()
	snap := svc.Snapshot(context.Background())
	if len(snap.Expenses) != 20 || snap.NextID != 20 {
		t.Fatalf("got %d expenses, next id %d", len(snap.Expenses), snap.NextID)
	}
	seen := map[int64]bool{}
	for _, e := range snap.Expenses {
		if seen[e.ID] {
			t.Fatalf("duplicate id %d", e.ID)
		}
		seen[e.ID] = true
	}
}
