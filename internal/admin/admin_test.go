package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"presupuesto/internal/core"
	"presupuesto/internal/ledger"
	"presupuesto/internal/log"
	"presupuesto/internal/services"
	"presupuesto/internal/storage"
)

func memoryOpener(store *storage.MemoryStore) Opener {
	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	return func(ctx context.Context) (*services.LedgerService, func() error, error) {
		l := services.NewLedgerService(services.Options{Snapshots: store, Logger: logger})
		if err := l.Load(ctx); err != nil {
			return nil, nil, err
		}
		return l, func() error { return nil }, nil
	}
}

func run(t *testing.T, store *storage.MemoryStore, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(memoryOpener(store))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, store *storage.MemoryStore, args ...string) string {
	t.Helper()
	out, err := run(t, store, args...)
	if err != nil {
		t.Fatalf("%v: %v\n%s", args, err, out)
	}
	return out
}

func assertContains(t *testing.T, out string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(out, w) {
			t.Errorf("output missing %q:\n%s", w, out)
		}
	}
}

func TestSeedAndSummary(t *testing.T) {
	store := storage.NewMemoryStore()

	out := mustRun(t, store, "seed")
	assertContains(t, out, "Your current budget is 1000 €", "77.5 €", "922.5 €")

	out = mustRun(t, store, "seed")
	assertContains(t, out, "nothing seeded")

	out = mustRun(t, store, "summary")
	assertContains(t, out, "Budget", "1000 €", "Expenses")
}

func TestList(t *testing.T) {
	store := storage.NewMemoryStore()
	mustRun(t, store, "seed")

	tests := []struct {
		name    string
		args    []string
		want    []string
		notWant []string
	}{
		{"all", []string{"list"}, []string{"3 expenses", "Comida", "Transporte", "Cine"}, nil},
		{"by tag", []string{"list", "--tags", "ocio"}, []string{"1 expenses", "Cine"}, []string{"Comida"}},
		{"by text", []string{"list", "-q", "TRANS"}, []string{"Transporte"}, []string{"Cine"}},
		{"by amount", []string{"list", "--min", "20", "--max", "30"}, []string{"Comida"}, []string{"Transporte"}},
		{"by date", []string{"list", "--to", "2024-01-13"}, []string{"Cine"}, []string{"Comida"}},
		{"nothing", []string{"list", "--min", "500"}, []string{"No expenses match."}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := mustRun(t, store, tt.args...)
			assertContains(t, out, tt.want...)
			for _, nw := range tt.notWant {
				if strings.Contains(out, nw) {
					t.Errorf("output should not contain %q:\n%s", nw, out)
				}
			}
		})
	}

	if _, err := run(t, store, "list", "--from", "yesterday-ish"); err == nil {
		t.Error("expected error for unparsable --from")
	}
}

func TestReport(t *testing.T) {
	store := storage.NewMemoryStore()
	mustRun(t, store, "seed")

	out := mustRun(t, store, "report", "month")
	assertContains(t, out, "Spending by month", "2024-01", "77.5 €")

	out = mustRun(t, store, "report", "day", "--tags", "ocio,transporte")
	assertContains(t, out, "2024-01-13", "2024-01-14", "52 €")
	if strings.Contains(out, "2024-01-15") {
		t.Errorf("untagged day reported:\n%s", out)
	}

	if _, err := run(t, store, "report", "week"); err == nil {
		t.Error("expected error for unknown period")
	}
}

func TestBudgetSet(t *testing.T) {
	store := storage.NewMemoryStore()

	out := mustRun(t, store, "budget", "set", "250.75")
	assertContains(t, out, "250.75 €")

	snap, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap.Budget.String() != "250.75" {
		t.Errorf("stored budget = %s, want 250.75", snap.Budget)
	}

	_, err = run(t, store, "budget", "set", "abc")
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("unparsable budget err = %v, want ErrInvalidAmount", err)
	}
}

func TestSnapshotExportRestore(t *testing.T) {
	source := storage.NewMemoryStore()
	mustRun(t, source, "seed")

	path := filepath.Join(t.TempDir(), "ledger.json")
	mustRun(t, source, "snapshot", "export", "-o", path)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var exported ledger.Snapshot
	if err := json.Unmarshal(data, &exported); err != nil {
		t.Fatalf("exported snapshot is not JSON: %v", err)
	}
	if len(exported.Expenses) != 3 || exported.NextID != 3 {
		t.Fatalf("exported = %d expenses, nextId %d", len(exported.Expenses), exported.NextID)
	}

	target := storage.NewMemoryStore()
	out := mustRun(t, target, "snapshot", "restore", path)
	assertContains(t, out, "922.5 €")

	stdout := mustRun(t, target, "snapshot", "export")
	var roundTrip ledger.Snapshot
	if err := json.Unmarshal([]byte(stdout), &roundTrip); err != nil {
		t.Fatalf("stdout export is not JSON: %v\n%s", err, stdout)
	}
	if len(roundTrip.Expenses) != 3 || !roundTrip.Budget.Equal(exported.Budget) {
		t.Fatalf("round trip = %+v", roundTrip)
	}
}

func TestSnapshotRestoreRejectsInvalid(t *testing.T) {
	store := storage.NewMemoryStore()
	mustRun(t, store, "seed")

	path := filepath.Join(t.TempDir(), "bad.json")
	bad := `{"budget":"10","nextId":5,"expenses":[
		{"id":1,"description":"a","amount":"1","timestamp":"2024-01-01T00:00:00Z","tags":[]},
		{"id":1,"description":"b","amount":"2","timestamp":"2024-01-02T00:00:00Z","tags":[]}]}`
	if err := os.WriteFile(path, []byte(bad), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := run(t, store, "snapshot", "restore", path)
	if !errors.Is(err, ledger.ErrInvalidSnapshot) {
		t.Fatalf("err = %v, want ErrInvalidSnapshot", err)
	}

	out := mustRun(t, store, "summary")
	assertContains(t, out, "1000 €")

	if _, err := run(t, store, "snapshot", "restore", filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
