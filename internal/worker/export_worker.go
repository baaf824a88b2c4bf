package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"presupuesto/internal/amqp"
	"presupuesto/internal/core"
	"presupuesto/internal/ledger"
	"presupuesto/internal/log"
	"presupuesto/internal/query"
	"presupuesto/internal/sheets"
	"presupuesto/internal/storage"
)

// ExportWorker mirrors the stored ledger into a spreadsheet. It never talks
// to the server process directly: every export starts from the latest saved
// snapshot.
type ExportWorker struct {
	store    storage.SnapshotStore
	exporter sheets.Exporter
	logger   *log.Logger
	now      func() time.Time

	mu          sync.Mutex
	lastEpoch   string
	lastVersion uint64
	exports     int
}

func NewExportWorker(store storage.SnapshotStore, exporter sheets.Exporter, logger *log.Logger) *ExportWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ExportWorker{
		store:    store,
		exporter: exporter,
		logger:   logger.WithComponent(log.ComponentWorker),
		now:      time.Now,
	}
}

// HandleLedgerEvent exports after a change event. Events at or below the
// last exported version of the same epoch are acknowledged without work,
// since that export already read a snapshot at least as new. An event from a
// new epoch, meaning the publisher restarted, always exports.
func (w *ExportWorker) HandleLedgerEvent(ctx context.Context, evt *amqp.LedgerEvent) error {
	w.mu.Lock()
	stale := evt.Version != 0 && evt.Epoch == w.lastEpoch && evt.Version <= w.lastVersion
	w.mu.Unlock()
	if stale {
		w.logger.DebugContext(ctx, "Skipping stale ledger event",
			log.FieldEventID, evt.ID,
			log.FieldEventType, evt.Type,
			"version", evt.Version)
		return nil
	}

	w.logger.InfoContext(ctx, "Processing ledger event",
		log.FieldEventID, evt.ID,
		log.FieldEventType, evt.Type,
		"version", evt.Version)
	if err := w.ExportNow(ctx); err != nil {
		return fmt.Errorf("export after %s: %w", evt.Type, err)
	}

	w.mu.Lock()
	if evt.Epoch != w.lastEpoch {
		w.lastEpoch = evt.Epoch
		w.lastVersion = 0
	}
	if evt.Version > w.lastVersion {
		w.lastVersion = evt.Version
	}
	w.mu.Unlock()
	return nil
}

// ExportNow loads the latest snapshot and writes it out. A store with no
// snapshot yet is not an error.
func (w *ExportWorker) ExportNow(ctx context.Context) error {
	snap, err := w.store.Load(ctx)
	if errors.Is(err, storage.ErrNoSnapshot) {
		w.logger.InfoContext(ctx, "No snapshot to export yet")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	data, err := BuildExport(snap, w.now())
	if err != nil {
		return err
	}
	if err := w.exporter.Export(ctx, data); err != nil {
		return fmt.Errorf("export snapshot: %w", err)
	}

	w.mu.Lock()
	w.exports++
	w.mu.Unlock()
	w.logger.InfoContext(ctx, "Snapshot exported",
		log.FieldRecords, len(data.Expenses),
		log.FieldBudget, data.Budget.String())
	return nil
}

// Exports reports how many exports completed.
func (w *ExportWorker) Exports() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.exports
}

// Run exports on every tick until ctx is done. Failures are logged and the
// next tick tries again.
func (w *ExportWorker) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.ExportNow(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Periodic export failed", log.FieldOperation, log.OpExport, log.FieldError, err)
			}
		}
	}
}

// BuildExport restores snap into a private ledger and derives the totals and
// monthly buckets written to the spreadsheet.
func BuildExport(snap ledger.Snapshot, now time.Time) (sheets.ExportData, error) {
	var budget core.Budget
	store := ledger.NewStore()
	if err := snap.Restore(&budget, store); err != nil {
		return sheets.ExportData{}, fmt.Errorf("restore snapshot: %w", err)
	}

	expenses := make([]core.ExpenseView, 0, store.Len())
	for _, e := range store.List() {
		expenses = append(expenses, e.View())
	}
	monthly := query.GroupByPeriod(store, core.Month, nil, time.Time{}, time.Time{})
	return sheets.ExportData{
		Expenses:    expenses,
		Monthly:     query.Buckets(monthly),
		Budget:      budget.Value(),
		TotalSpent:  query.TotalSpent(store),
		Balance:     query.Balance(&budget, store),
		GeneratedAt: now,
	}, nil
}
