// Package storage persists ledger snapshots. Every backend stores the whole
// snapshot; there is no per-mutation durability.
package storage

import (
	"context"
	"errors"

	"presupuesto/internal/core"
	"presupuesto/internal/ledger"
)

// ErrNoSnapshot is returned by Load when nothing has been saved yet.
var ErrNoSnapshot = errors.New("no snapshot stored")

// SnapshotStore loads and saves the complete ledger state.
type SnapshotStore interface {
	Load(ctx context.Context) (ledger.Snapshot, error)
	Save(ctx context.Context, snap ledger.Snapshot) error
	Close() error
}

var (
	_ SnapshotStore = (*MemoryStore)(nil)
	_ SnapshotStore = (*FileStore)(nil)
	_ SnapshotStore = (*SQLiteRepository)(nil)
	_ SnapshotStore = (*PostgresRepository)(nil)
)

// cloneSnapshot detaches the expense slice and tag slices from snap.
func cloneSnapshot(snap ledger.Snapshot) ledger.Snapshot {
	out := snap
	out.Expenses = make([]core.ExpenseView, len(snap.Expenses))
	for i, v := range snap.Expenses {
		v.Tags = append([]string{}, v.Tags...)
		out.Expenses[i] = v
	}
	return out
}
