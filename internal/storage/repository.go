package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"presupuesto/internal/core"
	"presupuesto/internal/ledger"

	_ "modernc.org/sqlite"
)

// SQLiteRepository stores the snapshot in three tables: ledger_meta holds the
// budget and id counter, expenses one row per record and expense_tags the
// ordered tags. Amounts are kept as decimal text to stay exact.
type SQLiteRepository struct {
	db            *sql.DB
	schemaVersion uint
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db, schemaVersion: version}, nil
}

// SchemaVersion returns the migration version applied at open time.
func (r *SQLiteRepository) SchemaVersion() uint {
	return r.schemaVersion
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Save replaces the stored snapshot inside one transaction.
func (r *SQLiteRepository) Save(ctx context.Context, snap ledger.Snapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM expense_tags`); err != nil {
		return fmt.Errorf("clear tags: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM expenses`); err != nil {
		return fmt.Errorf("clear expenses: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_meta (id, budget, next_id, saved_at) VALUES (1, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET budget = excluded.budget, next_id = excluded.next_id, saved_at = excluded.saved_at`,
		snap.Budget.String(), snap.NextID, time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("write ledger meta: %w", err)
	}

	expStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO expenses (id, position, description, amount, occurred_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare expense insert: %w", err)
	}
	defer expStmt.Close()

	tagStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO expense_tags (expense_id, position, tag) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare tag insert: %w", err)
	}
	defer tagStmt.Close()

	for pos, e := range snap.Expenses {
		if _, err := expStmt.ExecContext(ctx,
			e.ID, pos, e.Description, e.Amount.String(), e.Timestamp.Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("insert expense %d: %w", e.ID, err)
		}
		for tpos, tag := range e.Tags {
			if _, err := tagStmt.ExecContext(ctx, e.ID, tpos, tag); err != nil {
				return fmt.Errorf("insert tag %q for expense %d: %w", tag, e.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// Load rebuilds the stored snapshot in insertion order.
func (r *SQLiteRepository) Load(ctx context.Context) (ledger.Snapshot, error) {
	var snap ledger.Snapshot
	var budget string
	err := r.db.QueryRowContext(ctx, `SELECT budget, next_id FROM ledger_meta WHERE id = 1`).Scan(&budget, &snap.NextID)
	if errors.Is(err, sql.ErrNoRows) {
		return snap, ErrNoSnapshot
	}
	if err != nil {
		return snap, fmt.Errorf("read ledger meta: %w", err)
	}
	if snap.Budget, err = decimal.NewFromString(budget); err != nil {
		return snap, fmt.Errorf("parse budget %q: %w", budget, err)
	}

	tags, err := r.loadTags(ctx)
	if err != nil {
		return snap, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, description, amount, occurred_at FROM expenses ORDER BY position`)
	if err != nil {
		return snap, fmt.Errorf("query expenses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	snap.Expenses = []core.ExpenseView{}
	for rows.Next() {
		var v core.ExpenseView
		var amount, occurred string
		if err := rows.Scan(&v.ID, &v.Description, &amount, &occurred); err != nil {
			return snap, fmt.Errorf("scan expense: %w", err)
		}
		if v.Amount, err = decimal.NewFromString(amount); err != nil {
			return snap, fmt.Errorf("parse amount of expense %d: %w", v.ID, err)
		}
		if v.Timestamp, err = time.Parse(time.RFC3339Nano, occurred); err != nil {
			return snap, fmt.Errorf("parse timestamp of expense %d: %w", v.ID, err)
		}
		v.Tags = tags[v.ID]
		if v.Tags == nil {
			v.Tags = []string{}
		}
		snap.Expenses = append(snap.Expenses, v)
	}
	if err := rows.Err(); err != nil {
		return snap, fmt.Errorf("iterate expenses: %w", err)
	}
	return snap, nil
}

func (r *SQLiteRepository) loadTags(ctx context.Context) (map[int64][]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT expense_id, tag FROM expense_tags ORDER BY expense_id, position`)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[int64][]string)
	for rows.Next() {
		var id int64
		var tag string
		if err := rows.Scan(&id, &tag); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		out[id] = append(out[id], tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	return out, nil
}
