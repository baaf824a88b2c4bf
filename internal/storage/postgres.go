package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"presupuesto/internal/core"
	"presupuesto/internal/ledger"
)

//go:embed postgres_schema/ledger.sql
var postgresSchema string

// PostgresRepository keeps the snapshot in the same three tables as the
// SQLite backend. Amounts are NUMERIC and travel as text in both directions;
// timestamps are TIMESTAMPTZ, so anything finer than a microsecond is lost.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository connects to databaseURL and creates the schema when
// it is missing.
func NewPostgresRepository(ctx context.Context, databaseURL string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create ledger schema: %w", err)
	}
	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) Close() error {
	if r.pool != nil {
		r.pool.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Save replaces the stored snapshot inside one transaction. Rows are sent as
// a single batch.
func (r *PostgresRepository) Save(ctx context.Context, snap ledger.Snapshot) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM expense_tags`)
	batch.Queue(`DELETE FROM expenses`)
	batch.Queue(
		`INSERT INTO ledger_meta (id, budget, next_id, saved_at) VALUES (1, $1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET budget = EXCLUDED.budget, next_id = EXCLUDED.next_id, saved_at = EXCLUDED.saved_at`,
		snap.Budget.String(), snap.NextID, time.Now().UTC())
	for pos, e := range snap.Expenses {
		batch.Queue(
			`INSERT INTO expenses (id, position, description, amount, occurred_at) VALUES ($1, $2, $3, $4, $5)`,
			e.ID, pos, e.Description, e.Amount.String(), e.Timestamp.UTC())
		for tpos, tag := range e.Tags {
			batch.Queue(`INSERT INTO expense_tags (expense_id, position, tag) VALUES ($1, $2, $3)`,
				e.ID, tpos, tag)
		}
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("write snapshot rows: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// Load rebuilds the stored snapshot in insertion order.
func (r *PostgresRepository) Load(ctx context.Context) (ledger.Snapshot, error) {
	var snap ledger.Snapshot
	var budget string
	err := r.pool.QueryRow(ctx, `SELECT budget::text, next_id FROM ledger_meta WHERE id = 1`).
		Scan(&budget, &snap.NextID)
	if errors.Is(err, pgx.ErrNoRows) {
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

	rows, err := r.pool.Query(ctx,
		`SELECT id, description, amount::text, occurred_at FROM expenses ORDER BY position`)
	if err != nil {
		return snap, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	snap.Expenses = []core.ExpenseView{}
	for rows.Next() {
		var v core.ExpenseView
		var amount string
		if err := rows.Scan(&v.ID, &v.Description, &amount, &v.Timestamp); err != nil {
			return snap, fmt.Errorf("scan expense: %w", err)
		}
		if v.Amount, err = decimal.NewFromString(amount); err != nil {
			return snap, fmt.Errorf("parse amount of expense %d: %w", v.ID, err)
		}
		v.Timestamp = v.Timestamp.UTC()
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

func (r *PostgresRepository) loadTags(ctx context.Context) (map[int64][]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT expense_id, tag FROM expense_tags ORDER BY expense_id, position`)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()

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
