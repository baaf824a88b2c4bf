// Package services wraps the single-threaded ledger core for concurrent
// callers and ties it to persistence and change events.
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"presupuesto/internal/amqp"
	"presupuesto/internal/cache"
	"presupuesto/internal/core"
	"presupuesto/internal/ledger"
	"presupuesto/internal/log"
	"presupuesto/internal/query"
	"presupuesto/internal/storage"
)

var ErrExpenseNotFound = errors.New("expense not found")

// EventPublisher is satisfied by *amqp.Client.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, evt *amqp.LedgerEvent) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Snapshots storage.SnapshotStore
	Events    EventPublisher
	Reports   cache.Cache[Report]
	Logger    *log.Logger
}

// LedgerService owns one budget and one store. Every operation runs under a
// single mutex and returns detached copies, so callers never observe a
// record mid-mutation. After each successful mutation the whole ledger is
// saved and an event is published; failures of either are logged and do not
// undo the mutation.
type LedgerService struct {
	mu      sync.Mutex
	budget  core.Budget
	store   *ledger.Store
	version uint64
	epoch   string

	snapshots  storage.SnapshotStore
	persistErr error
	events     EventPublisher
	reports    cache.Cache[Report]

	logger *log.Logger
	audit  *log.StructuredLogger
}

func NewLedgerService(opts Options) *LedgerService {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentLedger)
	return &LedgerService{
		store:     ledger.NewStore(),
		epoch:     uuid.NewString(),
		snapshots: opts.Snapshots,
		events:    opts.Events,
		reports:   opts.Reports,
		logger:    logger,
		audit:     log.NewStructuredLogger(logger),
	}
}

// BudgetSummary is the budget with its derived totals.
type BudgetSummary struct {
	Budget      decimal.Decimal `json:"budget"`
	TotalSpent  decimal.Decimal `json:"total_spent"`
	Balance     decimal.Decimal `json:"balance"`
	Description string          `json:"description"`
	Expenses    int             `json:"expenses"`
}

// ExpenseDetail is a record view with its rendered summary.
type ExpenseDetail struct {
	core.ExpenseView
	Summary string `json:"summary"`
}

// ExpenseInput carries raw form values for a new record.
type ExpenseInput struct {
	Description string
	Amount      any
	Timestamp   any
	Tags        []string
}

// ExpensePatch carries the fields of an edit. Nil fields are left alone; a
// non-nil Tags replaces the whole tag set.
type ExpensePatch struct {
	Description *string
	Amount      any
	Timestamp   any
	Tags        *[]string
}

// Report is a period aggregation in key order.
type Report struct {
	Period  core.Period     `json:"period"`
	Buckets []query.Bucket  `json:"buckets"`
	Total   decimal.Decimal `json:"total"`
	Version uint64          `json:"version"`
}

type change struct {
	event     amqp.EventType
	expenseID *int64
	op        string
	fields    log.LogFields
}

// Load replaces the in-memory ledger with the stored snapshot. A missing
// snapshot leaves the ledger empty.
func (s *LedgerService) Load(ctx context.Context) error {
	if s.snapshots == nil {
		return nil
	}
	snap, err := s.snapshots.Load(ctx)
	if errors.Is(err, storage.ErrNoSnapshot) {
		s.logger.InfoContext(ctx, "No stored snapshot, starting with an empty ledger")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := snap.Restore(&s.budget, s.store); err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}
	s.version++
	s.logger.InfoContext(ctx, "Ledger loaded from snapshot",
		log.FieldRecords, s.store.Len(),
		log.FieldBudget, s.budget.Value().String())
	return nil
}

// SeedDemo fills an empty ledger with sample data. It reports whether
// anything was added.
func (s *LedgerService) SeedDemo(ctx context.Context) (bool, error) {
	seeded := false
	err := s.mutate(ctx, func() (*change, error) {
		if s.store.Len() > 0 {
			return nil, nil
		}
		if _, err := s.budget.Set(1000); err != nil {
			return nil, err
		}
		for _, e := range []*core.Expense{
			core.NewExpense("Comida", "25.50", "2024-01-15", "alimentación", "restaurante"),
			core.NewExpense("Transporte", "40.00", "2024-01-14", "transporte", "gasolina"),
			core.NewExpense("Cine", "12.00", "2024-01-13", "entretenimiento", "ocio"),
		} {
			if _, err := s.store.Add(e); err != nil {
				return nil, err
			}
		}
		seeded = true
		fields := log.NewFields()
		fields[log.FieldRecords] = s.store.Len()
		return &change{event: amqp.EventLedgerRestored, op: log.OpCreate, fields: fields}, nil
	})
	return seeded, err
}

func (s *LedgerService) summaryLocked() BudgetSummary {
	return BudgetSummary{
		Budget:      s.budget.Value(),
		TotalSpent:  query.TotalSpent(s.store),
		Balance:     query.Balance(&s.budget, s.store),
		Description: s.budget.Describe(),
		Expenses:    s.store.Len(),
	}
}

// Summary returns the budget, total spent and balance.
func (s *LedgerService) Summary(_ context.Context) BudgetSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaryLocked()
}

// SetBudget replaces the budget. Invalid values return core.ErrInvalidAmount
// and change nothing.
func (s *LedgerService) SetBudget(ctx context.Context, value any) (BudgetSummary, error) {
	var out BudgetSummary
	err := s.mutate(ctx, func() (*change, error) {
		v, err := s.budget.Set(value)
		if err != nil {
			return nil, err
		}
		out = s.summaryLocked()
		fields := log.NewFields()
		fields[log.FieldBudget] = v.String()
		return &change{event: amqp.EventBudgetUpdated, op: log.OpUpdate, fields: fields}, nil
	})
	return out, err
}

// AddExpense validates the input the way the entry form does, then records
// the expense.
func (s *LedgerService) AddExpense(ctx context.Context, in ExpenseInput) (ExpenseDetail, error) {
	if err := core.ValidateInput(in.Description, in.Amount); err != nil {
		return ExpenseDetail{}, err
	}
	var out ExpenseDetail
	err := s.mutate(ctx, func() (*change, error) {
		e := core.NewExpense(in.Description, in.Amount, in.Timestamp, in.Tags...)
		id, err := s.store.Add(e)
		if err != nil {
			return nil, err
		}
		out = detail(e)
		return &change{
			event:     amqp.EventExpenseCreated,
			expenseID: &id,
			op:        log.OpCreate,
			fields:    log.NewFields().WithExpense(id, e.Description(), e.Amount(), e.Tags()),
		}, nil
	})
	return out, err
}

// GetExpense returns one record.
func (s *LedgerService) GetExpense(_ context.Context, id int64) (ExpenseDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.store.Get(id)
	if !ok {
		return ExpenseDetail{}, ErrExpenseNotFound
	}
	return detail(e), nil
}

// ListExpenses returns the records matching c in insertion order.
func (s *LedgerService) ListExpenses(_ context.Context, c query.Criteria) []core.ExpenseView {
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := query.Filter(s.store, c)
	out := make([]core.ExpenseView, 0, len(matched))
	for _, e := range matched {
		out = append(out, e.View())
	}
	return out
}

// RemoveExpense deletes a record.
func (s *LedgerService) RemoveExpense(ctx context.Context, id int64) error {
	return s.mutate(ctx, func() (*change, error) {
		if !s.store.Remove(id) {
			return nil, ErrExpenseNotFound
		}
		fields := log.NewFields()
		fields[log.FieldExpenseID] = id
		return &change{event: amqp.EventExpenseRemoved, expenseID: &id, op: log.OpDelete, fields: fields}, nil
	})
}

// UpdateExpense applies an edit. A set description must be non-blank and a
// set amount must be a valid non-negative number; the timestamp keeps its
// old value when unparsable.
func (s *LedgerService) UpdateExpense(ctx context.Context, id int64, p ExpensePatch) (ExpenseDetail, error) {
	if p.Description != nil {
		amount := p.Amount
		if amount == nil {
			amount = 0
		}
		if err := core.ValidateInput(*p.Description, amount); err != nil {
			return ExpenseDetail{}, err
		}
	}
	if p.Amount != nil {
		if _, err := core.CoerceAmount(p.Amount); err != nil {
			return ExpenseDetail{}, err
		}
	}
	return s.editExpense(ctx, id, func(e *core.Expense) {
		if p.Description != nil {
			e.UpdateDescription(*p.Description)
		}
		if p.Amount != nil {
			e.UpdateAmount(p.Amount)
		}
		if p.Timestamp != nil {
			e.UpdateTimestamp(p.Timestamp)
		}
		if p.Tags != nil {
			e.ReplaceTags(*p.Tags...)
		}
	})
}

// AddTags adds tags to a record.
func (s *LedgerService) AddTags(ctx context.Context, id int64, tags []string) (ExpenseDetail, error) {
	return s.editExpense(ctx, id, func(e *core.Expense) { e.AddTags(tags...) })
}

// RemoveTags removes tags from a record.
func (s *LedgerService) RemoveTags(ctx context.Context, id int64, tags []string) (ExpenseDetail, error) {
	return s.editExpense(ctx, id, func(e *core.Expense) { e.RemoveTags(tags...) })
}

func (s *LedgerService) editExpense(ctx context.Context, id int64, apply func(*core.Expense)) (ExpenseDetail, error) {
	var out ExpenseDetail
	err := s.mutate(ctx, func() (*change, error) {
		e, ok := s.store.Get(id)
		if !ok {
			return nil, ErrExpenseNotFound
		}
		apply(e)
		out = detail(e)
		return &change{
			event:     amqp.EventExpenseUpdated,
			expenseID: &id,
			op:        log.OpUpdate,
			fields:    log.NewFields().WithExpense(id, e.Description(), e.Amount(), e.Tags()),
		}, nil
	})
	return out, err
}

// Report groups amounts by period. Results are cached per ledger version, so
// any mutation makes earlier entries unreachable.
func (s *LedgerService) Report(ctx context.Context, period core.Period, tags []string, from, to time.Time) Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := reportKey(s.version, period, tags, from, to)
	if s.reports != nil {
		if r, ok := s.reports.Get(key); ok {
			return r
		}
	}

	groups := query.GroupByPeriod(s.store, period, tags, from, to)
	total := decimal.Zero
	for _, v := range groups {
		total = total.Add(v)
	}
	r := Report{Period: period, Buckets: query.Buckets(groups), Total: total, Version: s.version}
	if s.reports != nil {
		s.reports.Set(key, r)
	}
	s.logger.DebugContext(ctx, "Report computed", log.FieldPeriod, period, "buckets", len(r.Buckets))
	return r
}

// Snapshot captures the current ledger.
func (s *LedgerService) Snapshot(_ context.Context) ledger.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ledger.Capture(&s.budget, s.store)
}

// Restore replaces the ledger with snap. An invalid snapshot returns
// ledger.ErrInvalidSnapshot and changes nothing.
func (s *LedgerService) Restore(ctx context.Context, snap ledger.Snapshot) error {
	return s.mutate(ctx, func() (*change, error) {
		if err := snap.Restore(&s.budget, s.store); err != nil {
			return nil, err
		}
		if s.reports != nil {
			s.reports.Purge()
		}
		fields := log.NewFields()
		fields[log.FieldRecords] = s.store.Len()
		return &change{event: amqp.EventLedgerRestored, op: log.OpRestore, fields: fields}, nil
	})
}

// Version increases with every mutation.
func (s *LedgerService) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Ready fails when the snapshot store is unreachable or the last save failed.
func (s *LedgerService) Ready(ctx context.Context) error {
	s.mu.Lock()
	persistErr := s.persistErr
	s.mu.Unlock()
	if persistErr != nil {
		return fmt.Errorf("last snapshot save failed: %w", persistErr)
	}
	if p, ok := s.snapshots.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// mutate runs fn under the lock. A nil change with a nil error means nothing
// changed. Otherwise the version moves, the snapshot is saved while still
// locked so saves land in mutation order, and the event is published after
// the lock is released.
func (s *LedgerService) mutate(ctx context.Context, fn func() (*change, error)) error {
	s.mu.Lock()
	ch, err := fn()
	if err != nil || ch == nil {
		s.mu.Unlock()
		return err
	}
	s.version++
	version := s.version
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.audit.LogLedgerOperation(ctx, ch.op, ch.fields)
	s.publish(ctx, ch, version)
	return nil
}

func (s *LedgerService) persistLocked(ctx context.Context) {
	if s.snapshots == nil {
		return
	}
	err := s.snapshots.Save(context.WithoutCancel(ctx), ledger.Capture(&s.budget, s.store))
	s.persistErr = err
	if err != nil {
		s.audit.LogError(ctx, "Failed to save snapshot", err, log.OpPersist, nil)
	}
}

func (s *LedgerService) publish(ctx context.Context, ch *change, version uint64) {
	if s.events == nil {
		return
	}
	evt := amqp.NewLedgerEvent(ch.event, ch.expenseID, version)
	evt.Epoch = s.epoch
	if err := s.events.PublishLedgerEvent(context.WithoutCancel(ctx), evt); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish ledger event",
			log.FieldOperation, log.OpPublish,
			log.FieldEventType, ch.event,
			log.FieldError, err)
	}
}

func detail(e *core.Expense) ExpenseDetail {
	return ExpenseDetail{ExpenseView: e.View(), Summary: e.FullSummary()}
}

func reportKey(version uint64, period core.Period, tags []string, from, to time.Time) string {
	sorted := append([]string(nil), tags...)
	sort.Strings(sorted)
	return fmt.Sprintf("%d|%s|%q|%d|%d", version, period, sorted, unixOrZero(from), unixOrZero(to))
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}
