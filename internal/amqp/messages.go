package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names a ledger change.
type EventType string

const (
	EventExpenseCreated EventType = "expense.created"
	EventExpenseUpdated EventType = "expense.updated"
	EventExpenseRemoved EventType = "expense.removed"
	EventBudgetUpdated  EventType = "budget.updated"
	EventLedgerRestored EventType = "ledger.restored"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventExpenseCreated, EventExpenseUpdated, EventExpenseRemoved, EventBudgetUpdated, EventLedgerRestored:
		return true
	default:
		return false
	}
}

// LedgerEvent announces that the ledger changed. It carries no record data;
// consumers read the latest snapshot from storage. Versions only compare
// within one Epoch, which changes every time a publisher process starts.
type LedgerEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	ExpenseID  *int64    `json:"expense_id,omitempty"`
	Epoch      string    `json:"epoch,omitempty"`
	Version    uint64    `json:"version"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewLedgerEvent creates an event with a fresh id. expenseID is nil for
// events that are not about a single record.
func NewLedgerEvent(t EventType, expenseID *int64, version uint64) *LedgerEvent {
	return &LedgerEvent{
		ID:         uuid.NewString(),
		Type:       t,
		ExpenseID:  expenseID,
		Version:    version,
		OccurredAt: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and checks an event body.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var evt LedgerEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, err
	}
	if !evt.Type.Valid() {
		return nil, fmt.Errorf("unknown event type %q", evt.Type)
	}
	return &evt, nil
}
