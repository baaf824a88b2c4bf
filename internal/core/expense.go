package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Expense is a single recorded outflow. Its identity is meaningless until a
// ledger store registers it; every other field is mutated in place.
type Expense struct {
	id          int64
	registered  bool
	description string
	amount      decimal.Decimal
	timestamp   time.Time
	tags        TagSet
}

// NewExpense builds an unregistered expense. An invalid or negative amount is
// stored as 0 and an invalid or nil timestamp defaults to now; neither case
// is reported.
func NewExpense(description string, amount any, timestamp any, tags ...string) *Expense {
	e := &Expense{
		description: description,
		tags:        NewTagSet(tags...),
	}
	if d, err := CoerceAmount(amount); err == nil {
		e.amount = d
	}
	if t, ok := CoerceTimestamp(timestamp); ok {
		e.timestamp = t
	} else {
		e.timestamp = nowFunc()
	}
	return e
}

// ID returns the store-assigned identity and whether one has been assigned.
func (e *Expense) ID() (int64, bool) {
	return e.id, e.registered
}

// AssignID binds the expense to an identity. It fails once an identity has
// been assigned, so ids are never reassigned.
func (e *Expense) AssignID(id int64) error {
	if e.registered {
		return ErrAlreadyRegistered
	}
	e.id = id
	e.registered = true
	return nil
}

// Description returns the description text.
func (e *Expense) Description() string {
	return e.description
}

// Amount returns the amount, always >= 0.
func (e *Expense) Amount() decimal.Decimal {
	return e.amount
}

// Timestamp returns when the expense happened.
func (e *Expense) Timestamp() time.Time {
	return e.timestamp
}

// Tags returns a copy of the tags in insertion order.
func (e *Expense) Tags() []string {
	return e.tags.Values()
}

// HasAnyTag reports whether the expense carries at least one of tags.
func (e *Expense) HasAnyTag(tags ...string) bool {
	return e.tags.HasAny(tags...)
}

// UpdateDescription always succeeds.
func (e *Expense) UpdateDescription(text string) {
	e.description = text
}

// UpdateAmount keeps the current amount unless v is a valid non-negative
// number. The result reports whether the update was applied.
func (e *Expense) UpdateAmount(v any) bool {
	d, err := CoerceAmount(v)
	if err != nil {
		return false
	}
	e.amount = d
	return true
}

// UpdateTimestamp keeps the current timestamp unless v parses to a valid time.
func (e *Expense) UpdateTimestamp(v any) bool {
	t, ok := CoerceTimestamp(v)
	if !ok {
		return false
	}
	e.timestamp = t
	return true
}

// AddTags adds each non-empty value not already present.
func (e *Expense) AddTags(values ...string) {
	e.tags.Add(values...)
}

// RemoveTags removes the listed values; non-members are ignored.
func (e *Expense) RemoveTags(values ...string) {
	e.tags.Remove(values...)
}

// ReplaceTags drops every tag and adds values, as the edit form does.
func (e *Expense) ReplaceTags(values ...string) {
	e.tags = NewTagSet(values...)
}

// SummaryLine renders description and amount on one line.
func (e *Expense) SummaryLine() string {
	return fmt.Sprintf("Expense for %s with amount %s", e.description, FormatAmount(e.amount))
}

// FullSummary renders description, amount, timestamp and tags.
func (e *Expense) FullSummary() string {
	var b strings.Builder
	b.WriteString(e.SummaryLine())
	b.WriteString(".\n")
	fmt.Fprintf(&b, "Date: %s\n", e.timestamp.Format("2006-01-02 15:04:05"))
	if e.tags.Len() == 0 {
		b.WriteString("Tags: none\n")
		return b.String()
	}
	b.WriteString("Tags:\n")
	for _, tag := range e.tags.Values() {
		fmt.Fprintf(&b, "- %s\n", tag)
	}
	return b.String()
}

// PeriodKey returns the bucket key of the expense for p, or "" when p is not
// a recognized period.
func (e *Expense) PeriodKey(p Period) string {
	switch p {
	case Day:
		return e.timestamp.Format("2006-01-02")
	case Month:
		return e.timestamp.Format("2006-01")
	case Year:
		return e.timestamp.Format("2006")
	default:
		return ""
	}
}

// View returns a detached copy suitable for serialization.
func (e *Expense) View() ExpenseView {
	tags := e.tags.Values()
	if tags == nil {
		tags = []string{}
	}
	return ExpenseView{
		ID:          e.id,
		Description: e.description,
		Amount:      e.amount,
		Timestamp:   e.timestamp,
		Tags:        tags,
	}
}
