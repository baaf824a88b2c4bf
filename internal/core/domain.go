package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	Day   Period = "day"
	Month Period = "month"
	Year  Period = "year"
)

type (
	// Period is the granularity used to bucket expenses by timestamp.
	Period string

	// ExpenseView is a detached, serializable copy of an Expense.
	ExpenseView struct {
		ID          int64           `json:"id"`
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount"`
		Timestamp   time.Time       `json:"timestamp"`
		Tags        []string        `json:"tags"`
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyDescription   = errors.New("empty description")
	ErrAlreadyRegistered  = errors.New("expense already registered")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
)

// MaxDescriptionLength bounds descriptions accepted by ValidateInput.
const MaxDescriptionLength = 200

// ParsePeriod maps user input to a Period. Unknown values are returned as-is
// so that PeriodKey can report them with an empty key.
func ParsePeriod(s string) Period {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case Day, Month, Year:
		return p
	}
	return Period(s)
}

// Valid reports whether p is one of Day, Month or Year.
func (p Period) Valid() bool {
	switch p {
	case Day, Month, Year:
		return true
	default:
		return false
	}
}

// ValidateInput performs the checks a form collaborator runs before calling
// NewExpense or the update methods, which otherwise fall back silently.
func ValidateInput(description string, amount any) error {
	if len(strings.TrimSpace(description)) == 0 {
		return ErrEmptyDescription
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	if _, err := CoerceAmount(amount); err != nil {
		return err
	}
	return nil
}
