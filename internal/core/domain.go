package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Weekly   Frequency = "weekly"
	Biweekly Frequency = "biweekly"
	Monthly  Frequency = "monthly"
)

const (
	Income  EventKind = "income"
	Expense EventKind = "expense"
)

const (
	SourceRecurring   EventSource = "recurring"
	SourcePaycheck    EventSource = "paycheckStream"
	SourceTransaction EventSource = "transaction"
)

type (
	// Frequency is the recurrence step of a recurring definition.
	Frequency string

	// EventKind tells whether a calendar event adds to or subtracts from the balance.
	EventKind string

	// EventSource identifies the record type a calendar event was derived from.
	EventSource string

	Money struct {
		Cents int64
	}

	// RecurringDefinition is a repeating bill or income stream owned by a user.
	RecurringDefinition struct {
		ID        int64
		Name      string
		Amount    Money // always non-negative; Kind carries the sign
		Kind      EventKind
		Frequency Frequency
		StartDate time.Time
	}

	// PaycheckStream is the user's single paycheck definition. It behaves like
	// a recurring income definition but is reported under its own source tag.
	PaycheckStream struct {
		Amount    Money
		Frequency Frequency
		StartDate time.Time
	}

	// StartingBalance anchors period 1 of a user's timeline.
	StartingBalance struct {
		Amount Money
	}

	// Transaction is a recorded real money movement. Amount is signed:
	// negative means expense, non-negative means income.
	Transaction struct {
		ID          int64
		Description string
		Amount      Money
		Category    string
		Date        time.Time
	}
)

var (
	ErrInvalidYear      = errors.New("invalid year")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyName        = errors.New("empty name")
	ErrInvalidKind      = errors.New("invalid kind")
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrMissingStartDate = errors.New("missing start date")
	ErrEmptyDescription = errors.New("empty description")
	ErrTextTooLong      = errors.New("text too long (max 200 characters)")
)

// IsValidationError reports whether err is one of the record validation
// sentinels, so callers can map it to a client error instead of a server one.
func IsValidationError(err error) bool {
	for _, sentinel := range []error{
		ErrInvalidYear, ErrInvalidMonth, ErrInvalidAmount, ErrEmptyName,
		ErrInvalidKind, ErrInvalidFrequency, ErrMissingStartDate,
		ErrEmptyDescription, ErrTextTooLong,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// Valid reports whether f is one of the supported recurrence steps.
func (f Frequency) Valid() bool {
	switch f {
	case Weekly, Biweekly, Monthly:
		return true
	}
	return false
}

// Valid reports whether k is income or expense.
func (k EventKind) Valid() bool {
	return k == Income || k == Expense
}

// NormalizeDate strips the time-of-day and returns midnight UTC, so that
// lookups keyed by calendar day are exact.
func NormalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ValidateYearMonth rejects malformed year/month combinations before any
// computation. Month must be 1-12; year is bounded to a sane range.
func ValidateYearMonth(year, month int) error {
	if year < 1900 || year > 3000 {
		return ErrInvalidYear
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

func (r RecurringDefinition) Validate() error {
	if len(strings.TrimSpace(r.Name)) == 0 {
		return ErrEmptyName
	}
	if len(r.Name) > 200 {
		return ErrTextTooLong
	}
	if r.Amount.Cents < 0 {
		return ErrInvalidAmount
	}
	if !r.Kind.Valid() {
		return ErrInvalidKind
	}
	if !r.Frequency.Valid() {
		return ErrInvalidFrequency
	}
	if r.StartDate.IsZero() {
		return ErrMissingStartDate
	}
	return nil
}

func (p PaycheckStream) Validate() error {
	if p.Amount.Cents < 0 {
		return ErrInvalidAmount
	}
	if !p.Frequency.Valid() {
		return ErrInvalidFrequency
	}
	if p.StartDate.IsZero() {
		return ErrMissingStartDate
	}
	return nil
}

func (t Transaction) Validate() error {
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return ErrTextTooLong
	}
	if t.Date.IsZero() {
		return ErrMissingStartDate
	}
	return nil
}

// Kind derives the event kind from the transaction's sign.
func (t Transaction) Kind() EventKind {
	if t.Amount.Cents < 0 {
		return Expense
	}
	return Income
}

// Magnitude returns the transaction amount with the sign stripped.
func (t Transaction) Magnitude() Money {
	if t.Amount.Cents < 0 {
		return Money{Cents: -t.Amount.Cents}
	}
	return t.Amount
}
