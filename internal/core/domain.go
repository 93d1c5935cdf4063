package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	KindIncome  Kind = "Ingreso"
	KindExpense Kind = "Gasto"
)

const (
	PaidLabel    = "Pagado"
	PendingLabel = "Pendiente"
)

// DisplayDateLayout is the day/month/year form used by the sheet.
const DisplayDateLayout = "02/01/2006"

type (
	// Kind is the transaction direction as written in the sheet. Values
	// outside KindIncome and KindExpense are kept verbatim.
	Kind string

	// Date is a calendar date stored at UTC midnight.
	Date struct {
		time.Time
	}

	// Transaction is one normalized sheet row. It is never mutated after
	// construction; a refresh replaces the whole list.
	Transaction struct {
		ID       string          `json:"id"`
		Date     Date            `json:"date"`
		Kind     Kind            `json:"kind"`
		Category string          `json:"category"`
		Amount   decimal.Decimal `json:"amount"`
		Paid     bool            `json:"paid"`
		Note     string          `json:"note,omitempty"`
	}

	// Entry is a new transaction submitted for append.
	Entry struct {
		Date     Date
		Kind     Kind
		Category string
		Amount   decimal.Decimal
		Paid     bool
		Note     string
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf drops the clock part of t, keeping the calendar date in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// String formats the date as DD/MM/YYYY.
func (d Date) String() string {
	return d.Format(DisplayDateLayout)
}

// MonthKey returns the yyyy-MM bucket of the date.
func (d Date) MonthKey() string {
	return d.Format("2006-01")
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(time.DateOnly))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (k Kind) IsIncome() bool  { return k == KindIncome }
func (k Kind) IsExpense() bool { return k == KindExpense }

// Valid reports whether k is one of the two known labels.
func (k Kind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

// ParseKind maps user input onto a known label, case-insensitively.
func ParseKind(raw string) (Kind, error) {
	switch Fold(raw) {
	case "ingreso", "income":
		return KindIncome, nil
	case "gasto", "expense":
		return KindExpense, nil
	}
	return "", &ParseError{Field: "kind", Value: raw, Err: ErrInvalidKind}
}

// StatusLabel returns the sheet label for a paid flag.
func StatusLabel(paid bool) string {
	if paid {
		return PaidLabel
	}
	return PendingLabel
}

func (e Entry) Validate() error {
	if e.Date.IsZero() {
		return fmt.Errorf("date: %w", ErrInvalidDate)
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("kind %q: %w", e.Kind, ErrInvalidKind)
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if e.Amount.IsNegative() {
		return fmt.Errorf("amount %s: %w", e.Amount, ErrInvalidAmount)
	}
	return nil
}

// Row renders the entry in sheet column order:
// date, kind, category, amount, status, note.
// The amount uses a decimal comma so ParseAmount reads it back unchanged.
func (e Entry) Row() []string {
	return []string{
		e.Date.String(),
		string(e.Kind),
		strings.TrimSpace(e.Category),
		FormatAmount(e.Amount),
		StatusLabel(e.Paid),
		strings.TrimSpace(e.Note),
	}
}
