package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date format used by form inputs.
const DateLayout = "2006-01-02"

// PaymentMethods lists the payment methods accepted for expenses, in display order.
var PaymentMethods = []string{"Cash", "Cheque", "Credit Card", "Debit Card", "E-Transfer"}

type (
	Date struct {
		time.Time
	}

	// CategoricalOption is a selectable vocabulary entry (income source or
	// expense category). Value and Label are always equal.
	CategoricalOption struct {
		Value string
		Label string
	}

	// Named is a vocabulary entry as stored by the backend.
	Named struct {
		ID     int
		UserID int
		Name   string
	}

	Income struct {
		ID          int
		Amount      decimal.Decimal
		Source      *Named
		Date        Date
		Description string
	}

	Expense struct {
		ID            int
		Amount        decimal.Decimal
		Category      *Named
		PaymentMethod string
		Date          Date
		Description   string
	}
)

var (
	ErrInvalidDay      = errors.New("invalid day")
	ErrInvalidMonth    = errors.New("invalid month")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrMissingSource   = errors.New("missing income source")
	ErrMissingCategory = errors.New("missing expense category")
	ErrInvalidPayment  = errors.New("invalid payment method")
)

// NewOption builds an option whose value and label are both text.
func NewOption(text string) CategoricalOption {
	return CategoricalOption{Value: text, Label: text}
}

// OptionsFromNames converts a backend vocabulary to selectable options,
// preserving server order.
func OptionsFromNames(names []Named) []CategoricalOption {
	out := make([]CategoricalOption, 0, len(names))
	for _, n := range names {
		out = append(out, NewOption(n.Name))
	}
	return out
}

// IsEmpty reports whether the option carries no value. Such options never
// render as selected.
func (o CategoricalOption) IsEmpty() bool {
	return strings.TrimSpace(o.Value) == ""
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string into a UTC calendar date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// String renders the date in form-input layout; zero dates render empty.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// Display renders the date the way tables and previews show it.
func (d Date) Display() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("Jan 2, 2006")
}

// IsPaymentMethod reports whether m is one of PaymentMethods.
func IsPaymentMethod(m string) bool {
	for _, pm := range PaymentMethods {
		if pm == m {
			return true
		}
	}
	return false
}

func (i Income) Validate() error {
	if !i.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if i.Source == nil || strings.TrimSpace(i.Source.Name) == "" {
		return ErrMissingSource
	}
	return i.Date.Validate()
}

func (e Expense) Validate() error {
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if e.Category == nil || strings.TrimSpace(e.Category.Name) == "" {
		return ErrMissingCategory
	}
	if !IsPaymentMethod(e.PaymentMethod) {
		return ErrInvalidPayment
	}
	return e.Date.Validate()
}

// SourceName returns the source name or "" when absent.
func (i Income) SourceName() string {
	if i.Source == nil {
		return ""
	}
	return i.Source.Name
}

// CategoryName returns the category name or "" when absent.
func (e Expense) CategoryName() string {
	if e.Category == nil {
		return ""
	}
	return e.Category.Name
}
