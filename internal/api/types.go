package api

import (
	"time"

	"github.com/shopspring/decimal"

	"finplan/internal/core"
)

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupRequest is the signup request body.
type SignupRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
}

// TokenPair is returned by login, signup and refresh. The refresh token also
// arrives as an httponly cookie, which is the copy actually used.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// NamedRef is the {name: ...} wrapper used for sources and categories.
type NamedRef struct {
	ID     int    `json:"id,omitempty"`
	UserID int    `json:"user_id,omitempty"`
	Name   string `json:"name"`
}

// IncomePayload is the body of POST /admin/incomes/new.
type IncomePayload struct {
	Amount      float64   `json:"amount"`
	Source      *NamedRef `json:"source"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
}

// ExpensePayload is the body of POST /admin/expenses/new.
type ExpensePayload struct {
	Amount        float64   `json:"amount"`
	Category      *NamedRef `json:"category"`
	PaymentMethod string    `json:"payment_method"`
	Date          time.Time `json:"date"`
	Description   string    `json:"description"`
}

// envelope is the generic {error, message} response.
type envelope struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

type incomeDTO struct {
	ID          int             `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	SourceID    int             `json:"source_id"`
	Source      *NamedRef       `json:"source"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
}

type expenseDTO struct {
	ID            int             `json:"id"`
	Amount        decimal.Decimal `json:"amount"`
	CategoryID    int             `json:"category_id"`
	Category      *NamedRef       `json:"category"`
	PaymentMethod string          `json:"payment_method"`
	Date          time.Time       `json:"date"`
	Description   string          `json:"description"`
}

// NewIncomePayload builds the POST body for an income. A nil source stays
// nil so the backend rejects it instead of receiving an empty name.
func NewIncomePayload(in core.Income) IncomePayload {
	return IncomePayload{
		Amount:      in.Amount.InexactFloat64(),
		Source:      refFromNamed(in.Source),
		Date:        in.Date.Time,
		Description: in.Description,
	}
}

// NewExpensePayload builds the POST body for an expense.
func NewExpensePayload(ex core.Expense) ExpensePayload {
	return ExpensePayload{
		Amount:        ex.Amount.InexactFloat64(),
		Category:      refFromNamed(ex.Category),
		PaymentMethod: ex.PaymentMethod,
		Date:          ex.Date.Time,
		Description:   ex.Description,
	}
}

func refFromNamed(n *core.Named) *NamedRef {
	if n == nil {
		return nil
	}
	return &NamedRef{Name: n.Name}
}

func (r *NamedRef) toCore() *core.Named {
	if r == nil {
		return nil
	}
	return &core.Named{ID: r.ID, UserID: r.UserID, Name: r.Name}
}

func (d incomeDTO) toCore() core.Income {
	return core.Income{
		ID:          d.ID,
		Amount:      d.Amount,
		Source:      d.Source.toCore(),
		Date:        core.Date{Time: d.Date.UTC()},
		Description: d.Description,
	}
}

func (d expenseDTO) toCore() core.Expense {
	return core.Expense{
		ID:            d.ID,
		Amount:        d.Amount,
		Category:      d.Category.toCore(),
		PaymentMethod: d.PaymentMethod,
		Date:          core.Date{Time: d.Date.UTC()},
		Description:   d.Description,
	}
}
