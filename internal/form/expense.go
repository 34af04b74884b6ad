package form

import (
	"fmt"
	"strings"

	"finplan/internal/api"
	"finplan/internal/core"
	"finplan/internal/log"
)

// ExpenseForm is the draft of an expense being entered.
type ExpenseForm struct {
	*entry
	payment *Select
}

type ExpenseView struct {
	Open           bool
	Generation     uint64
	Amount         string
	Date           string
	Description    string
	Category       string
	Options        []OptionView
	PaymentMethod  string
	PaymentMethods []OptionView
	Error          string
	ShowPreview    bool
	Preview        string
}

func NewExpenseForm(logger *log.Logger) *ExpenseForm {
	return &ExpenseForm{
		entry:   newEntry(logger),
		payment: NewSelect(core.PaymentMethods),
	}
}

// Open starts a fresh draft over the given category vocabulary.
func (f *ExpenseForm) Open(categories []core.CategoricalOption) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payment.Clear()
	return f.openLocked(categories, "expense")
}

func (f *ExpenseForm) SetField(name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch name {
	case FieldCategory:
		if strings.TrimSpace(value) == "" {
			f.ref.Clear()
		} else {
			f.ref.Choose(value)
		}
		return nil
	case FieldPaymentMethod:
		return f.payment.Select(value)
	default:
		return f.setCommonLocked(name, value)
	}
}

func (f *ExpenseForm) Expense() (core.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.expenseLocked()
}

func (f *ExpenseForm) expenseLocked() (core.Expense, error) {
	amount, date, err := f.parsedLocked()
	if err != nil {
		return core.Expense{}, err
	}
	ex := core.Expense{
		Amount:        amount,
		Category:      f.ref.Named(),
		PaymentMethod: f.payment.Selected(),
		Date:          date,
		Description:   f.description,
	}
	if err := ex.Validate(); err != nil {
		return core.Expense{}, err
	}
	return ex, nil
}

func (f *ExpenseForm) Payload() (api.ExpensePayload, error) {
	ex, err := f.Expense()
	if err != nil {
		return api.ExpensePayload{}, err
	}
	return api.NewExpensePayload(ex), nil
}

// Submission returns the record to post and the generation to finish it
// under. A draft that does not validate fills the error slot.
func (f *ExpenseForm) Submission() (core.Expense, uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return core.Expense{}, 0, ErrFormClosed
	}
	ex, err := f.expenseLocked()
	if err != nil {
		f.errMsg = userMessage(err)
		return core.Expense{}, 0, err
	}
	return ex, f.generation, nil
}

func (f *ExpenseForm) Preview() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.previewLocked()
}

func (f *ExpenseForm) previewLocked() string {
	ex, err := f.expenseLocked()
	if err != nil {
		return ""
	}
	return fmt.Sprintf("You spent %s for %s on %s.",
		core.FormatMoney(ex.Amount), ex.CategoryName(), ex.Date.Display())
}

func (f *ExpenseForm) View() ExpenseView {
	f.mu.Lock()
	defer f.mu.Unlock()
	methods := make([]OptionView, 0, len(core.PaymentMethods))
	for _, m := range f.payment.Options() {
		methods = append(methods, OptionView{Value: m, Label: m, Selected: f.payment.IsSelected(m)})
	}
	v := ExpenseView{
		Open:           f.open,
		Generation:     f.generation,
		Amount:         f.amount,
		Date:           f.date,
		Description:    f.description,
		Category:       f.selectedLocked(),
		Options:        f.optionViewsLocked(),
		PaymentMethod:  f.payment.Selected(),
		PaymentMethods: methods,
		Error:          f.errMsg,
		ShowPreview:    f.showPreview,
	}
	if f.showPreview {
		v.Preview = f.previewLocked()
	}
	return v
}
