package form

import (
	"fmt"
	"strings"

	"finplan/internal/api"
	"finplan/internal/core"
	"finplan/internal/log"
)

// IncomeForm is the draft of a paycheque being entered.
type IncomeForm struct {
	*entry
}

// IncomeView is a consistent snapshot of the form for rendering.
type IncomeView struct {
	Open        bool
	Generation  uint64
	Amount      string
	Date        string
	Description string
	Source      string
	Options     []OptionView
	Error       string
	ShowPreview bool
	Preview     string
}

func NewIncomeForm(logger *log.Logger) *IncomeForm {
	return &IncomeForm{entry: newEntry(logger)}
}

// Open starts a fresh draft over the given source vocabulary.
func (f *IncomeForm) Open(sources []core.CategoricalOption) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.openLocked(sources, "income")
}

// SetField mirrors one input into the draft. A blank source clears the
// selection.
func (f *IncomeForm) SetField(name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if name == FieldSource {
		if strings.TrimSpace(value) == "" {
			f.ref.Clear()
		} else {
			f.ref.Choose(value)
		}
		return nil
	}
	return f.setCommonLocked(name, value)
}

// Income parses and validates the draft.
func (f *IncomeForm) Income() (core.Income, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.incomeLocked()
}

func (f *IncomeForm) incomeLocked() (core.Income, error) {
	amount, date, err := f.parsedLocked()
	if err != nil {
		return core.Income{}, err
	}
	in := core.Income{
		Amount:      amount,
		Source:      f.ref.Named(),
		Date:        date,
		Description: f.description,
	}
	if err := in.Validate(); err != nil {
		return core.Income{}, err
	}
	return in, nil
}

// Payload builds the POST body from the draft.
func (f *IncomeForm) Payload() (api.IncomePayload, error) {
	in, err := f.Income()
	if err != nil {
		return api.IncomePayload{}, err
	}
	return api.NewIncomePayload(in), nil
}

// Submission returns the record to post and the generation to finish it
// under. A draft that does not validate fills the error slot.
func (f *IncomeForm) Submission() (core.Income, uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return core.Income{}, 0, ErrFormClosed
	}
	in, err := f.incomeLocked()
	if err != nil {
		f.errMsg = userMessage(err)
		return core.Income{}, 0, err
	}
	return in, f.generation, nil
}

// Preview describes the draft as a sentence, or "" while it is incomplete.
func (f *IncomeForm) Preview() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.previewLocked()
}

func (f *IncomeForm) previewLocked() string {
	in, err := f.incomeLocked()
	if err != nil {
		return ""
	}
	return fmt.Sprintf("You received %s from %s on %s.",
		core.FormatMoney(in.Amount), in.SourceName(), in.Date.Display())
}

func (f *IncomeForm) View() IncomeView {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := IncomeView{
		Open:        f.open,
		Generation:  f.generation,
		Amount:      f.amount,
		Date:        f.date,
		Description: f.description,
		Source:      f.selectedLocked(),
		Options:     f.optionViewsLocked(),
		Error:       f.errMsg,
		ShowPreview: f.showPreview,
	}
	if f.showPreview {
		v.Preview = f.previewLocked()
	}
	return v
}
