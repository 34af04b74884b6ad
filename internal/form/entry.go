package form

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"finplan/internal/api"
	"finplan/internal/core"
	"finplan/internal/log"
)

// Field names posted by the entry forms.
const (
	FieldAmount        = "amount"
	FieldDate          = "date"
	FieldDescription   = "description"
	FieldSource        = "source"
	FieldCategory      = "category"
	FieldPaymentMethod = "payment_method"
)

var (
	ErrUnknownField = errors.New("unknown form field")
	ErrFormClosed   = errors.New("form is not open")
)

// OptionView is an option as the templates render it.
type OptionView struct {
	Value    string
	Label    string
	Selected bool
}

// entry is the draft and lifecycle shared by both forms. Every exported
// method on the forms takes mu.
type entry struct {
	mu     sync.Mutex
	logger *log.Logger

	amount      string
	date        string
	description string
	ref         *CreatableSelect

	open        bool
	generation  uint64
	errMsg      string
	showPreview bool
}

func newEntry(logger *log.Logger) *entry {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &entry{
		logger: logger.WithComponent(log.ComponentForm),
		ref:    NewCreatableSelect(nil),
	}
}

// openLocked resets the draft with a fresh vocabulary and returns the new
// generation. Results of submissions started before it are ignored.
func (e *entry) openLocked(options []core.CategoricalOption, kind string) uint64 {
	e.amount, e.date, e.description = "", "", ""
	e.errMsg = ""
	e.showPreview = false
	e.ref = NewCreatableSelect(options)
	e.ref.OnCreate = func(raw string) {
		e.logger.Debug("Created option", log.FieldRecordKind, kind, log.FieldCategorical, raw)
	}
	e.ref.OnChange = func(core.CategoricalOption) {
		e.errMsg = ""
	}
	e.open = true
	e.generation++
	return e.generation
}

func (e *entry) closeLocked() {
	e.open = false
	e.generation++
}

func (e *entry) setCommonLocked(name, value string) error {
	switch name {
	case FieldAmount:
		e.amount = value
	case FieldDate:
		e.date = value
	case FieldDescription:
		e.description = value
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	return nil
}

func (e *entry) parsedLocked() (decimal.Decimal, core.Date, error) {
	amount, err := core.ParseAmount(e.amount)
	if err != nil {
		return decimal.Decimal{}, core.Date{}, err
	}
	date, err := core.ParseDate(e.date)
	if err != nil {
		return decimal.Decimal{}, core.Date{}, fmt.Errorf("invalid date %q: %w", e.date, err)
	}
	return amount, date, nil
}

func (e *entry) optionViewsLocked() []OptionView {
	opts := e.ref.Options()
	out := make([]OptionView, 0, len(opts))
	for _, o := range opts {
		out = append(out, OptionView{Value: o.Value, Label: o.Label, Selected: e.ref.IsSelected(o)})
	}
	return out
}

func (e *entry) selectedLocked() string {
	sel, _ := e.ref.Selected()
	return sel.Value
}

// finishLocked applies a submission result started under gen. A success
// closes the form. A failure keeps it open and fills the error slot. Results
// for an earlier generation are dropped and reported as not applied.
func (e *entry) finishLocked(gen uint64, err error) bool {
	if gen != e.generation || !e.open {
		return false
	}
	if err != nil {
		e.errMsg = userMessage(err)
		return true
	}
	e.closeLocked()
	return true
}

func userMessage(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return api.Message(err)
	}
	msg := err.Error()
	if msg == "" {
		return "Something went wrong. Please try again."
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

// Generation identifies the current opening of the form.
func (e *entry) Generation() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation
}

func (e *entry) IsOpen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.open
}

func (e *entry) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closeLocked()
}

// BlurAmount normalizes the amount to two decimals, or empties it when it is
// not a number, and returns the new value.
func (e *entry) BlurAmount() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.amount = core.NormalizeAmount(e.amount)
	return e.amount
}

func (e *entry) SetError(msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errMsg = msg
}

// TogglePreview flips the preview sentence on or off.
func (e *entry) TogglePreview() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.showPreview = !e.showPreview
	return e.showPreview
}

// ClearOption drops the categorical selection.
func (e *entry) ClearOption() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ref.Clear()
}

// ChooseOption selects or creates the categorical option raw.
func (e *entry) ChooseOption(raw string) core.CategoricalOption {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ref.Choose(raw)
}

// Options returns the categorical options including locally created ones.
func (e *entry) Options() []core.CategoricalOption {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ref.Options()
}

// Finish applies the result of a submission started under gen and reports
// whether it was applied.
func (e *entry) Finish(gen uint64, err error) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.finishLocked(gen, err)
}
