// Package form holds the server-side state of the income and expense entry
// forms and the select controls they are built from.
package form

import (
	"strings"

	"finplan/internal/core"
)

// CreatableSelect is a single-select over a server vocabulary that can be
// extended inline. Created options live only in this select until the record
// that uses them is submitted.
type CreatableSelect struct {
	options  []core.CategoricalOption
	selected core.CategoricalOption

	// OnChange receives every new selection, including the empty option on
	// Clear.
	OnChange func(core.CategoricalOption)
	// OnCreate receives the raw text of each newly created option.
	OnCreate func(raw string)
}

// NewCreatableSelect seeds the select with options in display order.
func NewCreatableSelect(options []core.CategoricalOption) *CreatableSelect {
	return &CreatableSelect{options: append([]core.CategoricalOption(nil), options...)}
}

// Options returns the visible options, created ones included.
func (s *CreatableSelect) Options() []core.CategoricalOption {
	return append([]core.CategoricalOption(nil), s.options...)
}

// Selected returns the current selection. ok is false when nothing is
// selected or the selected option has an empty value.
func (s *CreatableSelect) Selected() (core.CategoricalOption, bool) {
	if s.selected.IsEmpty() {
		return core.CategoricalOption{}, false
	}
	return s.selected, true
}

// IsSelected reports whether o is the current selection. Empty options are
// never selected.
func (s *CreatableSelect) IsSelected(o core.CategoricalOption) bool {
	sel, ok := s.Selected()
	return ok && sel.Value == o.Value
}

// Find returns the option with the given value.
func (s *CreatableSelect) Find(value string) (core.CategoricalOption, bool) {
	for _, o := range s.options {
		if o.Value == value {
			return o, true
		}
	}
	return core.CategoricalOption{}, false
}

// Select makes o the current selection.
func (s *CreatableSelect) Select(o core.CategoricalOption) {
	s.selected = o
	s.changed(o)
}

// Create adds an option for raw and selects it. Text matching an existing
// option selects that option instead of appending a duplicate. Blank text
// clears the selection.
func (s *CreatableSelect) Create(raw string) core.CategoricalOption {
	text := strings.TrimSpace(raw)
	if text == "" {
		s.Clear()
		return core.CategoricalOption{}
	}
	if existing, ok := s.Find(text); ok {
		s.Select(existing)
		return existing
	}

	o := core.NewOption(text)
	s.options = append(s.options, o)
	if s.OnCreate != nil {
		s.OnCreate(text)
	}
	s.Select(o)
	return o
}

// Choose selects the option whose value is raw, creating it when missing.
func (s *CreatableSelect) Choose(raw string) core.CategoricalOption {
	return s.Create(raw)
}

// Clear drops the selection.
func (s *CreatableSelect) Clear() {
	s.selected = core.CategoricalOption{}
	s.changed(core.CategoricalOption{})
}

// Named maps the selection to a categorical reference. No selection maps to
// nil, never to an empty name.
func (s *CreatableSelect) Named() *core.Named {
	sel, ok := s.Selected()
	if !ok {
		return nil
	}
	return &core.Named{Name: sel.Value}
}

func (s *CreatableSelect) changed(o core.CategoricalOption) {
	if s.OnChange != nil {
		s.OnChange(o)
	}
}
