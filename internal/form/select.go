package form

import (
	"errors"
	"fmt"
)

var ErrUnknownOption = errors.New("unknown option")

// Select is a fixed, non-creatable single-select.
type Select struct {
	options  []string
	selected string
}

func NewSelect(options []string) *Select {
	return &Select{options: append([]string(nil), options...)}
}

func (s *Select) Options() []string {
	return append([]string(nil), s.options...)
}

func (s *Select) Selected() string {
	return s.selected
}

func (s *Select) IsSelected(v string) bool {
	return v != "" && s.selected == v
}

// Select picks v, which must be one of the options. An empty v clears.
func (s *Select) Select(v string) error {
	if v == "" {
		s.selected = ""
		return nil
	}
	for _, o := range s.options {
		if o == v {
			s.selected = v
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownOption, v)
}

func (s *Select) Clear() {
	s.selected = ""
}
