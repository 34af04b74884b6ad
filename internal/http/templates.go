package http

import (
	"fmt"
	"html/template"
	"time"

	"github.com/shopspring/decimal"

	"finplan/internal/core"
	"finplan/internal/form"
	appweb "finplan/web"
)

// Field partials take small view structs built by these constructors so one
// template serves both entry forms.
type (
	amountFieldView struct {
		Kind  string
		Base  string
		Value string
	}

	optionFieldView struct {
		Kind    string
		Base    string
		Name    string
		Label   string
		Options []form.OptionView
	}

	previewFieldView struct {
		Kind string
		Base string
		Show bool
		Text string
	}
)

// formBase is the URL prefix of a form's endpoints.
func formBase(kind string) string {
	if kind == "income" {
		return "/income/form"
	}
	return "/expenses/form"
}

var funcMap = template.FuncMap{
	"money": func(d decimal.Decimal) string { return core.FormatMoney(d) },
	"date":  func(d core.Date) string { return d.Display() },
	"datetime": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Local().Format("Jan 2, 2006 15:04")
	},
	"amountField": func(kind, value string) amountFieldView {
		return amountFieldView{Kind: kind, Base: formBase(kind), Value: value}
	},
	"optionField": func(kind, name, label string, options []form.OptionView) optionFieldView {
		return optionFieldView{Kind: kind, Base: formBase(kind), Name: name, Label: label, Options: options}
	},
	"previewField": func(kind string, show bool, text string) previewFieldView {
		return previewFieldView{Kind: kind, Base: formBase(kind), Show: show, Text: text}
	},
}

func parseTemplates() (*template.Template, error) {
	t, err := template.New("base").Funcs(funcMap).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return t, nil
}
