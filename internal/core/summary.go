package core

import (
	"encoding/json"
	"sort"

	"github.com/shopspring/decimal"
)

// Palette is the colour cycle used for pie slices.
var Palette = []string{
	"#0088FE", "#00C49F", "#FFBB28", "#FF8042", "#AF19FF",
	"#FF1919", "#19FFAF", "#FF19AF", "#19AFFF", "#AFFF19",
	"#FFAF19", "#19FF19", "#1919FF", "#FF19FF", "#19FFFF",
}

// Summary is the dashboard aggregate returned by the backend.
type Summary struct {
	AccountBalance           decimal.Decimal            `json:"account_balance"`
	IncomeSumTotal           decimal.Decimal            `json:"income_sum_total"`
	ExpenseSumTotal          decimal.Decimal            `json:"expense_sum_total"`
	OverallIncomeBySource    map[string]decimal.Decimal `json:"overall_income_by_source"`
	OverallExpenseByCategory map[string]decimal.Decimal `json:"overall_expense_by_category"`
	Months                   []MonthSummary             `json:"months"`
}

// MonthSummary holds one calendar month of the trailing twelve.
type MonthSummary struct {
	Month             string                     `json:"month"`
	IncomeSum         decimal.Decimal            `json:"income_sum"`
	ExpenseSum        decimal.Decimal            `json:"expense_sum"`
	NetIncome         decimal.Decimal            `json:"net_income"`
	IncomeBySource    map[string]decimal.Decimal `json:"income_by_source"`
	ExpenseByCategory map[string]decimal.Decimal `json:"expense_by_category"`
	TopIncome         []TopEntry                 `json:"top3IncomeThisMonth"`
	TopExpense        []TopEntry                 `json:"top3ExpenseThisMonth"`
}

// TopEntry is a ranked source or category for one month.
type TopEntry struct {
	Name   string
	Amount decimal.Decimal
}

// UnmarshalJSON accepts both {"source", "amount"} and {"category", "amount"}.
func (t *TopEntry) UnmarshalJSON(b []byte) error {
	var raw struct {
		Source   string          `json:"source"`
		Category string          `json:"category"`
		Amount   decimal.Decimal `json:"amount"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	t.Name = raw.Source
	if t.Name == "" {
		t.Name = raw.Category
	}
	t.Amount = raw.Amount
	return nil
}

// LinePoint is one x-axis position of the monthly income/expense chart.
type LinePoint struct {
	Name    string
	Income  decimal.Decimal
	Expense decimal.Decimal
	Net     decimal.Decimal
}

// PieSlice is one named share of a pie chart.
type PieSlice struct {
	Name  string
	Value decimal.Decimal
	Color string
}

// LineSeries reshapes monthly aggregates into chart points, keeping the
// server's month order.
func LineSeries(months []MonthSummary) []LinePoint {
	out := make([]LinePoint, 0, len(months))
	for _, m := range months {
		out = append(out, LinePoint{
			Name:    m.Month,
			Income:  m.IncomeSum,
			Expense: m.ExpenseSum,
			Net:     m.IncomeSum.Sub(m.ExpenseSum),
		})
	}
	return out
}

// PieSeries converts a name->amount map into exactly one slice per key.
// Slices are sorted by name so rendering is stable; callers must not rely on
// any particular order.
func PieSeries(byName map[string]decimal.Decimal) []PieSlice {
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]PieSlice, 0, len(names))
	for i, name := range names {
		out = append(out, PieSlice{Name: name, Value: byName[name], Color: PaletteColor(i)})
	}
	return out
}

// PaletteColor returns the i-th palette colour, cycling.
func PaletteColor(i int) string {
	n := len(Palette)
	return Palette[((i%n)+n)%n]
}

// CurrentMonth returns the last month of the summary, if any.
func (s Summary) CurrentMonth() (MonthSummary, bool) {
	if len(s.Months) == 0 {
		return MonthSummary{}, false
	}
	return s.Months[len(s.Months)-1], true
}
