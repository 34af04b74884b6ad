package main

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"finplan/internal/api"
	"finplan/internal/core"
)

type backend interface {
	ListIncomes(ctx context.Context, token string) ([]core.Income, error)
	ListExpenses(ctx context.Context, token string) ([]core.Expense, error)
	Summary(ctx context.Context, token string) (core.Summary, error)
}

type tokenSource interface {
	Token() string
	Refresh(ctx context.Context) bool
}

type command func(ctx context.Context, b backend, token string, w io.Writer) error

var commands = map[string]command{
	"summary":  printSummary,
	"incomes":  printIncomes,
	"expenses": printExpenses,
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#89b4fa")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7f849c"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#7f849c"))
)

// execute runs name with the session token, refreshing once on an auth
// failure.
func execute(ctx context.Context, name string, b backend, ts tokenSource, w io.Writer) error {
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q", name)
	}
	err := cmd(ctx, b, ts.Token(), w)
	if api.IsAuth(err) && ts.Refresh(ctx) {
		err = cmd(ctx, b, ts.Token(), w)
	}
	if err != nil {
		return fmt.Errorf("%s: %s", name, api.Message(err))
	}
	return nil
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

func printSummary(ctx context.Context, b backend, token string, w io.Writer) error {
	s, err := b.Summary(ctx, token)
	if err != nil {
		return err
	}

	totals := newTable("Account Balance", "Total Income", "Total Expense").
		Row(core.FormatMoney(s.AccountBalance), core.FormatMoney(s.IncomeSumTotal), core.FormatMoney(s.ExpenseSumTotal))
	fmt.Fprintln(w, totals.Render())

	if len(s.Months) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No monthly data yet."))
		return nil
	}
	months := newTable("Month", "Income", "Expense", "Net")
	for _, p := range core.LineSeries(s.Months) {
		months.Row(p.Name, core.FormatMoney(p.Income), core.FormatMoney(p.Expense), core.FormatMoney(p.Net))
	}
	fmt.Fprintln(w, months.Render())
	return nil
}

func printIncomes(ctx context.Context, b backend, token string, w io.Writer) error {
	incomes, err := b.ListIncomes(ctx, token)
	if err != nil {
		return err
	}
	if len(incomes) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No paycheques recorded yet."))
		return nil
	}
	t := newTable("From", "Date", "Amount", "Description")
	for _, in := range incomes {
		t.Row(in.SourceName(), in.Date.Display(), core.FormatMoney(in.Amount), in.Description)
	}
	fmt.Fprintln(w, t.Render())
	return nil
}

func printExpenses(ctx context.Context, b backend, token string, w io.Writer) error {
	expenses, err := b.ListExpenses(ctx, token)
	if err != nil {
		return err
	}
	if len(expenses) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No expenses recorded yet."))
		return nil
	}
	t := newTable("Category", "Payment Method", "Date", "Amount", "Description")
	for _, ex := range expenses {
		t.Row(ex.CategoryName(), ex.PaymentMethod, ex.Date.Display(), core.FormatMoney(ex.Amount), ex.Description)
	}
	fmt.Fprintln(w, t.Render())
	return nil
}
