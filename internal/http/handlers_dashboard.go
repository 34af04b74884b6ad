package http

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"finplan/internal/api"
	"finplan/internal/cache"
	"finplan/internal/core"
	"finplan/internal/log"
	"finplan/internal/storage"
)

const (
	recentEntries  = 5
	historyEntries = 100
)

type dashboardData struct {
	Summary      core.Summary
	CurrentMonth *core.MonthSummary
	Recent       []storage.Entry
	Chart        chartData
}

// chartData is embedded in the page as JSON for the chart script.
type chartData struct {
	Labels     []string  `json:"labels"`
	Income     []float64 `json:"income"`
	Expense    []float64 `json:"expense"`
	Net        []float64 `json:"net"`
	IncomePie  pieData   `json:"incomePie"`
	ExpensePie pieData   `json:"expensePie"`
}

type pieData struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
	Colors []string  `json:"colors"`
}

func newChartData(s core.Summary) chartData {
	points := core.LineSeries(s.Months)
	c := chartData{
		Labels:     make([]string, 0, len(points)),
		Income:     make([]float64, 0, len(points)),
		Expense:    make([]float64, 0, len(points)),
		Net:        make([]float64, 0, len(points)),
		IncomePie:  newPieData(core.PieSeries(s.OverallIncomeBySource)),
		ExpensePie: newPieData(core.PieSeries(s.OverallExpenseByCategory)),
	}
	for _, p := range points {
		c.Labels = append(c.Labels, p.Name)
		c.Income = append(c.Income, toFloat(p.Income))
		c.Expense = append(c.Expense, toFloat(p.Expense))
		c.Net = append(c.Net, toFloat(p.Net))
	}
	return c
}

func newPieData(slices []core.PieSlice) pieData {
	p := pieData{
		Labels: make([]string, 0, len(slices)),
		Values: make([]float64, 0, len(slices)),
		Colors: make([]string, 0, len(slices)),
	}
	for _, sl := range slices {
		p.Labels = append(p.Labels, sl.Name)
		p.Values = append(p.Values, toFloat(sl.Value))
		p.Colors = append(p.Colors, sl.Color)
	}
	return p
}

func toFloat(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func (s *Server) summary(ctx context.Context) (core.Summary, error) {
	return cached(ctx, s, s.views.Summary, cache.Key(s.session.Generation()), s.backend.Summary)
}

// handleDashboard loads the summary and the recent journal concurrently. A
// journal failure only hides the recent list.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	var (
		sum    core.Summary
		recent []storage.Entry
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		sum, err = s.summary(ctx)
		return err
	})
	g.Go(func() error {
		entries, err := s.journal.ListRecent(ctx, recentEntries)
		if err != nil {
			s.log(r).WarnContext(ctx, "Failed to read recent journal entries", log.FieldError, err.Error())
			return nil
		}
		recent = entries
		return nil
	})

	if err := g.Wait(); err != nil {
		if api.IsAuth(err) {
			s.redirectToLogin(w, r)
			return
		}
		s.records.LogError(r.Context(), "Failed to load summary", err, log.OpSummary, nil)
		p := s.newPage("Dashboard", "dashboard", nil)
		p.Alert = api.Message(err)
		s.render(w, r, http.StatusOK, "dashboard_page", p)
		return
	}

	data := dashboardData{Summary: sum, Recent: recent, Chart: newChartData(sum)}
	if m, ok := sum.CurrentMonth(); ok {
		data.CurrentMonth = &m
	}
	s.render(w, r, http.StatusOK, "dashboard_page", s.newPage("Dashboard", "dashboard", data))
}

type historyData struct {
	Entries []storage.Entry
}

// handleHistory lists what this client has submitted, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	p := s.newPage("History", "history", historyData{})
	entries, err := s.journal.ListRecent(r.Context(), historyEntries)
	if err != nil {
		s.log(r).ErrorContext(r.Context(), "Failed to read journal", log.FieldError, err.Error())
		p.Alert = "Could not read the submission history."
	} else {
		p.Data = historyData{Entries: entries}
	}
	s.render(w, r, http.StatusOK, "history_page", p)
}
