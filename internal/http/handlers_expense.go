package http

import (
	"context"
	"net/http"

	"finplan/internal/api"
	"finplan/internal/cache"
	"finplan/internal/core"
	"finplan/internal/form"
	"finplan/internal/log"
	"finplan/internal/storage"
)

type expenseData struct {
	Expenses []core.Expense
	Error    string
	Form     form.ExpenseView
}

func (s *Server) expenses(ctx context.Context) ([]core.Expense, error) {
	return cached(ctx, s, s.views.Expenses, cache.Key(s.session.Generation()), s.backend.ListExpenses)
}

func (s *Server) loadExpenses(w http.ResponseWriter, r *http.Request, data *expenseData) bool {
	expenses, err := s.expenses(r.Context())
	if err == nil {
		data.Expenses = expenses
		return true
	}
	if api.IsAuth(err) {
		s.redirectToLogin(w, r)
		return false
	}
	s.log(r).ErrorContext(r.Context(), "Failed to list expenses",
		log.FieldOperation, log.OpList,
		log.FieldError, err.Error(),
	)
	data.Error = api.Message(err)
	return true
}

func (s *Server) handleExpensePage(w http.ResponseWriter, r *http.Request) {
	data := expenseData{Form: s.expenseForm.View()}
	if !s.loadExpenses(w, r, &data) {
		return
	}
	s.render(w, r, http.StatusOK, "expenses_page", s.newPage("Expenses", "expenses", data))
}

func (s *Server) handleExpenseTable(w http.ResponseWriter, r *http.Request) {
	var data expenseData
	if !s.loadExpenses(w, r, &data) {
		return
	}
	s.render(w, r, http.StatusOK, "expense_table", data)
}

func (s *Server) renderExpenseForm(w http.ResponseWriter, r *http.Request) {
	v := s.expenseForm.View()
	if !v.Open {
		w.WriteHeader(http.StatusOK)
		return
	}
	s.render(w, r, http.StatusOK, "expense_form", v)
}

func (s *Server) handleExpenseOpen(w http.ResponseWriter, r *http.Request) {
	key := cache.CategoriesKey(s.session.Generation())
	categories, err := cached(r.Context(), s, s.views.Vocabulary, key, s.backend.ListCategories)
	if api.IsAuth(err) {
		s.redirectToLogin(w, r)
		return
	}
	s.expenseForm.Open(core.OptionsFromNames(categories))
	if err != nil {
		s.openError(r, s.expenseRoute(), err)
	}
	s.renderExpenseForm(w, r)
}

func (s *Server) handleExpenseClose(w http.ResponseWriter, r *http.Request) {
	formClose(w, s.expenseRoute())
}

func (s *Server) handleExpenseField(w http.ResponseWriter, r *http.Request) {
	s.formField(w, r, s.expenseRoute())
}

func (s *Server) handleExpenseBlur(w http.ResponseWriter, r *http.Request) {
	s.formBlur(w, r, s.expenseRoute())
}

func (s *Server) handleExpenseOption(w http.ResponseWriter, r *http.Request) {
	s.formOption(w, r, s.expenseRoute())
}

func (s *Server) handleExpensePreview(w http.ResponseWriter, r *http.Request) {
	s.formPreview(w, r, s.expenseRoute())
}

func (s *Server) handleExpenseSubmit(w http.ResponseWriter, r *http.Request) {
	fr := s.expenseRoute()
	if !s.begin(w, r, fr) {
		return
	}
	ex, gen, err := s.expenseForm.Submission()
	if err != nil {
		s.submissionRejected(w, r, fr, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), fetchTimeout)
	defer cancel()
	generation := s.session.Generation()
	err = s.call(ctx, func(token string) error {
		_, err := s.backend.CreateExpense(ctx, token, api.NewExpensePayload(ex))
		return err
	})
	s.metrics.ObserveSubmission(fr.kind, outcome(err))
	if !s.finishSubmission(w, r, fr, gen, err) {
		return
	}

	s.views.InvalidateExpense(generation)
	s.submitted(w, r, storage.ExpenseEntry(ex), "Expense added")
}
