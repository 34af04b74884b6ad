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

type incomeData struct {
	Incomes []core.Income
	Error   string
	Form    form.IncomeView
}

func (s *Server) incomes(ctx context.Context) ([]core.Income, error) {
	return cached(ctx, s, s.views.Incomes, cache.Key(s.session.Generation()), s.backend.ListIncomes)
}

// loadIncomes fills data with the income list. It returns false when the
// session is gone and the client has been sent to the login view.
func (s *Server) loadIncomes(w http.ResponseWriter, r *http.Request, data *incomeData) bool {
	incomes, err := s.incomes(r.Context())
	if err == nil {
		data.Incomes = incomes
		return true
	}
	if api.IsAuth(err) {
		s.redirectToLogin(w, r)
		return false
	}
	s.log(r).ErrorContext(r.Context(), "Failed to list incomes",
		log.FieldOperation, log.OpList,
		log.FieldError, err.Error(),
	)
	data.Error = api.Message(err)
	return true
}

func (s *Server) handleIncomePage(w http.ResponseWriter, r *http.Request) {
	data := incomeData{Form: s.incomeForm.View()}
	if !s.loadIncomes(w, r, &data) {
		return
	}
	s.render(w, r, http.StatusOK, "income_page", s.newPage("Income", "income", data))
}

func (s *Server) handleIncomeTable(w http.ResponseWriter, r *http.Request) {
	var data incomeData
	if !s.loadIncomes(w, r, &data) {
		return
	}
	s.render(w, r, http.StatusOK, "income_table", data)
}

func (s *Server) renderIncomeForm(w http.ResponseWriter, r *http.Request) {
	v := s.incomeForm.View()
	if !v.Open {
		w.WriteHeader(http.StatusOK)
		return
	}
	s.render(w, r, http.StatusOK, "income_form", v)
}

// handleIncomeOpen starts a fresh draft over the current source vocabulary.
func (s *Server) handleIncomeOpen(w http.ResponseWriter, r *http.Request) {
	key := cache.SourcesKey(s.session.Generation())
	sources, err := cached(r.Context(), s, s.views.Vocabulary, key, s.backend.ListSources)
	if api.IsAuth(err) {
		s.redirectToLogin(w, r)
		return
	}
	s.incomeForm.Open(core.OptionsFromNames(sources))
	if err != nil {
		s.openError(r, s.incomeRoute(), err)
	}
	s.renderIncomeForm(w, r)
}

func (s *Server) handleIncomeClose(w http.ResponseWriter, r *http.Request) {
	formClose(w, s.incomeRoute())
}

func (s *Server) handleIncomeField(w http.ResponseWriter, r *http.Request) {
	s.formField(w, r, s.incomeRoute())
}

func (s *Server) handleIncomeBlur(w http.ResponseWriter, r *http.Request) {
	s.formBlur(w, r, s.incomeRoute())
}

func (s *Server) handleIncomeOption(w http.ResponseWriter, r *http.Request) {
	s.formOption(w, r, s.incomeRoute())
}

func (s *Server) handleIncomePreview(w http.ResponseWriter, r *http.Request) {
	s.formPreview(w, r, s.incomeRoute())
}

// handleIncomeSubmit posts the draft. Success closes the form and refreshes
// the table; failure keeps the form open with the message in its error slot.
func (s *Server) handleIncomeSubmit(w http.ResponseWriter, r *http.Request) {
	fr := s.incomeRoute()
	if !s.begin(w, r, fr) {
		return
	}
	in, gen, err := s.incomeForm.Submission()
	if err != nil {
		s.submissionRejected(w, r, fr, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), fetchTimeout)
	defer cancel()
	generation := s.session.Generation()
	err = s.call(ctx, func(token string) error {
		_, err := s.backend.CreateIncome(ctx, token, api.NewIncomePayload(in))
		return err
	})
	s.metrics.ObserveSubmission(fr.kind, outcome(err))
	if !s.finishSubmission(w, r, fr, gen, err) {
		return
	}

	s.views.InvalidateIncome(generation)
	s.submitted(w, r, storage.IncomeEntry(in), "Income added")
}

