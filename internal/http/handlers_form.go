package http

import (
	"context"
	"errors"
	"net/http"

	"finplan/internal/api"
	"finplan/internal/core"
	"finplan/internal/form"
	"finplan/internal/log"
	"finplan/internal/storage"
)

// entryForm is what the shared form endpoints need from either form.
type entryForm interface {
	Generation() uint64
	IsOpen() bool
	Close()
	SetField(name, value string) error
	SetError(msg string)
	BlurAmount() string
	ChooseOption(raw string) core.CategoricalOption
	ClearOption()
	TogglePreview() bool
	Finish(gen uint64, err error) bool
}

// formRoute binds the shared endpoints to one form.
type formRoute struct {
	kind   string
	form   entryForm
	fields []string
	// ref is the categorical field (source or category).
	ref    string
	render func(w http.ResponseWriter, r *http.Request)
}

func (s *Server) incomeRoute() formRoute {
	return formRoute{
		kind:   string(storage.KindIncome),
		form:   s.incomeForm,
		fields: []string{form.FieldAmount, form.FieldDate, form.FieldDescription, form.FieldSource},
		ref:    form.FieldSource,
		render: s.renderIncomeForm,
	}
}

func (s *Server) expenseRoute() formRoute {
	return formRoute{
		kind:   string(storage.KindExpense),
		form:   s.expenseForm,
		fields: []string{form.FieldAmount, form.FieldDate, form.FieldDescription, form.FieldCategory, form.FieldPaymentMethod},
		ref:    form.FieldCategory,
		render: s.renderExpenseForm,
	}
}

// current reports whether the post belongs to the open draft. Posts from a
// closed or reopened form are ignored.
func (fr formRoute) current(r *http.Request) bool {
	gen, ok := postedGeneration(r)
	return ok && fr.form.IsOpen() && gen == fr.form.Generation()
}

// mirror copies every posted field into the draft.
func (fr formRoute) mirror(r *http.Request) error {
	for _, name := range fr.fields {
		v, ok := formValue(r, name)
		if !ok {
			continue
		}
		if err := fr.form.SetField(name, v); err != nil {
			return err
		}
	}
	return nil
}

// begin parses the post and checks it is for the open draft. When it
// returns false the response has been written.
func (s *Server) begin(w http.ResponseWriter, r *http.Request, fr formRoute) bool {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return false
	}
	if !fr.current(r) {
		s.log(r).DebugContext(r.Context(), "Ignoring post for a stale form",
			log.FieldRecordKind, fr.kind,
			log.FieldGeneration, fr.form.Generation(),
		)
		fr.render(w, r)
		return false
	}
	if err := fr.mirror(r); err != nil {
		fr.form.SetError(err.Error())
		fr.render(w, r)
		return false
	}
	return true
}

func formClose(w http.ResponseWriter, fr formRoute) {
	fr.form.Close()
	w.WriteHeader(http.StatusOK)
}

// formField mirrors the single input that fired the request.
func (s *Server) formField(w http.ResponseWriter, r *http.Request, fr formRoute) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	if !fr.current(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	name := triggerName(r)
	value, _ := formValue(r, name)
	if err := fr.form.SetField(name, value); err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// formBlur normalizes the amount and swaps only the amount input, so a stale
// post must leave the page alone.
func (s *Server) formBlur(w http.ResponseWriter, r *http.Request, fr formRoute) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	if !fr.current(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if v, ok := formValue(r, form.FieldAmount); ok {
		_ = fr.form.SetField(form.FieldAmount, v)
	}
	value := fr.form.BlurAmount()
	s.render(w, r, http.StatusOK, "amount_input", amountFieldView{Kind: fr.kind, Base: formBase(fr.kind), Value: value})
}

// formOption chooses, creates or clears the categorical option.
func (s *Server) formOption(w http.ResponseWriter, r *http.Request, fr formRoute) {
	if !s.begin(w, r, fr) {
		return
	}
	raw, _ := formValue(r, fr.ref)
	if op, _ := formValue(r, "op"); op == "create" {
		raw, _ = formValue(r, "new_option")
	}
	if raw == "" {
		fr.form.ClearOption()
	} else {
		fr.form.ChooseOption(raw)
	}
	fr.render(w, r)
}

func (s *Server) formPreview(w http.ResponseWriter, r *http.Request, fr formRoute) {
	if !s.begin(w, r, fr) {
		return
	}
	fr.form.TogglePreview()
	fr.render(w, r)
}

// finishSubmission applies the backend result to the draft. It returns true
// when the record was created and the caller should journal it.
func (s *Server) finishSubmission(w http.ResponseWriter, r *http.Request, fr formRoute, gen uint64, err error) bool {
	if !fr.form.Finish(gen, err) {
		s.log(r).InfoContext(r.Context(), "Dropping result of a superseded submission",
			log.FieldOperation, log.OpCreate,
			log.FieldRecordKind, fr.kind,
			log.FieldGeneration, gen,
		)
		fr.render(w, r)
		return false
	}
	if err != nil {
		s.log(r).WarnContext(r.Context(), "Record submission failed",
			log.NewFields().
				WithOperation(log.OpCreate).
				WithError(err).
				ToSlice()...,
		)
		fr.render(w, r)
		return false
	}
	return true
}

// submitted journals e, announces it and tells the page to refresh its table
// and close the form. Journal and publish failures are only logged.
func (s *Server) submitted(w http.ResponseWriter, r *http.Request, e storage.Entry, message string) {
	ctx := r.Context()
	id := ""
	saved, err := s.journal.Record(ctx, e)
	if err != nil {
		s.log(r).ErrorContext(ctx, "Failed to journal submitted record",
			log.FieldRecordKind, string(e.Kind),
			log.FieldError, err.Error(),
		)
	} else {
		id = saved.ID
		s.records.LogRecordSubmitted(ctx, string(e.Kind), e.Amount.StringFixed(2), e.Ref, id)
		s.publish(ctx, r, saved)
	}

	NewHTMXResponse().
		TriggerRecordCreated(string(e.Kind), id).
		TriggerFormReset().
		TriggerSuccessNotification(message).
		Write(w)
}

func (s *Server) publish(ctx context.Context, r *http.Request, e storage.Entry) {
	if s.publisher == nil {
		s.log(r).DebugContext(ctx, "No publisher configured, export waits for the sweep",
			log.FieldRecordID, e.ID,
		)
		return
	}
	if err := s.publisher.PublishRecordSubmitted(ctx, e.ID, string(e.Kind)); err != nil {
		s.log(r).WarnContext(ctx, "Failed to publish record submitted message",
			log.FieldOperation, log.OpPublish,
			log.FieldRecordID, e.ID,
			log.FieldError, err.Error(),
		)
	}
}

// openError fills the error slot of a form whose vocabulary failed to load.
// The form stays usable since options can be created inline.
func (s *Server) openError(r *http.Request, fr formRoute, err error) {
	s.log(r).WarnContext(r.Context(), "Failed to load vocabulary",
		log.FieldOperation, log.OpList,
		log.FieldRecordKind, fr.kind,
		log.FieldError, err.Error(),
	)
	fr.form.SetError(api.Message(err))
}

// submissionRejected renders a draft that failed validation or was closed.
func (s *Server) submissionRejected(w http.ResponseWriter, r *http.Request, fr formRoute, err error) {
	if errors.Is(err, form.ErrFormClosed) {
		w.WriteHeader(http.StatusOK)
		return
	}
	s.log(r).DebugContext(r.Context(), "Submission did not validate",
		log.FieldRecordKind, fr.kind,
		log.FieldError, err.Error(),
	)
	fr.render(w, r)
}
