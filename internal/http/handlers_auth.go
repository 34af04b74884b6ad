package http

import (
	"net/http"

	"finplan/internal/api"
	"finplan/internal/log"
	"finplan/internal/middleware/security"
)

type loginData struct {
	Email string
}

type signupData struct {
	FirstName string
	LastName  string
	Email     string
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "login_page", s.newPage("Log in", "login", loginData{}))
}

func (s *Server) handleSignupPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "signup_page", s.newPage("Sign up", "signup", signupData{}))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	email, _ := formValue(r, "email")
	password := r.PostForm.Get("password")

	_, err := s.session.Login(r.Context(), api.Credentials{Email: email, Password: password})
	if err != nil {
		s.authFailed(r, log.OpLogin, err)
		p := s.newPage("Log in", "login", loginData{Email: email})
		p.Alert = api.Message(err)
		s.render(w, r, authStatus(err), "login_page", p)
		return
	}

	s.log(r).InfoContext(r.Context(), "Logged in", log.FieldOperation, log.OpLogin)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	data := signupData{}
	data.FirstName, _ = formValue(r, "first_name")
	data.LastName, _ = formValue(r, "last_name")
	data.Email, _ = formValue(r, "email")

	_, err := s.session.Signup(r.Context(), api.SignupRequest{
		Email:     data.Email,
		FirstName: data.FirstName,
		LastName:  data.LastName,
		Password:  r.PostForm.Get("password"),
	})
	if err != nil {
		s.authFailed(r, log.OpSignup, err)
		p := s.newPage("Sign up", "signup", data)
		p.Alert = api.Message(err)
		s.render(w, r, authStatus(err), "signup_page", p)
		return
	}

	s.log(r).InfoContext(r.Context(), "Signed up", log.FieldOperation, log.OpSignup)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleLogout ends the session without waiting for the backend and drops
// everything cached or drafted under it.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.session.Logout(r.Context())
	s.views.Purge()
	s.incomeForm.Close()
	s.expenseForm.Close()

	s.log(r).InfoContext(r.Context(), "Logged out", log.FieldOperation, log.OpLogout)
	if isHTMX(r) {
		NewHTMXResponse().Redirect("/login").Write(w)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) authFailed(r *http.Request, op string, err error) {
	s.log(r).WarnContext(r.Context(), "Authentication failed",
		log.NewFields().
			WithOperation(op).
			WithClientIP(security.ExtractClientIP(r)).
			WithError(err).
			ToSlice()...,
	)
}

// authStatus is the status of a re-rendered login or signup page.
func authStatus(err error) int {
	switch {
	case api.IsTransport(err):
		return http.StatusBadGateway
	case api.IsAuth(err):
		return http.StatusUnauthorized
	case api.IsApplication(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
