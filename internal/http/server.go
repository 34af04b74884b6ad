package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"finplan/internal/api"
	"finplan/internal/cache"
	"finplan/internal/core"
	"finplan/internal/form"
	"finplan/internal/log"
	"finplan/internal/metrics"
	"finplan/internal/middleware/ratelimit"
	"finplan/internal/middleware/security"
	"finplan/internal/middleware/trace"
	"finplan/internal/session"
	"finplan/internal/storage"
	appweb "finplan/web"
)

// fetchTimeout bounds each backend read made while rendering a view.
const fetchTimeout = 7 * time.Second

// Backend is the part of the API client the views use. Every call takes the
// access token explicitly.
type Backend interface {
	ListIncomes(ctx context.Context, token string) ([]core.Income, error)
	CreateIncome(ctx context.Context, token string, p api.IncomePayload) (string, error)
	ListExpenses(ctx context.Context, token string) ([]core.Expense, error)
	CreateExpense(ctx context.Context, token string, p api.ExpensePayload) (string, error)
	ListSources(ctx context.Context, token string) ([]core.Named, error)
	ListCategories(ctx context.Context, token string) ([]core.Named, error)
	Summary(ctx context.Context, token string) (core.Summary, error)
}

// Sessions is the session manager as the views see it.
type Sessions interface {
	Token() string
	Authenticated() bool
	Generation() uint64
	Refresh(ctx context.Context) bool
	Login(ctx context.Context, creds api.Credentials) (string, error)
	Signup(ctx context.Context, req api.SignupRequest) (string, error)
	Logout(ctx context.Context)
	Claims() (session.Claims, bool)
}

// Journal records submitted entries locally.
type Journal interface {
	Record(ctx context.Context, e storage.Entry) (storage.Entry, error)
	ListRecent(ctx context.Context, limit int) ([]storage.Entry, error)
	Ping(ctx context.Context) error
}

// Publisher announces journalled entries to the export worker.
type Publisher interface {
	PublishRecordSubmitted(ctx context.Context, id, kind string) error
}

// Deps are the collaborators of the web server. Publisher and Metrics are
// optional.
type Deps struct {
	Backend   Backend
	Sessions  Sessions
	Views     *cache.Views
	Journal   Journal
	Publisher Publisher
	Metrics   *metrics.Metrics
	Logger    *log.Logger

	RateLimit     ratelimit.Config
	AuthRateLimit ratelimit.Config
	// AllowedHosts extends the loopback names accepted in the Host header.
	AllowedHosts []string
}

type Server struct {
	http.Server
	templates *template.Template
	logger    *log.Logger
	records   *log.StructuredLogger

	backend   Backend
	session   Sessions
	views     *cache.Views
	journal   Journal
	publisher Publisher
	metrics   *metrics.Metrics

	incomeForm  *form.IncomeForm
	expenseForm *form.ExpenseForm

	limiter     *ratelimit.Limiter
	authLimiter *ratelimit.Limiter
	detector    *security.Detector

	shutdownOnce sync.Once
}

// DefaultAuthRateLimit bounds login and signup attempts per client.
func DefaultAuthRateLimit() ratelimit.Config {
	return ratelimit.Config{
		Requests:        10,
		Window:          time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// NewServer parses the embedded templates and configures routes, returning
// a ready-to-run server.
func NewServer(addr string, deps Deps) (*Server, error) {
	if deps.Backend == nil || deps.Sessions == nil || deps.Views == nil || deps.Journal == nil {
		return nil, errors.New("backend, sessions, views and journal are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if deps.RateLimit.Requests == 0 {
		deps.RateLimit = ratelimit.DefaultConfig()
	}
	if deps.AuthRateLimit.Requests == 0 {
		deps.AuthRateLimit = DefaultAuthRateLimit()
	}

	t, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	httpLogger := logger.WithComponent(log.ComponentHTTP)
	s := &Server{
		templates:   t,
		logger:      httpLogger,
		records:     log.NewStructuredLogger(httpLogger),
		backend:     deps.Backend,
		session:     deps.Sessions,
		views:       deps.Views,
		journal:     deps.Journal,
		publisher:   deps.Publisher,
		metrics:     deps.Metrics,
		incomeForm:  form.NewIncomeForm(logger),
		expenseForm: form.NewExpenseForm(logger),
		limiter:     ratelimit.NewLimiter(deps.RateLimit),
		authLimiter: ratelimit.NewLimiter(deps.AuthRateLimit),
		detector:    security.NewDetector(logger, deps.AllowedHosts...),
	}

	mux := http.NewServeMux()
	if err := s.routes(mux); err != nil {
		s.stopLimiters()
		return nil, err
	}

	var handler http.Handler = mux
	handler = s.limiter.Middleware(security.ExtractClientIP, s.onRateLimited)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.detector.Middleware(handler)
	handler = trace.NewMiddleware(logger, deps.Metrics, security.ExtractClientIP).Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) error {
	sub, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return fmt.Errorf("mount static assets: %w", err)
	}
	static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
	mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))

	page := func(h http.HandlerFunc) http.Handler { return security.NoStore(s.requireAuth(h)) }
	authLimited := func(h http.HandlerFunc) http.Handler {
		return security.NoStore(s.authLimiter.Middleware(security.ExtractClientIP, s.onRateLimited)(h))
	}

	mux.Handle("GET /{$}", page(s.handleDashboard))
	mux.Handle("GET /history", page(s.handleHistory))

	mux.Handle("GET /income", page(s.handleIncomePage))
	mux.Handle("GET /income/table", page(s.handleIncomeTable))
	mux.Handle("POST /income/form/open", page(s.handleIncomeOpen))
	mux.Handle("POST /income/form/close", page(s.handleIncomeClose))
	mux.Handle("POST /income/form/field", page(s.handleIncomeField))
	mux.Handle("POST /income/form/blur", page(s.handleIncomeBlur))
	mux.Handle("POST /income/form/option", page(s.handleIncomeOption))
	mux.Handle("POST /income/form/preview", page(s.handleIncomePreview))
	mux.Handle("POST /income/form/submit", page(s.handleIncomeSubmit))

	mux.Handle("GET /expenses", page(s.handleExpensePage))
	mux.Handle("GET /expenses/table", page(s.handleExpenseTable))
	mux.Handle("POST /expenses/form/open", page(s.handleExpenseOpen))
	mux.Handle("POST /expenses/form/close", page(s.handleExpenseClose))
	mux.Handle("POST /expenses/form/field", page(s.handleExpenseField))
	mux.Handle("POST /expenses/form/blur", page(s.handleExpenseBlur))
	mux.Handle("POST /expenses/form/option", page(s.handleExpenseOption))
	mux.Handle("POST /expenses/form/preview", page(s.handleExpensePreview))
	mux.Handle("POST /expenses/form/submit", page(s.handleExpenseSubmit))

	mux.Handle("GET /login", security.NoStore(http.HandlerFunc(s.handleLoginPage)))
	mux.Handle("POST /login", authLimited(s.handleLogin))
	mux.Handle("GET /signup", security.NoStore(http.HandlerFunc(s.handleSignupPage)))
	mux.Handle("POST /signup", authLimited(s.handleSignup))
	mux.Handle("POST /logout", security.NoStore(http.HandlerFunc(s.handleLogout)))

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return nil
}

// Shutdown gracefully shuts down the server and the limiter goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.stopLimiters()
		s.incomeForm.Close()
		s.expenseForm.Close()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) stopLimiters() {
	s.limiter.Stop()
	s.authLimiter.Stop()
}

// requireAuth sends visitors without a session to the login view.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.session.Authenticated() {
			s.redirectToLogin(w, r)
			return
		}
		next(w, r)
	}
}

func (s *Server) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	if isHTMX(r) {
		NewHTMXResponse().Redirect("/login").Write(w)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.metrics.ObserveRateLimited()
	s.log(r).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, security.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path,
	)
	TooManyRequestsError("Too many requests. Please wait a moment and try again.").Write(w)
}

// log returns the request-scoped logger installed by the trace middleware.
func (s *Server) log(r *http.Request) *log.Logger {
	if l, ok := r.Context().Value(log.LoggerContextKey).(*log.Logger); ok {
		return l.WithComponent(log.ComponentHTTP)
	}
	return s.logger
}

// call runs fn with the current token. An auth failure triggers one silent
// refresh and, when that yields a token, a single retry.
func (s *Server) call(ctx context.Context, fn func(token string) error) error {
	err := fn(s.session.Token())
	if !api.IsAuth(err) {
		return err
	}
	if !s.session.Refresh(ctx) {
		return err
	}
	return fn(s.session.Token())
}

// cached serves key from c or fetches it through call and stores the result.
func cached[T any](ctx context.Context, s *Server, c *cache.LRUCache[T], key string, fetch func(ctx context.Context, token string) (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	var out T
	err := s.call(ctx, func(token string) error {
		var err error
		out, err = fetch(ctx, token)
		return err
	})
	if err != nil {
		return out, err
	}
	c.Set(key, out)
	return out, nil
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.journal.Ping(ctx); err != nil {
		s.log(r).WarnContext(ctx, "Readiness check failed", log.FieldError, err.Error())
		http.Error(w, "journal unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// page is the data every full page template receives.
type page struct {
	Title         string
	Active        string
	Authenticated bool
	User          string
	Alert         string
	Data          any
}

func (s *Server) newPage(title, active string, data any) page {
	p := page{Title: title, Active: active, Authenticated: s.session.Authenticated(), Data: data}
	if c, ok := s.session.Claims(); ok {
		p.User = c.Name
		if p.User == "" {
			p.User = c.Subject
		}
	}
	return p
}

// render executes the named template into a buffer so a failing template
// never leaves a half-written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.log(r).WithComponent(log.ComponentTemplate).ErrorContext(r.Context(), "Template execution failed",
			log.FieldOperation, log.OpRender,
			"template", name,
			log.FieldError, err.Error(),
		)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// outcome maps an API error to its metrics label.
func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case api.IsAuth(err):
		return metrics.OutcomeAuth
	case api.IsTransport(err):
		return metrics.OutcomeTransport
	case api.IsApplication(err):
		return metrics.OutcomeApplication
	default:
		return metrics.OutcomeFailure
	}
}
