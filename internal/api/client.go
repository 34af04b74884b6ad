// Package api is the HTTP client for the finance backend. Bearer endpoints
// take the access token as an argument; refresh and logout rely only on the
// refresh cookie held by the client's jar.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"finplan/internal/core"
	"finplan/internal/log"
	"finplan/internal/metrics"
)

// Backend paths.
const (
	PathLogin        = "/login"
	PathSignup       = "/signup"
	PathRefresh      = "/refresh"
	PathLogout       = "/logout"
	PathIncomes      = "/admin/incomes"
	PathNewIncome    = "/admin/incomes/new"
	PathExpenses     = "/admin/expenses"
	PathNewExpense   = "/admin/expenses/new"
	PathSources      = "/admin/sources"
	PathCategories   = "/admin/categories"
	PathSummary      = "/admin/summary"
	maxResponseBytes = 4 << 20
)

// Client talks to the finance backend.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *log.Logger
}

type Option func(*Client)

// WithTimeout bounds every request made by the client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithMetrics records per-endpoint outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l.WithComponent(log.ComponentAPI) }
}

// WithTransport replaces the underlying round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.httpClient.Transport = rt }
}

// NewClient builds a client for baseURL. jar holds the refresh cookie and may
// be nil, in which case refresh and logout never carry credentials.
func NewClient(baseURL string, jar http.CookieJar, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", baseURL)
	}
	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Jar: jar, Timeout: 10 * time.Second},
		logger:     log.New(log.DefaultConfig()).WithComponent(log.ComponentAPI),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

func (c *Client) Login(ctx context.Context, creds Credentials) (TokenPair, error) {
	var out TokenPair
	err := c.do(ctx, http.MethodPost, PathLogin, "", creds, &out)
	return out, err
}

func (c *Client) Signup(ctx context.Context, req SignupRequest) (TokenPair, error) {
	var out TokenPair
	err := c.do(ctx, http.MethodPost, PathSignup, "", req, &out)
	return out, err
}

// Refresh exchanges the refresh cookie for a new access token. A backend
// without a cookie answers with an empty body, which yields an empty pair.
func (c *Client) Refresh(ctx context.Context) (TokenPair, error) {
	var out TokenPair
	err := c.do(ctx, http.MethodGet, PathRefresh, "", nil, &out)
	return out, err
}

// Logout asks the backend to expire the refresh cookie.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, PathLogout, "", nil, nil)
}

func (c *Client) ListIncomes(ctx context.Context, token string) ([]core.Income, error) {
	var dtos []incomeDTO
	if err := c.do(ctx, http.MethodGet, PathIncomes, token, nil, &dtos); err != nil {
		return nil, err
	}
	out := make([]core.Income, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toCore())
	}
	return out, nil
}

// CreateIncome posts an income and returns the server's confirmation message.
func (c *Client) CreateIncome(ctx context.Context, token string, p IncomePayload) (string, error) {
	var env envelope
	err := c.do(ctx, http.MethodPost, PathNewIncome, token, p, &env)
	return env.Message, err
}

func (c *Client) ListExpenses(ctx context.Context, token string) ([]core.Expense, error) {
	var dtos []expenseDTO
	if err := c.do(ctx, http.MethodGet, PathExpenses, token, nil, &dtos); err != nil {
		return nil, err
	}
	out := make([]core.Expense, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toCore())
	}
	return out, nil
}

// CreateExpense posts an expense and returns the server's confirmation message.
func (c *Client) CreateExpense(ctx context.Context, token string, p ExpensePayload) (string, error) {
	var env envelope
	err := c.do(ctx, http.MethodPost, PathNewExpense, token, p, &env)
	return env.Message, err
}

func (c *Client) ListSources(ctx context.Context, token string) ([]core.Named, error) {
	return c.listNamed(ctx, PathSources, token)
}

func (c *Client) ListCategories(ctx context.Context, token string) ([]core.Named, error) {
	return c.listNamed(ctx, PathCategories, token)
}

func (c *Client) Summary(ctx context.Context, token string) (core.Summary, error) {
	var out core.Summary
	err := c.do(ctx, http.MethodGet, PathSummary, token, nil, &out)
	return out, err
}

func (c *Client) listNamed(ctx context.Context, path, token string) ([]core.Named, error) {
	var refs []NamedRef
	if err := c.do(ctx, http.MethodGet, path, token, nil, &refs); err != nil {
		return nil, err
	}
	out := make([]core.Named, 0, len(refs))
	for _, r := range refs {
		out = append(out, core.Named{ID: r.ID, UserID: r.UserID, Name: r.Name})
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.ObserveAPI(path, outcomeOf(err), time.Since(start))
		if err != nil {
			c.logger.DebugContext(ctx, "API request failed",
				log.FieldMethod, method,
				log.FieldEndpoint, path,
				log.FieldError, err.Error(),
			)
		}
	}()

	var reader io.Reader
	if body != nil {
		b, mErr := json.Marshal(body)
		if mErr != nil {
			return &Error{Kind: KindTransport, Endpoint: path, Err: fmt.Errorf("encode request: %w", mErr)}
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return &Error{Kind: KindTransport, Endpoint: path, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Kind: KindTransport, Endpoint: path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &Error{Kind: KindTransport, Endpoint: path, Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &Error{Kind: KindAuth, Endpoint: path, Status: resp.StatusCode, Message: envelopeMessage(raw)}
	}
	if env, ok := parseEnvelope(raw); ok && env.Error {
		return &Error{Kind: KindApplication, Endpoint: path, Status: resp.StatusCode, Message: env.Message}
	}
	if resp.StatusCode >= 400 {
		return &Error{Kind: KindApplication, Endpoint: path, Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Kind: KindTransport, Endpoint: path, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func parseEnvelope(raw []byte) (envelope, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return envelope{}, false
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return envelope{}, false
	}
	return env, true
}

func envelopeMessage(raw []byte) string {
	env, _ := parseEnvelope(raw)
	return env.Message
}

func outcomeOf(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return metrics.OutcomeFailure
	}
	switch apiErr.Kind {
	case KindAuth:
		return metrics.OutcomeAuth
	case KindApplication:
		return metrics.OutcomeApplication
	default:
		return metrics.OutcomeTransport
	}
}
