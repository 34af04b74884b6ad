// Package session owns the access token for one running client and keeps it
// fresh with a cookie-only refresh on a fixed interval.
package session

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"finplan/internal/api"
	"finplan/internal/log"
	"finplan/internal/metrics"
)

const (
	DefaultRefreshInterval = 10 * time.Minute
	DefaultRefreshTimeout  = 15 * time.Second
	DefaultLogoutTimeout   = 5 * time.Second
)

// ErrEmptyToken is returned when login or signup succeeds without a token.
var ErrEmptyToken = errors.New("server returned an empty access token")

// Authenticator is the part of the API client the manager depends on.
type Authenticator interface {
	Login(ctx context.Context, creds api.Credentials) (api.TokenPair, error)
	Signup(ctx context.Context, req api.SignupRequest) (api.TokenPair, error)
	Refresh(ctx context.Context) (api.TokenPair, error)
	Logout(ctx context.Context) error
}

// Manager holds the access token. One Manager exists per process and is
// handed to every view that needs to make authorized calls.
type Manager struct {
	auth            Authenticator
	logger          *log.Logger
	metrics         *metrics.Metrics
	refreshInterval time.Duration
	refreshTimeout  time.Duration
	logoutTimeout   time.Duration

	mu         sync.Mutex
	token      string
	generation uint64
	stop       chan struct{}

	flight singleflight.Group
	wg     sync.WaitGroup
}

type Option func(*Manager)

func WithRefreshInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.refreshInterval = d
		}
	}
}

func WithRefreshTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.refreshTimeout = d
		}
	}
}

func WithLogoutTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.logoutTimeout = d
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = l.WithComponent(log.ComponentSession) }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

func NewManager(auth Authenticator, opts ...Option) *Manager {
	m := &Manager{
		auth:            auth,
		logger:          log.New(log.DefaultConfig()).WithComponent(log.ComponentSession),
		refreshInterval: DefaultRefreshInterval,
		refreshTimeout:  DefaultRefreshTimeout,
		logoutTimeout:   DefaultLogoutTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Token returns the current access token, or "" when logged out.
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

func (m *Manager) Authenticated() bool {
	return m.Token() != ""
}

// Generation changes on every login, signup and logout.
func (m *Manager) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// Refreshing reports whether the silent refresh schedule is active.
func (m *Manager) Refreshing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stop != nil
}

// StartSilentRefresh schedules a refresh every interval, replacing any
// schedule already running.
func (m *Manager) StartSilentRefresh() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startLocked()
}

// StopSilentRefresh cancels the schedule. No refresh starts after it returns.
func (m *Manager) StopSilentRefresh() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

func (m *Manager) startLocked() {
	m.stopLocked()
	stop := make(chan struct{})
	m.stop = stop
	m.wg.Add(1)
	go m.refreshLoop(stop)
}

func (m *Manager) stopLocked() {
	if m.stop != nil {
		close(m.stop)
		m.stop = nil
	}
}

func (m *Manager) refreshLoop(stop <-chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			select {
			case <-stop:
				return
			default:
			}
			ctx, cancel := context.WithTimeout(context.Background(), m.refreshTimeout)
			m.silentRefresh(ctx)
			cancel()
		}
	}
}

// Refresh performs one silent refresh now and reports whether it produced a
// token. Failures leave the current token untouched.
func (m *Manager) Refresh(ctx context.Context) bool {
	return m.silentRefresh(ctx)
}

func (m *Manager) silentRefresh(ctx context.Context) bool {
	m.mu.Lock()
	gen := m.generation
	m.mu.Unlock()

	// Callers only share a request issued under their own generation. The
	// shared call outlives any one caller's context.
	key := "refresh:" + strconv.FormatUint(gen, 10)
	v, err, _ := m.flight.Do(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.refreshTimeout)
		defer cancel()
		return m.auth.Refresh(callCtx)
	})
	if err != nil {
		m.metrics.ObserveRefresh(metrics.OutcomeFailure)
		m.logger.WarnContext(ctx, "Silent refresh failed",
			log.FieldOperation, log.OpRefresh,
			log.FieldError, err.Error(),
		)
		return false
	}

	pair, _ := v.(api.TokenPair)
	if pair.AccessToken == "" {
		m.metrics.ObserveRefresh(metrics.OutcomeEmpty)
		m.logger.DebugContext(ctx, "Silent refresh returned no token", log.FieldOperation, log.OpRefresh)
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != gen {
		m.metrics.ObserveRefresh(metrics.OutcomeStale)
		m.logger.DebugContext(ctx, "Dropping stale refresh result",
			log.FieldOperation, log.OpRefresh,
			log.FieldGeneration, gen,
		)
		return false
	}
	m.token = pair.AccessToken
	m.metrics.ObserveRefresh(metrics.OutcomeSuccess)
	return true
}

// Bootstrap runs once at startup. With no token held it tries a single
// silent refresh and starts the schedule if that yields a token.
func (m *Manager) Bootstrap(ctx context.Context) bool {
	m.mu.Lock()
	if m.token != "" {
		if m.stop == nil {
			m.startLocked()
		}
		m.mu.Unlock()
		return true
	}
	m.mu.Unlock()

	if !m.silentRefresh(ctx) {
		m.logger.InfoContext(ctx, "No session to resume", log.FieldOperation, log.OpStartup)
		return false
	}

	m.mu.Lock()
	if m.stop == nil {
		m.startLocked()
	}
	m.mu.Unlock()
	m.logger.InfoContext(ctx, "Resumed session from refresh cookie", log.FieldOperation, log.OpStartup)
	return true
}

// Login authenticates and, on success, stores the token and starts the
// refresh schedule. On failure the session is left exactly as it was.
func (m *Manager) Login(ctx context.Context, creds api.Credentials) (string, error) {
	pair, err := m.auth.Login(ctx, creds)
	if err != nil {
		return "", err
	}
	return m.establish(ctx, pair, log.OpLogin)
}

// Signup creates an account and signs in with the returned token.
func (m *Manager) Signup(ctx context.Context, req api.SignupRequest) (string, error) {
	pair, err := m.auth.Signup(ctx, req)
	if err != nil {
		return "", err
	}
	return m.establish(ctx, pair, log.OpSignup)
}

func (m *Manager) establish(ctx context.Context, pair api.TokenPair, op string) (string, error) {
	if pair.AccessToken == "" {
		return "", ErrEmptyToken
	}
	m.mu.Lock()
	m.token = pair.AccessToken
	m.generation++
	gen := m.generation
	m.startLocked()
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "Session established",
		log.FieldOperation, op,
		log.FieldGeneration, gen,
	)
	return pair.AccessToken, nil
}

// Logout fires a best-effort server logout in the background and clears the
// local session immediately, whatever the server call does.
func (m *Manager) Logout(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.logoutTimeout)
		defer cancel()
		if err := m.auth.Logout(callCtx); err != nil {
			m.logger.WarnContext(callCtx, "Server logout failed",
				log.FieldOperation, log.OpLogout,
				log.FieldError, err.Error(),
			)
		}
	}()

	m.mu.Lock()
	m.token = ""
	m.generation++
	m.stopLocked()
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "Session cleared", log.FieldOperation, log.OpLogout)
}

// Close stops the refresh schedule and waits for background calls to finish.
func (m *Manager) Close() {
	m.StopSilentRefresh()
	m.wg.Wait()
}
