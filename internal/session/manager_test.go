package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"finplan/internal/api"
)

type authMock struct {
	mock.Mock
}

func (a *authMock) Login(ctx context.Context, creds api.Credentials) (api.TokenPair, error) {
	args := a.Called(ctx, creds)
	return args.Get(0).(api.TokenPair), args.Error(1)
}

func (a *authMock) Signup(ctx context.Context, req api.SignupRequest) (api.TokenPair, error) {
	args := a.Called(ctx, req)
	return args.Get(0).(api.TokenPair), args.Error(1)
}

func (a *authMock) Refresh(ctx context.Context) (api.TokenPair, error) {
	args := a.Called(ctx)
	return args.Get(0).(api.TokenPair), args.Error(1)
}

func (a *authMock) Logout(ctx context.Context) error {
	return a.Called(ctx).Error(0)
}

var creds = api.Credentials{Email: "ada@example.com", Password: "secret"}

func newManager(t *testing.T, auth *authMock, opts ...Option) *Manager {
	t.Helper()
	m := NewManager(auth, opts...)
	t.Cleanup(m.Close)
	return m
}

func loggedIn(t *testing.T, auth *authMock, token string, opts ...Option) *Manager {
	t.Helper()
	auth.On("Login", mock.Anything, creds).Return(api.TokenPair{AccessToken: token}, nil).Once()
	m := newManager(t, auth, opts...)
	_, err := m.Login(context.Background(), creds)
	require.NoError(t, err)
	return m
}

func TestLogin_StoresTokenAndStartsRefresh(t *testing.T) {
	auth := &authMock{}
	m := loggedIn(t, auth, "t1")

	assert.Equal(t, "t1", m.Token())
	assert.True(t, m.Refreshing())
	assert.Equal(t, uint64(1), m.Generation())
	auth.AssertExpectations(t)
}

func TestLogin_FailureLeavesSessionUntouched(t *testing.T) {
	auth := &authMock{}
	m := loggedIn(t, auth, "t1")
	gen := m.Generation()

	bad := api.Credentials{Email: "ada@example.com", Password: "wrong"}
	auth.On("Login", mock.Anything, bad).
		Return(api.TokenPair{}, &api.Error{Kind: api.KindApplication, Message: "invalid credentials"})

	_, err := m.Login(context.Background(), bad)
	require.Error(t, err)
	assert.True(t, api.IsApplication(err))
	assert.Equal(t, "t1", m.Token())
	assert.Equal(t, gen, m.Generation())
}

func TestLogin_EmptyTokenIsAnError(t *testing.T) {
	auth := &authMock{}
	auth.On("Login", mock.Anything, creds).Return(api.TokenPair{}, nil)
	m := newManager(t, auth)

	_, err := m.Login(context.Background(), creds)
	assert.ErrorIs(t, err, ErrEmptyToken)
	assert.False(t, m.Authenticated())
	assert.False(t, m.Refreshing())
}

func TestSignup_EstablishesSession(t *testing.T) {
	auth := &authMock{}
	req := api.SignupRequest{Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace", Password: "secret"}
	auth.On("Signup", mock.Anything, req).Return(api.TokenPair{AccessToken: "s1"}, nil)
	m := newManager(t, auth)

	token, err := m.Signup(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "s1", token)
	assert.True(t, m.Refreshing())
}

func TestLogout_ClearsImmediatelyWhateverTheServerDoes(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"success", nil},
		{"transport error", &api.Error{Kind: api.KindTransport, Err: errors.New("connection refused")}},
		{"auth error", &api.Error{Kind: api.KindAuth, Status: 401}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &authMock{}
			m := loggedIn(t, auth, "t1")
			release := make(chan time.Time)
			auth.On("Logout", mock.Anything).WaitUntil(release).Return(tt.err)

			m.Logout(context.Background())

			assert.Empty(t, m.Token())
			assert.False(t, m.Refreshing())
			close(release)
		})
	}
}

func TestLogout_ServerTimeoutDoesNotBlock(t *testing.T) {
	auth := &authMock{}
	m := loggedIn(t, auth, "t1", WithLogoutTimeout(20*time.Millisecond))
	auth.On("Logout", mock.Anything).Run(func(args mock.Arguments) {
		<-args.Get(0).(context.Context).Done()
	}).Return(context.DeadlineExceeded)

	start := time.Now()
	m.Logout(context.Background())
	assert.Less(t, time.Since(start), 20*time.Millisecond)
	assert.Empty(t, m.Token())

	m.Close()
	auth.AssertCalled(t, "Logout", mock.Anything)
}

func TestRefresh_ReplacesTokenExactly(t *testing.T) {
	auth := &authMock{}
	m := loggedIn(t, auth, "t1")
	auth.On("Refresh", mock.Anything).Return(api.TokenPair{AccessToken: "t2"}, nil).Once()

	assert.True(t, m.Refresh(context.Background()))
	assert.Equal(t, "t2", m.Token())
}

func TestRefresh_FailureLeavesTokenUnchanged(t *testing.T) {
	auth := &authMock{}
	m := loggedIn(t, auth, "t1")
	auth.On("Refresh", mock.Anything).Return(api.TokenPair{}, &api.Error{Kind: api.KindAuth, Status: 401}).Once()
	auth.On("Refresh", mock.Anything).Return(api.TokenPair{}, nil).Once()

	assert.False(t, m.Refresh(context.Background()))
	assert.Equal(t, "t1", m.Token())

	assert.False(t, m.Refresh(context.Background()))
	assert.Equal(t, "t1", m.Token())
}

func TestRefresh_StaleResultIsDropped(t *testing.T) {
	auth := &authMock{}
	m := loggedIn(t, auth, "t1")
	started := make(chan struct{})
	release := make(chan struct{})
	auth.On("Refresh", mock.Anything).Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return(api.TokenPair{AccessToken: "late"}, nil).Once()
	auth.On("Logout", mock.Anything).Return(nil)

	done := make(chan bool)
	go func() { done <- m.Refresh(context.Background()) }()
	<-started
	m.Logout(context.Background())
	close(release)

	assert.False(t, <-done)
	assert.Empty(t, m.Token())
}

func TestRefresh_AfterLogoutDoesNotJoinEarlierRequest(t *testing.T) {
	auth := &authMock{}
	m := loggedIn(t, auth, "t1")
	started := make(chan struct{})
	release := make(chan struct{})
	auth.On("Refresh", mock.Anything).Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return(api.TokenPair{AccessToken: "late"}, nil).Once()
	auth.On("Refresh", mock.Anything).
		Return(api.TokenPair{}, &api.Error{Kind: api.KindAuth, Status: 401}).Once()
	auth.On("Logout", mock.Anything).Return(nil)

	first := make(chan bool)
	go func() { first <- m.Refresh(context.Background()) }()
	<-started
	m.Logout(context.Background())

	second := make(chan bool)
	go func() { second <- m.Refresh(context.Background()) }()
	select {
	case ok := <-second:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("refresh after logout waited on the request issued before it")
	}
	close(release)

	assert.False(t, <-first)
	assert.Empty(t, m.Token())
	auth.AssertNumberOfCalls(t, "Refresh", 2)
}

func TestRefresh_SharedCallSurvivesCallerCancel(t *testing.T) {
	auth := &authMock{}
	m := loggedIn(t, auth, "t1")
	auth.On("Refresh", mock.Anything).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		assert.NoError(t, ctx.Err())
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
	}).Return(api.TokenPair{AccessToken: "t2"}, nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.True(t, m.Refresh(ctx))
	assert.Equal(t, "t2", m.Token())
}

func TestStartSilentRefresh_Ticks(t *testing.T) {
	auth := &authMock{}
	m := loggedIn(t, auth, "t1", WithRefreshInterval(10*time.Millisecond))
	auth.On("Refresh", mock.Anything).Return(api.TokenPair{AccessToken: "t2"}, nil)

	assert.Eventually(t, func() bool { return m.Token() == "t2" }, time.Second, 5*time.Millisecond)
}

func TestStopSilentRefresh_Idempotent(t *testing.T) {
	auth := &authMock{}
	m := newManager(t, auth)

	assert.NotPanics(t, func() {
		m.StopSilentRefresh()
		m.StopSilentRefresh()
	})

	m.StartSilentRefresh()
	m.StartSilentRefresh()
	assert.True(t, m.Refreshing())
	m.StopSilentRefresh()
	m.StopSilentRefresh()
	assert.False(t, m.Refreshing())
}

func TestStopSilentRefresh_NoFurtherCalls(t *testing.T) {
	auth := &authMock{}
	m := loggedIn(t, auth, "t1", WithRefreshInterval(5*time.Millisecond))
	auth.On("Refresh", mock.Anything).Return(api.TokenPair{AccessToken: "t2"}, nil)

	assert.Eventually(t, func() bool { return m.Token() == "t2" }, time.Second, time.Millisecond)
	m.Close()

	calls := len(auth.Calls)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, len(auth.Calls))
}

func TestBootstrap(t *testing.T) {
	t.Run("no cookie", func(t *testing.T) {
		auth := &authMock{}
		auth.On("Refresh", mock.Anything).Return(api.TokenPair{}, nil)
		m := newManager(t, auth)

		assert.False(t, m.Bootstrap(context.Background()))
		assert.False(t, m.Authenticated())
		assert.False(t, m.Refreshing())
	})

	t.Run("backend down", func(t *testing.T) {
		auth := &authMock{}
		auth.On("Refresh", mock.Anything).Return(api.TokenPair{}, &api.Error{Kind: api.KindTransport})
		m := newManager(t, auth)

		assert.False(t, m.Bootstrap(context.Background()))
		assert.False(t, m.Refreshing())
	})

	t.Run("valid cookie", func(t *testing.T) {
		auth := &authMock{}
		auth.On("Refresh", mock.Anything).Return(api.TokenPair{AccessToken: "resumed"}, nil)
		m := newManager(t, auth)

		assert.True(t, m.Bootstrap(context.Background()))
		assert.Equal(t, "resumed", m.Token())
		assert.True(t, m.Refreshing())
	})

	t.Run("already signed in", func(t *testing.T) {
		auth := &authMock{}
		m := loggedIn(t, auth, "t1")

		assert.True(t, m.Bootstrap(context.Background()))
		auth.AssertNotCalled(t, "Refresh", mock.Anything)
	})
}

func TestClaims(t *testing.T) {
	exp := time.Now().Add(15 * time.Minute).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "42",
		"name": "Ada Lovelace",
		"exp":  exp.Unix(),
	}).SignedString([]byte("irrelevant"))
	require.NoError(t, err)

	auth := &authMock{}
	m := loggedIn(t, auth, signed)

	c, ok := m.Claims()
	require.True(t, ok)
	assert.Equal(t, "42", c.Subject)
	assert.Equal(t, "Ada Lovelace", c.Name)
	assert.True(t, exp.Equal(c.ExpiresAt))
	assert.False(t, c.Expired(time.Now()))
	assert.True(t, c.Expired(exp.Add(time.Second)))
}

func TestClaims_NotAJWT(t *testing.T) {
	auth := &authMock{}
	m := loggedIn(t, auth, "opaque")

	_, ok := m.Claims()
	assert.False(t, ok)

	_, ok = newManager(t, &authMock{}).Claims()
	assert.False(t, ok)
}
