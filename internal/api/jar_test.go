package api

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCookieStore struct {
	mu      sync.Mutex
	cookies map[string]*http.Cookie
}

func newMemCookieStore() *memCookieStore {
	return &memCookieStore{cookies: map[string]*http.Cookie{}}
}

func (s *memCookieStore) LoadCookies(ctx context.Context) ([]*http.Cookie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*http.Cookie, 0, len(s.cookies))
	for _, c := range s.cookies {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memCookieStore) SaveCookie(ctx context.Context, c *http.Cookie) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.cookies[c.Name] = &cp
	return nil
}

func (s *memCookieStore) DeleteCookie(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cookies, name)
	return nil
}

func TestPersistentJar_SurvivesRestart(t *testing.T) {
	fb := newFakeBackend(t)
	store := newMemCookieStore()
	ctx := context.Background()

	jar, err := NewPersistentJar(ctx, fb.URL, store, nil)
	require.NoError(t, err)
	c, err := NewClient(fb.URL, jar)
	require.NoError(t, err)
	_, err = c.Login(ctx, Credentials{Email: "a@b.c", Password: "secret"})
	require.NoError(t, err)
	require.Contains(t, store.cookies, refreshCookie)

	// A fresh jar over the same store can still refresh.
	jar2, err := NewPersistentJar(ctx, fb.URL, store, nil)
	require.NoError(t, err)
	c2, err := NewClient(fb.URL, jar2)
	require.NoError(t, err)
	pair, err := c2.Refresh(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)

	require.NoError(t, c2.Logout(ctx))
	assert.NotContains(t, store.cookies, refreshCookie)
}

func TestPersistentJar_SkipsExpiredOnLoad(t *testing.T) {
	fb := newFakeBackend(t)
	store := newMemCookieStore()
	require.NoError(t, store.SaveCookie(context.Background(), &http.Cookie{
		Name: refreshCookie, Value: "old", Path: "/", Expires: time.Now().Add(-time.Hour),
	}))

	jar, err := NewPersistentJar(context.Background(), fb.URL, store, nil)
	require.NoError(t, err)
	assert.Empty(t, jar.Cookies(mustParseURL(t, fb.URL)))
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}
