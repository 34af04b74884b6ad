package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"finplan/internal/log"
)

// CookieStore persists the backend's cookies between runs.
type CookieStore interface {
	LoadCookies(ctx context.Context) ([]*http.Cookie, error)
	SaveCookie(ctx context.Context, c *http.Cookie) error
	DeleteCookie(ctx context.Context, name string) error
}

// PersistentJar is an http.CookieJar that mirrors cookies set by the backend
// into a CookieStore, so a restarted client can still refresh its session.
type PersistentJar struct {
	mu     sync.Mutex
	inner  *cookiejar.Jar
	store  CookieStore
	logger *log.Logger
	now    func() time.Time
}

// NewPersistentJar creates a jar seeded with the unexpired cookies in store
// for baseURL. A nil store gives a plain in-memory jar.
func NewPersistentJar(ctx context.Context, baseURL string, store CookieStore, logger *log.Logger) (*PersistentJar, error) {
	inner, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	j := &PersistentJar{
		inner:  inner,
		store:  store,
		logger: logger.WithComponent(log.ComponentAPI),
		now:    time.Now,
	}
	if store == nil {
		return j, nil
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	cookies, err := store.LoadCookies(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cookies: %w", err)
	}
	live := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		if j.expired(c) {
			continue
		}
		live = append(live, c)
	}
	inner.SetCookies(u, live)
	return j, nil
}

func (j *PersistentJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.inner.SetCookies(u, cookies)
	if j.store == nil {
		return
	}
	ctx := context.Background()
	for _, c := range cookies {
		var err error
		if j.expired(c) {
			err = j.store.DeleteCookie(ctx, c.Name)
		} else {
			err = j.store.SaveCookie(ctx, c)
		}
		if err != nil {
			j.logger.Warn("Failed to persist cookie", "cookie", c.Name, log.FieldError, err.Error())
		}
	}
}

func (j *PersistentJar) Cookies(u *url.URL) []*http.Cookie {
	return j.inner.Cookies(u)
}

func (j *PersistentJar) expired(c *http.Cookie) bool {
	if c.MaxAge < 0 {
		return true
	}
	return !c.Expires.IsZero() && !c.Expires.After(j.now())
}
