package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"
)

// LoadCookies returns the persisted backend cookies. The repository is the
// api.CookieStore behind the client's jar.
func (r *SQLiteRepository) LoadCookies(ctx context.Context) ([]*http.Cookie, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, value, path, domain, expires_at, secure, http_only, same_site
		FROM session_cookies`)
	if err != nil {
		return nil, fmt.Errorf("load cookies: %w", err)
	}
	defer rows.Close()

	var out []*http.Cookie
	for rows.Next() {
		var (
			c        http.Cookie
			expires  sql.NullString
			sameSite int
		)
		if err := rows.Scan(&c.Name, &c.Value, &c.Path, &c.Domain, &expires,
			&c.Secure, &c.HttpOnly, &sameSite); err != nil {
			return nil, fmt.Errorf("scan cookie: %w", err)
		}
		if expires.Valid {
			t, err := parseTime(expires.String)
			if err != nil {
				return nil, err
			}
			c.Expires = t
		}
		c.SameSite = http.SameSite(sameSite)
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cookies: %w", err)
	}
	return out, nil
}

// SaveCookie inserts or replaces a cookie by name. A Max-Age is turned into
// an absolute expiry.
func (r *SQLiteRepository) SaveCookie(ctx context.Context, c *http.Cookie) error {
	now := r.now().UTC()
	var expires sql.NullString
	switch {
	case c.MaxAge > 0:
		expires = sql.NullString{String: formatTime(now.Add(time.Duration(c.MaxAge) * time.Second)), Valid: true}
	case !c.Expires.IsZero():
		expires = sql.NullString{String: formatTime(c.Expires), Valid: true}
	}
	path := c.Path
	if path == "" {
		path = "/"
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO session_cookies
			(name, value, path, domain, expires_at, secure, http_only, same_site, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			value = excluded.value,
			path = excluded.path,
			domain = excluded.domain,
			expires_at = excluded.expires_at,
			secure = excluded.secure,
			http_only = excluded.http_only,
			same_site = excluded.same_site,
			updated_at = excluded.updated_at`,
		c.Name, c.Value, path, c.Domain, expires, c.Secure, c.HttpOnly, int(c.SameSite), formatTime(now))
	if err != nil {
		return fmt.Errorf("save cookie %s: %w", c.Name, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteCookie(ctx context.Context, name string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM session_cookies WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete cookie %s: %w", name, err)
	}
	return nil
}
