package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is what the header shows about the signed-in user.
type Claims struct {
	Subject   string
	Name      string
	ExpiresAt time.Time
}

type tokenClaims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// Expired reports whether the token carried an expiry that has passed.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// ParseClaims decodes an access token without verifying its signature. The
// backend verifies tokens; the client only reads them for display.
func ParseClaims(token string) (Claims, error) {
	var tc tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &tc); err != nil {
		return Claims{}, fmt.Errorf("parse access token: %w", err)
	}
	out := Claims{Subject: tc.Subject, Name: tc.Name}
	if tc.ExpiresAt != nil {
		out.ExpiresAt = tc.ExpiresAt.Time
	}
	return out, nil
}

// Claims decodes the current access token. ok is false when logged out or
// when the token is not a JWT.
func (m *Manager) Claims() (Claims, bool) {
	token := m.Token()
	if token == "" {
		return Claims{}, false
	}
	c, err := ParseClaims(token)
	if err != nil {
		m.logger.Debug("Access token is not a readable JWT", "error", err.Error())
		return Claims{}, false
	}
	return c, true
}
