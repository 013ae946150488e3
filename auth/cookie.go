package auth

import (
	"net/http"
	"strings"
	"time"
)

// SessionCookies writes and reads the session cookie
type SessionCookies struct {
	Name   string
	Secure bool
}

// NewSessionCookies creates a cookie helper for the given cookie name
func NewSessionCookies(name string, secure bool) *SessionCookies {
	return &SessionCookies{Name: name, Secure: secure}
}

// Set stores token with Max-Age equal to ttl
func (c *SessionCookies) Set(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Clear expires the cookie immediately
func (c *SessionCookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Token returns the session token from the cookie, falling back to an
// Authorization bearer header for the mobile clients. Empty when absent.
func (c *SessionCookies) Token(r *http.Request) string {
	if cookie, err := r.Cookie(c.Name); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
