package shared

import (
	"net/http"
	"strings"
	"time"
)

// SessionManager moves signed session tokens between requests and cookies.
// It never interprets the token; signing and verification belong to the issuer.
type SessionManager struct {
	cookieName string
	ttl        time.Duration
	secure     bool
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(cookieName string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
	}
}

// Token returns the raw session token of the request. The cookie wins over an
// Authorization bearer header. An empty string means no token was presented.
func (sm *SessionManager) Token(r *http.Request) string {
	if cookie, err := r.Cookie(sm.cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// Commit writes the session cookie carrying token until expiresAt.
func (sm *SessionManager) Commit(w http.ResponseWriter, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge <= 0 {
		maxAge = int(sm.ttl.Seconds())
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sm.cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  expiresAt,
		MaxAge:   maxAge,
	})
}

// Destroy clears the session cookie.
func (sm *SessionManager) Destroy(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sm.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// CookieName returns the cookie identifier used for sessions.
func (sm *SessionManager) CookieName() string {
	return sm.cookieName
}
