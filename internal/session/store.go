package session

import (
	"net/http"
	"strings"
	"sync"
	"time"
)

// DefaultTTL is how long an issued credential stays valid.
const DefaultTTL = 7 * 24 * time.Hour

// Store owns the current session credential. It starts anonymous and is
// mutated only by explicit login/logout; reads are concurrent-safe.
type Store struct {
	mu         sync.RWMutex
	token      string
	cookieName string
	ttl        time.Duration
	secure     bool
}

// Options configures a Store.
type Options struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// NewStore builds a Store in the anonymous state.
func NewStore(opts Options) *Store {
	name := strings.TrimSpace(opts.CookieName)
	if name == "" {
		name = "studio_session"
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{cookieName: name, ttl: ttl, secure: opts.Secure}
}

// Set replaces the current credential. Empty tokens clear instead.
func (s *Store) Set(token string) {
	token = strings.TrimSpace(token)
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// Clear drops the current credential. Safe to call when already anonymous.
func (s *Store) Clear() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}

// Get returns the current credential and whether one is present.
func (s *Store) Get() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// CookieName returns the name used for the session cookie.
func (s *Store) CookieName() string { return s.cookieName }

// WriteCookie persists the token to the response. The cookie is host-only,
// script-inaccessible, and restricted against cross-site requests.
func (s *Store) WriteCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(s.ttl),
		MaxAge:   int(s.ttl / time.Second),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ExpireCookie writes an already-expired cookie so every client deletes it
// regardless of clock skew direction.
func (s *Store) ExpireCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// TokenFromRequest extracts the credential carried by an inbound request,
// preferring the session cookie and falling back to a bearer header.
func (s *Store) TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(s.cookieName); err == nil {
		if v := strings.TrimSpace(c.Value); v != "" {
			return v
		}
	}
	auth := r.Header.Get("Authorization")
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
