package sessions

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

// ErrNoSession means the request carried no session cookie. It is not a failure.
var ErrNoSession = errors.New("sessions: no session cookie")

// CookieStore moves session tokens between HTTP cookies and the codec.
// The cookie is always HttpOnly, SameSite=Lax and scoped to "/".
type CookieStore struct {
	Name   string
	MaxAge time.Duration
	// Secure forces the Secure attribute even when the request arrived over plain HTTP.
	Secure bool
}

func NewCookieStore(name string, maxAge time.Duration, secure bool) *CookieStore {
	return &CookieStore{Name: name, MaxAge: maxAge, Secure: secure}
}

// Attach sets the session cookie on the response.
func (s *CookieStore) Attach(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, s.cookie(r, token, int(s.MaxAge/time.Second)))
}

// Detach expires the session cookie immediately. Safe to call without a session.
func (s *CookieStore) Detach(w http.ResponseWriter, r *http.Request) {
	// MaxAge < 0 is rendered as "Max-Age=0".
	http.SetCookie(w, s.cookie(r, "", -1))
}

// Extract returns the raw token, or ErrNoSession when the cookie is absent or empty.
func (s *CookieStore) Extract(r *http.Request) (string, error) {
	c, err := r.Cookie(s.Name)
	if err != nil || c.Value == "" {
		return "", ErrNoSession
	}
	return c.Value, nil
}

func (s *CookieStore) cookie(r *http.Request, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     s.Name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.Secure || encrypted(r),
		SameSite: http.SameSiteLaxMode,
	}
}

// encrypted reports whether the request reached us over TLS, directly or via a terminating proxy.
func encrypted(r *http.Request) bool {
	if r == nil {
		return false
	}
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
