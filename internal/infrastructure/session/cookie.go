package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"
)

// DefaultCookieName is the browser session cookie name
const DefaultCookieName = "connect_sid"

// CookieOptions defines how session cookies are issued
type CookieOptions struct {
	Name     string
	Path     string
	HttpOnly bool
	Secure   bool
	SameSite http.SameSite
	Domain   string
	MaxAge   time.Duration
}

// normalize applies safe defaults without breaking callers
func (o CookieOptions) normalize() CookieOptions {
	if o.Name == "" {
		o.Name = DefaultCookieName
	}
	if o.Path == "" {
		o.Path = "/"
	}
	if !o.HttpOnly {
		o.HttpOnly = true
	}
	if o.SameSite == 0 {
		// the provider callback is a cross-site top level navigation
		o.SameSite = http.SameSiteLaxMode
	}
	return o
}

// ReadCookie returns the browser session id carried by r, if any
func ReadCookie(r *http.Request, opts CookieOptions) string {
	opts = opts.normalize()

	cookie, err := r.Cookie(opts.Name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// SetCookie issues the session cookie to the client
func SetCookie(w http.ResponseWriter, sessionID string, opts CookieOptions) {
	opts = opts.normalize()

	cookie := &http.Cookie{
		Name:     opts.Name,
		Value:    sessionID,
		Path:     opts.Path,
		Domain:   opts.Domain,
		HttpOnly: opts.HttpOnly,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	}
	if opts.MaxAge > 0 {
		cookie.MaxAge = int(opts.MaxAge.Seconds())
	}
	http.SetCookie(w, cookie)
}

// GenerateID generates a cryptographically secure session ID.
// 32 bytes = 256 bits of entropy.
func GenerateID() (string, error) {
	const size = 32

	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("session: failed to generate id: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}
