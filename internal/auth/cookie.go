package auth

import (
	"errors"
	"net/http"
)

// CookieName is the session cookie.
const CookieName = "token"

// ErrBadEnvelope means the cookie was present but its signature did not verify.
var ErrBadEnvelope = errors.New("auth: session cookie failed verification")

// Cookies reads and writes the session cookie. With a TokenService the
// cookie value is a signed envelope; without one it is the raw session token.
type Cookies struct {
	tokens *TokenService
	secure bool
}

// NewCookies returns a cookie codec. tokens may be nil.
func NewCookies(tokens *TokenService, secure bool) *Cookies {
	return &Cookies{tokens: tokens, secure: secure}
}

// Set writes the session cookie.
func (c *Cookies) Set(w http.ResponseWriter, sessionToken, accountID string) error {
	value := sessionToken
	if c.tokens != nil {
		signed, err := c.tokens.Sign(sessionToken, accountID)
		if err != nil {
			return err
		}
		value = signed
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear expires the session cookie.
func (c *Cookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionToken extracts the session token from r. A missing cookie yields
// "" and no error; the caller decides what an absent session means.
func (c *Cookies) SessionToken(r *http.Request) (string, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return "", nil
	}
	if c.tokens == nil {
		return cookie.Value, nil
	}

	token, err := c.tokens.Open(cookie.Value)
	if err != nil {
		return "", errors.Join(ErrBadEnvelope, err)
	}
	return token, nil
}
