package handlers

import (
	"net/http"
	"time"

	"github.com/learn2pay/backend/config"
	"github.com/learn2pay/backend/services/auth"
)

// Cookie names for the token pair. Both cookies are HTTP-only; tokens are
// never handed to client-side script.
const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

// CookieWriter sets and clears the token-pair cookies with consistent
// attributes across every login, refresh, and logout endpoint.
type CookieWriter struct {
	secure     bool
	domain     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewCookieWriter creates a CookieWriter from auth configuration
func NewCookieWriter(cfg config.AuthConfig) *CookieWriter {
	return &CookieWriter{
		secure:     cfg.CookieSecure,
		domain:     cfg.CookieDomain,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
	}
}

func (c *CookieWriter) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// SetTokenPair writes both token cookies with lifetimes matching the tokens
func (c *CookieWriter) SetTokenPair(w http.ResponseWriter, pair *auth.TokenPair) {
	http.SetCookie(w, c.cookie(AccessTokenCookie, pair.Access, int(c.accessTTL.Seconds())))
	http.SetCookie(w, c.cookie(RefreshTokenCookie, pair.Refresh, int(c.refreshTTL.Seconds())))
}

// Clear expires both token cookies. Safe to call whether or not the client
// held them.
func (c *CookieWriter) Clear(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(AccessTokenCookie, "", -1))
	http.SetCookie(w, c.cookie(RefreshTokenCookie, "", -1))
}
