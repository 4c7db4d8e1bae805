package auth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Cookie names used by the auth flows.
const (
	SessionCookieName   = "fitforge_session"
	ChallengeCookieName = "fitforge_email_code"
)

// CookiePolicy decides the attribute set on auth cookies. Same-site
// deployments use Lax; cross-site deployments (separate frontend origin)
// need SameSite=None, which browsers only accept together with Secure.
// Production always sets Secure, whatever the site mode.
type CookiePolicy struct {
	CrossSite  bool
	Production bool
}

// Session builds the session cookie carrying the signed token.
func (p CookiePolicy) Session(token string) *http.Cookie {
	return p.build(SessionCookieName, token, SessionTTL)
}

// Challenge builds the verification-challenge cookie.
func (p CookiePolicy) Challenge(token string) *http.Cookie {
	return p.build(ChallengeCookieName, token, ChallengeTTL)
}

// ClearSession builds an expired session cookie. Attributes must match the
// setting cookie or browsers keep the old one.
func (p CookiePolicy) ClearSession() *http.Cookie {
	return p.build(SessionCookieName, "", -time.Second)
}

// ClearChallenge builds an expired challenge cookie.
func (p CookiePolicy) ClearChallenge() *http.Cookie {
	return p.build(ChallengeCookieName, "", -time.Second)
}

func (p CookiePolicy) build(name, value string, ttl time.Duration) *http.Cookie {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		MaxAge:   int(ttl / time.Second),
		SameSite: http.SameSiteLaxMode,
	}
	if ttl < 0 {
		cookie.MaxAge = -1
		cookie.Expires = time.Unix(0, 0)
	}
	if p.CrossSite {
		cookie.SameSite = http.SameSiteNoneMode
	}
	cookie.Secure = p.CrossSite || p.Production
	return cookie
}

// readCookie returns the named cookie's value, or "" when absent.
func readCookie(c echo.Context, name string) string {
	cookie, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
