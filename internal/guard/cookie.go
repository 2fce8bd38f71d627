package guard

import (
	"net/http"
	"time"

	"pawplanner/backend/internal/platform/httpx"
)

// DefaultCookieName is the name of the session cookie.
const DefaultCookieName = "pp_session"

// CookieConfig describes the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

// ForRequest returns c with Secure also set when r arrived over TLS.
func (c CookieConfig) ForRequest(r *http.Request) CookieConfig {
	if !c.Secure && httpx.RequestIsSecure(r) {
		c.Secure = true
	}
	return c
}

// Apply writes the cookie mutation m to w. CookieKeep writes nothing.
func (c CookieConfig) Apply(w http.ResponseWriter, m CookieMutation) {
	if ck := c.cookie(m); ck != nil {
		http.SetCookie(w, ck)
	}
}

// Header returns the Set-Cookie header value for m, or "" for CookieKeep.
func (c CookieConfig) Header(m CookieMutation) string {
	if ck := c.cookie(m); ck != nil {
		return ck.String()
	}
	return ""
}

func (c CookieConfig) cookie(m CookieMutation) *http.Cookie {
	switch m.Action {
	case CookieSet:
		return &http.Cookie{
			Name:     c.Name,
			Value:    m.Value,
			Path:     "/",
			MaxAge:   int(c.MaxAge / time.Second),
			HttpOnly: true,
			Secure:   c.Secure,
			SameSite: http.SameSiteLaxMode,
		}
	case CookieClear:
		return &http.Cookie{
			Name:     c.Name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			Expires:  time.Unix(0, 0),
			HttpOnly: true,
			Secure:   c.Secure,
			SameSite: http.SameSiteLaxMode,
		}
	default:
		return nil
	}
}
