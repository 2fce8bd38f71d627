package guard

import (
	"net/http"
	"net/url"
	"strings"
)

// DefaultPublicPrefixes are request paths PageGate never evaluates.
var DefaultPublicPrefixes = []string{"/auth/magic-link", "/healthz", "/readyz", "/dev/", "/api/rpc", "/static/"}

// DefaultAuthOnlyPaths are pages that only make sense signed out.
var DefaultAuthOnlyPaths = []string{"/sign-in", "/invite", "/verify"}

// PageConfig configures PageGate.
type PageConfig struct {
	SignInPath  string
	LandingPath string
	// AuthOnlyPaths are served to signed-out users and redirect signed-in users to LandingPath.
	// SignInPath is always treated as auth-only.
	AuthOnlyPaths []string
	// PublicPrefixes bypass the guard entirely.
	PublicPrefixes []string
	Cookie         CookieConfig
	Edge           EdgeHeaders
}

// PageGate returns middleware for page routes. Denied requests are redirected
// to the sign-in page with a returnTo parameter; signed-in users hitting "/" or
// an auth-only page are sent to the landing page. When the landing page is "/"
// itself, "/" is served.
func PageGate(g *Guard, cfg PageConfig) func(http.Handler) http.Handler {
	if cfg.SignInPath == "" {
		cfg.SignInPath = "/sign-in"
	}
	if cfg.LandingPath == "" {
		cfg.LandingPath = "/"
	}
	if cfg.AuthOnlyPaths == nil {
		cfg.AuthOnlyPaths = DefaultAuthOnlyPaths
	}
	if cfg.PublicPrefixes == nil {
		cfg.PublicPrefixes = DefaultPublicPrefixes
	}
	authOnly := append([]string{cfg.SignInPath}, cfg.AuthOnlyPaths...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := r.URL.Path
			if hasAnyPrefix(p, cfg.PublicPrefixes) {
				next.ServeHTTP(w, r)
				return
			}
			d := g.Evaluate(r.Context(), NewHTTPRequest(r, cfg.Edge))
			cfg.Cookie.ForRequest(r).Apply(w, d.Cookie)
			onAuthOnly := matchesAnyPath(p, authOnly)

			if d.Allowed() {
				if onAuthOnly || (p == "/" && cfg.LandingPath != "/") {
					http.Redirect(w, r, cfg.LandingPath, http.StatusSeeOther)
					return
				}
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), d.Identity)))
				return
			}
			if onAuthOnly {
				next.ServeHTTP(w, r)
				return
			}
			target := cfg.SignInPath + "?returnTo=" + url.QueryEscape(r.URL.RequestURI())
			http.Redirect(w, r, target, http.StatusSeeOther)
		})
	}
}

func hasAnyPrefix(p string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// matchesAnyPath reports whether p is one of paths or below one of them.
func matchesAnyPath(p string, paths []string) bool {
	for _, q := range paths {
		if p == q || strings.HasPrefix(p, strings.TrimSuffix(q, "/")+"/") {
			return true
		}
	}
	return false
}
