package guard

import (
	"net/http"
	"path"

	"pawplanner/backend/internal/platform/httpx"
)

// RPCConfig configures RPCGate.
type RPCConfig struct {
	// PublicProcedures are procedure names (the last path segment) served without a session.
	PublicProcedures map[string]bool
	Cookie           CookieConfig
	Edge             EdgeHeaders
}

// RPCGate returns middleware for the RPC mount. Denied requests get 401 with
// code UNAUTHORIZED; the reason is not disclosed.
func RPCGate(g *Guard, cfg RPCConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.PublicProcedures[path.Base(r.URL.Path)] {
				next.ServeHTTP(w, r)
				return
			}
			d := g.Evaluate(r.Context(), NewHTTPRequest(r, cfg.Edge))
			cfg.Cookie.ForRequest(r).Apply(w, d.Cookie)
			if !d.Allowed() {
				httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), d.Identity)))
		})
	}
}
