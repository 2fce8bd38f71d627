package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"pawplanner/backend/internal/audit"
	"pawplanner/backend/internal/guard"
	healthhandler "pawplanner/backend/internal/health/handler"
	identityhandler "pawplanner/backend/internal/identity/handler"
	"pawplanner/backend/internal/platform/httpx"
	sessionhandler "pawplanner/backend/internal/session/handler"
)

// HTTPDeps holds everything the HTTP front-end mounts.
type HTTPDeps struct {
	Guard  *guard.Guard
	Cookie guard.CookieConfig
	Edge   guard.EdgeHeaders
	// SignInPath and LandingPath drive the page redirects.
	SignInPath  string
	LandingPath string

	Identity *identityhandler.Handler
	Sessions *sessionhandler.HTTPHandler
	Health   *healthhandler.Handler
	// DevOTP serves GET /dev/otp. Nil unless dev OTP is enabled outside production.
	DevOTP http.Handler
	// Pages serves application pages behind the page gate. Nil answers 404.
	Pages http.Handler
}

// NewHTTPHandler builds the chi router:
//   - GET /healthz, GET /readyz                      health
//   - GET /auth/magic-link                           magic-link redemption
//   - GET /dev/otp                                   dev outbox (optional)
//   - POST /api/rpc/{procedure}                      RPC procedures behind RPCGate
//   - everything else                                pages behind PageGate
func NewHTTPHandler(deps HTTPDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(clientIP(deps.Edge))

	if deps.Health != nil {
		r.Get("/healthz", deps.Health.Liveness)
		r.Get("/readyz", deps.Health.Readiness)
	}
	if deps.Identity != nil {
		r.Get("/auth/magic-link", deps.Identity.MagicLink)
	}
	if deps.DevOTP != nil {
		r.Method(http.MethodGet, "/dev/otp", deps.DevOTP)
	}

	var sets []httpx.Procedures
	if deps.Identity != nil {
		sets = append(sets, deps.Identity.Procedures())
	}
	if deps.Sessions != nil {
		sets = append(sets, deps.Sessions.Procedures())
	}
	r.Route("/api/rpc", func(r chi.Router) {
		r.Use(guard.RPCGate(deps.Guard, guard.RPCConfig{
			PublicProcedures: identityhandler.PublicProcedures,
			Cookie:           deps.Cookie,
			Edge:             deps.Edge,
		}))
		r.Handle("/{"+httpx.ProcedureParam+"}", httpx.Merge(sets...))
	})

	pages := deps.Pages
	if pages == nil {
		pages = http.NotFoundHandler()
	}
	r.Group(func(r chi.Router) {
		r.Use(guard.PageGate(deps.Guard, guard.PageConfig{
			SignInPath:  deps.SignInPath,
			LandingPath: deps.LandingPath,
			Cookie:      deps.Cookie,
			Edge:        deps.Edge,
		}))
		r.Handle("/*", pages)
	})
	return r
}

// clientIP puts the request's client IP on the context for the audit logger.
func clientIP(edge guard.EdgeHeaders) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := guard.NewHTTPRequest(r, edge).ClientIP()
			next.ServeHTTP(w, r.WithContext(audit.WithClientIP(r.Context(), ip)))
		})
	}
}
