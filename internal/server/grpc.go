package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"pawplanner/backend/internal/audit"
	"pawplanner/backend/internal/guard"
	"pawplanner/backend/internal/server/interceptors"
	sessionhandler "pawplanner/backend/internal/session/handler"
)

// Health service methods, served without a session.
var healthMethods = map[string]bool{
	"/grpc.health.v1.Health/Check": true,
	"/grpc.health.v1.Health/List":  true,
	"/grpc.health.v1.Health/Watch": true,
}

// GRPCDeps holds the gRPC services and what the interceptors need.
type GRPCDeps struct {
	Guard  *guard.Guard
	Cookie guard.CookieConfig
	Edge   guard.EdgeHeaders
	// Sessions is the SessionService implementation. If nil, SessionService is not registered.
	Sessions sessionhandler.SessionServiceServer
	// Health is the standard health server. If nil, grpc.health.v1.Health is not registered.
	Health *health.Server
	// AuditLogger records state-changing calls. If nil, no calls are audited.
	AuditLogger audit.AuditLogger
}

// NewGRPCServer returns a gRPC server with OTel stats, the session interceptor
// and the audit interceptor, with every service in deps registered.
func NewGRPCServer(deps GRPCDeps, opts ...grpc.ServerOption) *grpc.Server {
	chain := []grpc.UnaryServerInterceptor{
		interceptors.SessionUnary(deps.Guard, deps.Cookie, deps.Edge, healthMethods),
	}
	if deps.AuditLogger != nil {
		chain = append(chain, interceptors.AuditUnary(deps.AuditLogger, healthMethods))
	}
	opts = append([]grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(chain...),
	}, opts...)
	s := grpc.NewServer(opts...)
	RegisterServices(s, deps)
	return s
}

// RegisterServices registers the services present in deps with s.
//
// Service → handler mapping:
//   - pawplanner.session.v1.SessionService → internal/session/handler
//   - grpc.health.v1.Health                 → google.golang.org/grpc/health (status kept by internal/health/handler)
func RegisterServices(s grpc.ServiceRegistrar, deps GRPCDeps) {
	if deps.Sessions != nil {
		sessionhandler.RegisterSessionServiceServer(s, deps.Sessions)
	}
	if deps.Health != nil {
		healthpb.RegisterHealthServer(s, deps.Health)
	}
}
