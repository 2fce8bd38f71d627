package interceptors

import (
	"context"
	"net/netip"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"

	"pawplanner/backend/internal/audit"
	"pawplanner/backend/internal/guard"
)

// AuditUnary returns a unary server interceptor that records an audit log entry after each
// state-changing RPC. skipMethods is the set of full method names to not audit (e.g. health checks).
// Logging is best-effort. Only writes when the call carries a session identity.
func AuditUnary(logger audit.AuditLogger, skipMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		if logger == nil || skipMethods[info.FullMethod] {
			return resp, err
		}
		id, ok := guard.IdentityFrom(ctx)
		if !ok {
			return resp, err
		}
		ar := audit.ParseFullMethod(info.FullMethod)
		if ar.IsReadOnly() {
			return resp, err
		}
		meta := `{"status":"ok"}`
		if err != nil {
			meta = `{"status":"error"}`
		}
		logger.LogEvent(ctx, id.OrgID(), id.UserID(), ar.Action, ar.Resource, meta)
		return resp, err
	}
}

// ClientIP returns the client IP of a gRPC call: the peer address, or the
// x-forwarded-for / x-real-ip metadata when the peer is in trusted (see
// guard.ResolveClientIP). Returns "unknown" without a peer.
func ClientIP(ctx context.Context, trusted []netip.Prefix) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "unknown"
	}
	var forwardedFor []string
	var realIP string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		forwardedFor = md.Get("x-forwarded-for")
		if vals := md.Get("x-real-ip"); len(vals) > 0 {
			realIP = vals[0]
		}
	}
	return guard.ResolveClientIP(p.Addr.String(), forwardedFor, realIP, trusted)
}

// ClientIPResolver returns ClientIP bound to trusted, for audit.NewLogger.
func ClientIPResolver(trusted []netip.Prefix) func(context.Context) string {
	return func(ctx context.Context) string {
		return ClientIP(ctx, trusted)
	}
}
