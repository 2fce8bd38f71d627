package interceptors

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"pawplanner/backend/internal/guard"
)

// SessionUnary returns a unary server interceptor that runs the session guard on the
// cookie carried in "cookie" metadata (browsers via grpc-web send it unchanged).
// Rotated or cleared cookies are returned in a "set-cookie" response header.
// publicMethods is the set of full method names served without a session (e.g. health checks).
func SessionUnary(g *guard.Guard, cookie guard.CookieConfig, edge guard.EdgeHeaders, publicMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if publicMethods[info.FullMethod] {
			return handler(ctx, req)
		}
		md, _ := metadata.FromIncomingContext(ctx)
		d := g.Evaluate(ctx, &metadataRequest{ctx: ctx, md: md, edge: edge})
		if h := cookie.Header(d.Cookie); h != "" {
			if err := grpc.SetHeader(ctx, metadata.Pairs("set-cookie", h)); err != nil {
				log.Printf("session: set-cookie header: %v", err)
			}
		}
		if !d.Allowed() {
			return nil, status.Error(codes.Unauthenticated, "missing or invalid session")
		}
		return handler(guard.WithIdentity(ctx, d.Identity), req)
	}
}

// metadataRequest adapts incoming gRPC metadata to guard.Request.
type metadataRequest struct {
	ctx  context.Context
	md   metadata.MD
	edge guard.EdgeHeaders
}

func (m *metadataRequest) Cookie(name string) (string, bool) {
	for _, line := range m.md.Get("cookie") {
		cookies, err := http.ParseCookie(line)
		if err != nil {
			continue
		}
		for _, c := range cookies {
			if c.Name == name {
				return c.Value, true
			}
		}
	}
	return "", false
}

func (m *metadataRequest) Header(name string) string {
	if vals := m.md.Get(name); len(vals) > 0 {
		return vals[0]
	}
	return ""
}

func (m *metadataRequest) ClientIP() string {
	return ClientIP(m.ctx, m.edge.TrustedProxies)
}

func (m *metadataRequest) Geo() guard.Geo {
	var g guard.Geo
	if m.edge.City != "" {
		g.City = unescape(m.Header(m.edge.City))
	}
	if m.edge.Country != "" {
		g.Country = unescape(m.Header(m.edge.Country))
	}
	return g
}

func unescape(v string) string {
	v = strings.TrimSpace(v)
	if u, err := url.QueryUnescape(v); err == nil {
		return u
	}
	return v
}
