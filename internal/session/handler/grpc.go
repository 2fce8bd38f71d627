package handler

import (
	"context"
	"errors"
	"log"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"pawplanner/backend/internal/guard"
	"pawplanner/backend/internal/platform/rbac"
	"pawplanner/backend/internal/session/domain"
	"pawplanner/backend/internal/session/service"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "pawplanner.session.v1.SessionService"

// Full method names, for interceptor configuration.
const (
	MethodListSessions  = "/" + ServiceName + "/ListSessions"
	MethodRevokeSession = "/" + ServiceName + "/RevokeSession"
	MethodSignOut       = "/" + ServiceName + "/SignOut"
)

// SessionServiceServer is the server API for SessionService. Messages are
// protobuf well-known types: a StringValue carries the user or session id.
type SessionServiceServer interface {
	ListSessions(context.Context, *wrapperspb.StringValue) (*structpb.ListValue, error)
	RevokeSession(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	SignOut(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
}

// SessionServiceDesc describes SessionService for grpc.Server.RegisterService.
var SessionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SessionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListSessions", Handler: listSessionsHandler},
		{MethodName: "RevokeSession", Handler: revokeSessionHandler},
		{MethodName: "SignOut", Handler: signOutHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pawplanner/session/v1/session.proto",
}

// RegisterSessionServiceServer registers srv with s.
func RegisterSessionServiceServer(s grpc.ServiceRegistrar, srv SessionServiceServer) {
	s.RegisterService(&SessionServiceDesc, srv)
}

// GRPCServer implements SessionServiceServer over a Manager.
type GRPCServer struct {
	mgr    Manager
	cookie guard.CookieConfig
}

// NewGRPCServer returns a SessionService server. cookie is used to clear the
// caller's cookie after SignOut or revoking its own session.
func NewGRPCServer(mgr Manager, cookie guard.CookieConfig) *GRPCServer {
	return &GRPCServer{mgr: mgr, cookie: cookie}
}

// ListSessions returns the sessions of the user in req (the caller when empty)
// as a list of structs with the same fields as the RPC mount.
func (s *GRPCServer) ListSessions(ctx context.Context, req *wrapperspb.StringValue) (*structpb.ListValue, error) {
	actor, err := rbac.RequireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	sessions, err := s.mgr.List(ctx, actor, req.GetValue())
	if err != nil {
		return nil, grpcError("list sessions", err)
	}
	out := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(sessions))}
	for _, sess := range sessions {
		v, err := sessionStruct(sess, actor.SessionID)
		if err != nil {
			return nil, status.Error(codes.Internal, "failed to encode session")
		}
		out.Values = append(out.Values, structpb.NewStructValue(v))
	}
	return out, nil
}

// RevokeSession deletes the session named in req.
func (s *GRPCServer) RevokeSession(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	actor, err := rbac.RequireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "session id required")
	}
	current, err := s.mgr.Revoke(ctx, actor, req.GetValue())
	if err != nil {
		return nil, grpcError("revoke session", err)
	}
	if current {
		s.clearCookie(ctx)
	}
	return &emptypb.Empty{}, nil
}

// SignOut deletes the caller's own session.
func (s *GRPCServer) SignOut(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	actor, err := rbac.RequireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.mgr.Revoke(ctx, actor, actor.SessionID); err != nil && !errors.Is(err, service.ErrNotFound) {
		return nil, grpcError("sign out", err)
	}
	s.clearCookie(ctx)
	return &emptypb.Empty{}, nil
}

func (s *GRPCServer) clearCookie(ctx context.Context) {
	h := s.cookie.Header(guard.CookieMutation{Action: guard.CookieClear})
	if err := grpc.SetHeader(ctx, metadata.Pairs("set-cookie", h)); err != nil {
		log.Printf("session: set-cookie header: %v", err)
	}
}

func grpcError(op string, err error) error {
	switch {
	case errors.Is(err, service.ErrForbidden):
		return status.Error(codes.PermissionDenied, "not allowed")
	case errors.Is(err, service.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	default:
		log.Printf("session: %s: %v", op, err)
		return status.Error(codes.Internal, "failed to "+op)
	}
}

func sessionStruct(s *domain.Session, currentID string) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		"id":           s.ID,
		"userId":       s.UserID,
		"createdAt":    s.CreatedAt.UTC().Format(time.RFC3339),
		"updatedAt":    s.UpdatedAt.UTC().Format(time.RFC3339),
		"expiresAt":    s.ExpiresAt.UTC().Format(time.RFC3339),
		"lastActiveAt": s.LastActiveAt.UTC().Format(time.RFC3339),
		"ipAddress":    s.IPAddress,
		"userAgent":    s.UserAgent,
		"city":         s.City,
		"country":      s.Country,
		"current":      s.ID == currentID,
	})
}

func listSessionsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionServiceServer).ListSessions(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodListSessions}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SessionServiceServer).ListSessions(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func revokeSessionHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionServiceServer).RevokeSession(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodRevokeSession}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SessionServiceServer).RevokeSession(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func signOutHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionServiceServer).SignOut(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodSignOut}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SessionServiceServer).SignOut(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}
