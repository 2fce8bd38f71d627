// Package rbac holds the authentication checks shared by the gRPC handlers.
package rbac

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"pawplanner/backend/internal/guard"
)

// RequireIdentity returns the caller's identity as set by the session interceptor.
// Returns a gRPC Unauthenticated error when the call carries none.
func RequireIdentity(ctx context.Context) (*guard.Identity, error) {
	id, ok := guard.IdentityFrom(ctx)
	if !ok || id == nil || id.SessionID == "" || id.UserID() == "" {
		return nil, status.Error(codes.Unauthenticated, "session required")
	}
	return id, nil
}
