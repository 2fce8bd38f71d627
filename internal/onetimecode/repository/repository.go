package repository

import (
	"context"
	"time"

	"pawplanner/backend/internal/onetimecode/domain"
)

// Repository defines persistence for one-time sign-in codes.
type Repository interface {
	// Replace deletes the user's pending codes of c.Kind and stores c, atomically.
	Replace(ctx context.Context, c *domain.Code) error
	// FindByHash returns the code of kind with the given hash, or nil if none.
	FindByHash(ctx context.Context, kind domain.Kind, hash string) (*domain.Code, error)
	// FindForUser is FindByHash restricted to one user's codes.
	FindForUser(ctx context.Context, kind domain.Kind, userID, hash string) (*domain.Code, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
