package repository

import (
	"context"
	"time"

	"pawplanner/backend/internal/user/domain"
)

// Repository defines persistence for users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetByEmail looks up by normalized email. Returns nil, nil when no user has it.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	ListByOrg(ctx context.Context, orgID string) ([]*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	// SetBan sets banned_at and banned_until. A nil bannedAt clears the ban.
	SetBan(ctx context.Context, userID string, bannedAt, bannedUntil *time.Time) error
}
