package repository

import (
	"context"
	"errors"
	"time"

	"pawplanner/backend/internal/session/domain"
	userdomain "pawplanner/backend/internal/user/domain"
)

var (
	// ErrConflict is returned by Create when a session with the same id already exists.
	ErrConflict = errors.New("session id already exists")
	// ErrNotFound is returned by Touch when the session no longer exists.
	ErrNotFound = errors.New("session not found")
)

// Repository defines persistence for sessions. It is the only writer of session records.
type Repository interface {
	Create(ctx context.Context, s *domain.Session) error
	// Find returns the session joined with its user. The session is nil when no
	// record has id; the user is nil when the owning user row is gone.
	Find(ctx context.Context, id string) (*domain.Session, *userdomain.User, error)
	// Touch advances last-active and updated-at to at (never backwards) and
	// writes the fingerprint fields present in upd. Repeating a touch is harmless.
	Touch(ctx context.Context, id string, at time.Time, upd domain.FingerprintUpdate) error
	// Delete removes the session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)
	// ListForUser returns the user's sessions, most recently active first.
	ListForUser(ctx context.Context, userID string) ([]*domain.Session, error)
	// DeleteExpired removes sessions whose expiry is at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
