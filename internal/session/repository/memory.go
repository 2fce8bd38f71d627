package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"pawplanner/backend/internal/session/domain"
	userdomain "pawplanner/backend/internal/user/domain"
)

// MemoryRepository is an in-memory Repository with the same semantics as the
// Postgres one, including the cascade from users to sessions. Used by tests and
// local tooling.
type MemoryRepository struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	users    map[string]userdomain.User
}

// NewMemoryRepository returns an empty in-memory session repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		sessions: make(map[string]domain.Session),
		users:    make(map[string]userdomain.User),
	}
}

// PutUser inserts or replaces a user visible to Find.
func (r *MemoryRepository) PutUser(u *userdomain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = *u
}

// DeleteUser removes a user and, like the foreign key, all of its sessions.
func (r *MemoryRepository) DeleteUser(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
	for sid, s := range r.sessions {
		if s.UserID == id {
			delete(r.sessions, sid)
		}
	}
}

func (r *MemoryRepository) Create(ctx context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; ok {
		return ErrConflict
	}
	r.sessions[s.ID] = *s
	return nil
}

func (r *MemoryRepository) Find(ctx context.Context, id string) (*domain.Session, *userdomain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil, nil
	}
	u, ok := r.users[s.UserID]
	if !ok {
		return &s, nil, nil
	}
	return &s, &u, nil
}

func (r *MemoryRepository) Touch(ctx context.Context, id string, at time.Time, upd domain.FingerprintUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if at.After(s.LastActiveAt) {
		s.LastActiveAt = at
	}
	if at.After(s.UpdatedAt) {
		s.UpdatedAt = at
	}
	upd.Apply(&s.Fingerprint)
	r.sessions[id] = s
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func (r *MemoryRepository) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.sessions {
		if s.UserID == userID {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) ListForUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Session, 0)
	for _, s := range r.sessions {
		if s.UserID == userID {
			s := s
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastActiveAt.Equal(out[j].LastActiveAt) {
			return out[i].LastActiveAt.After(out[j].LastActiveAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MemoryRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.sessions {
		if s.Expired(now) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}
