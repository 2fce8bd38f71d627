package repository

import (
	"context"
	"sync"
	"time"

	"pawplanner/backend/internal/onetimecode/domain"
)

// MemoryRepository is an in-memory Repository for tests and local tooling.
type MemoryRepository struct {
	mu    sync.Mutex
	codes map[string]domain.Code
}

// NewMemoryRepository returns an empty in-memory code repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{codes: make(map[string]domain.Code)}
}

func (r *MemoryRepository) Replace(ctx context.Context, c *domain.Code) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, existing := range r.codes {
		if existing.UserID == c.UserID && existing.Kind == c.Kind {
			delete(r.codes, id)
		}
	}
	r.codes[c.ID] = *c
	return nil
}

func (r *MemoryRepository) FindByHash(ctx context.Context, kind domain.Kind, hash string) (*domain.Code, error) {
	return r.find(func(c domain.Code) bool { return c.Kind == kind && c.CodeHash == hash })
}

func (r *MemoryRepository) FindForUser(ctx context.Context, kind domain.Kind, userID, hash string) (*domain.Code, error) {
	return r.find(func(c domain.Code) bool { return c.Kind == kind && c.UserID == userID && c.CodeHash == hash })
}

func (r *MemoryRepository) find(match func(domain.Code) bool) (*domain.Code, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.codes {
		if match(c) {
			out := c
			return &out, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.codes, id)
	return nil
}

func (r *MemoryRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, c := range r.codes {
		if c.Expired(now) {
			delete(r.codes, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored codes.
func (r *MemoryRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.codes)
}
