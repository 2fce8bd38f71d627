// Package devotp keeps the last sign-in code or link sent to each address in memory,
// used only when dev OTP mode is enabled (GET /dev/otp).
package devotp

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Entry kinds.
const (
	KindCode = "verification_code"
	KindLink = "magic_link"
)

// Entry is a delivered one-time credential.
type Entry struct {
	Kind      string
	Value     string
	ExpiresAt time.Time
}

// Store holds the last credential per email for dev-only retrieval. Not used in production.
type Store interface {
	// Put stores e for email, replacing any earlier entry.
	Put(ctx context.Context, email string, e Entry)
	// Get returns the entry for email if present and not expired. Returns ok false if missing or expired.
	Get(ctx context.Context, email string) (Entry, bool)
}

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu   sync.RWMutex
	m    map[string]Entry
	nowF func() time.Time
}

// NewMemoryStore returns a new in-memory dev OTP store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:    make(map[string]Entry),
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

// Put stores e for email. Emails are compared case-insensitively.
func (s *MemoryStore) Put(ctx context.Context, email string, e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key(email)] = e
}

// Get returns the entry for email if present and not expired.
func (s *MemoryStore) Get(ctx context.Context, email string) (Entry, bool) {
	k := key(email)
	s.mu.RLock()
	e, ok := s.m[k]
	s.mu.RUnlock()
	if !ok {
		return Entry{}, false
	}
	if !e.ExpiresAt.After(s.nowF()) {
		s.mu.Lock()
		delete(s.m, k)
		s.mu.Unlock()
		return Entry{}, false
	}
	return e, true
}

func key(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
