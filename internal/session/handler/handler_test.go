package handler

import (
	"context"
	"time"

	"pawplanner/backend/internal/guard"
	"pawplanner/backend/internal/security"
	"pawplanner/backend/internal/session/domain"
	"pawplanner/backend/internal/session/service"
)

// fakeManager implements Manager with canned results.
type fakeManager struct {
	sessions []*domain.Session
	err      error

	gotUserID    string
	gotSessionID string
	revoked      int64
}

func (f *fakeManager) List(ctx context.Context, actor *guard.Identity, userID string) ([]*domain.Session, error) {
	f.gotUserID = userID
	return f.sessions, f.err
}

func (f *fakeManager) Revoke(ctx context.Context, actor *guard.Identity, sessionID string) (bool, error) {
	f.gotSessionID = sessionID
	if f.err != nil {
		return false, f.err
	}
	return sessionID == actor.SessionID, nil
}

func (f *fakeManager) RevokeAll(ctx context.Context, actor *guard.Identity, userID string) (int64, bool, error) {
	f.gotUserID = userID
	if f.err != nil {
		return 0, false, f.err
	}
	return f.revoked, userID == actor.UserID(), nil
}

var (
	_ Manager = (*fakeManager)(nil)
	_ Manager = (*service.Service)(nil)
)

var listedAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func testSessions() []*domain.Session {
	return []*domain.Session{
		{ID: "sess-1", UserID: "user-1", CreatedAt: listedAt, UpdatedAt: listedAt, ExpiresAt: listedAt.Add(time.Hour), LastActiveAt: listedAt,
			Fingerprint: domain.Fingerprint{IPAddress: "203.0.113.7", UserAgent: "Mozilla/5.0", City: "Lisbon", Country: "PT"}},
		{ID: "sess-2", UserID: "user-1", CreatedAt: listedAt, UpdatedAt: listedAt, ExpiresAt: listedAt.Add(time.Hour), LastActiveAt: listedAt.Add(-time.Hour)},
	}
}

func actorContext() context.Context {
	return guard.WithIdentity(context.Background(), &guard.Identity{
		SessionID: "sess-1",
		User:      security.UserSnapshot{ID: "user-1", OrgID: "org-1", Role: "member"},
	})
}
