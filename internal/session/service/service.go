// Package service implements session management on behalf of a signed-in user:
// listing sessions and revoking one or all of them, subject to the access policy.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"pawplanner/backend/internal/audit"
	"pawplanner/backend/internal/guard"
	"pawplanner/backend/internal/policy/engine"
	"pawplanner/backend/internal/session/domain"
	"pawplanner/backend/internal/session/repository"
	"pawplanner/backend/internal/telemetry"
	telemetrydomain "pawplanner/backend/internal/telemetry/domain"
	userdomain "pawplanner/backend/internal/user/domain"
)

var (
	// ErrForbidden is returned when the policy denies the actor.
	ErrForbidden = errors.New("not allowed to manage these sessions")
	// ErrNotFound is returned when the session or target user does not exist.
	ErrNotFound = errors.New("not found")
)

// UserGetter resolves the owner of the sessions being managed.
type UserGetter interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
}

// Option configures a Service.
type Option func(*Service)

// WithAuditLogger records revocations.
func WithAuditLogger(l audit.AuditLogger) Option {
	return func(s *Service) { s.audit = l }
}

// WithEmitter sends session.revoked events.
func WithEmitter(e telemetry.EventEmitter) Option {
	return func(s *Service) { s.emitter = e }
}

// Service lists and revokes sessions for an authenticated actor.
type Service struct {
	repo    repository.Repository
	users   UserGetter
	authz   engine.Evaluator
	audit   audit.AuditLogger
	emitter telemetry.EventEmitter
}

// NewService returns a Service over repo. authz decides every operation.
func NewService(repo repository.Repository, users UserGetter, authz engine.Evaluator, opts ...Option) *Service {
	s := &Service{repo: repo, users: users, authz: authz}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns the sessions of userID, most recently active first. An empty
// userID means the actor's own sessions.
func (s *Service) List(ctx context.Context, actor *guard.Identity, userID string) ([]*domain.Session, error) {
	target, err := s.target(ctx, actor, userID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, engine.ActionList, actor, target); err != nil {
		return nil, err
	}
	sessions, err := s.repo.ListForUser(ctx, target.ID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// Revoke deletes one session. current reports whether it was the actor's own
// session, in which case the caller also clears the cookie.
func (s *Service) Revoke(ctx context.Context, actor *guard.Identity, sessionID string) (current bool, err error) {
	if sessionID == "" {
		return false, ErrNotFound
	}
	sess, owner, err := s.repo.Find(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("find session: %w", err)
	}
	if sess == nil || owner == nil {
		return false, ErrNotFound
	}
	if err := s.authorize(ctx, engine.ActionDelete, actor, principalOf(owner)); err != nil {
		return false, err
	}
	if err := s.repo.Delete(ctx, sessionID); err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	s.record(ctx, actor, owner, audit.ActionSessionRevoked, audit.ResourceSession, sessionID)
	return sessionID == actor.SessionID, nil
}

// RevokeAll deletes every session of userID. current reports whether the
// actor's own session was among them.
func (s *Service) RevokeAll(ctx context.Context, actor *guard.Identity, userID string) (revoked int64, current bool, err error) {
	target, err := s.target(ctx, actor, userID)
	if err != nil {
		return 0, false, err
	}
	if err := s.authorize(ctx, engine.ActionRevokeAll, actor, target); err != nil {
		return 0, false, err
	}
	n, err := s.repo.DeleteAllForUser(ctx, target.ID)
	if err != nil {
		return 0, false, fmt.Errorf("delete sessions: %w", err)
	}
	s.record(ctx, actor, &userdomain.User{ID: target.ID, OrgID: target.OrgID}, audit.ActionSessionsRevoked, audit.ResourceUser, "")
	return n, target.ID == actor.UserID(), nil
}

func (s *Service) target(ctx context.Context, actor *guard.Identity, userID string) (engine.Principal, error) {
	if userID == "" || userID == actor.UserID() {
		return engine.Principal{ID: actor.UserID(), OrgID: actor.OrgID(), Role: actor.User.Role}, nil
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return engine.Principal{}, fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return engine.Principal{}, ErrNotFound
	}
	return principalOf(u), nil
}

func (s *Service) authorize(ctx context.Context, action string, actor *guard.Identity, target engine.Principal) error {
	allowed, err := s.authz.AuthorizeSessionAccess(ctx, engine.SessionAccessInput{
		Action: action,
		Actor:  engine.Principal{ID: actor.UserID(), OrgID: actor.OrgID(), Role: actor.User.Role},
		Target: target,
	})
	if err != nil {
		log.Printf("session: policy evaluation failed for %s by %s: %v", action, actor.UserID(), err)
		return ErrForbidden
	}
	if !allowed {
		return ErrForbidden
	}
	return nil
}

func (s *Service) record(ctx context.Context, actor *guard.Identity, owner *userdomain.User, action, resource, sessionID string) {
	if s.audit != nil {
		s.audit.LogEvent(ctx, owner.OrgID, actor.UserID(), action, resource, `{"target_user":"`+owner.ID+`"}`)
	}
	if s.emitter != nil {
		telemetry.EmitAsync(s.emitter, &telemetrydomain.AuthEvent{
			Type:      telemetrydomain.EventSessionRevoked,
			OrgID:     owner.OrgID,
			UserID:    owner.ID,
			SessionID: sessionID,
			Reason:    action,
			Source:    "session",
			CreatedAt: time.Now().UTC(),
		})
	}
}

func principalOf(u *userdomain.User) engine.Principal {
	return engine.Principal{ID: u.ID, OrgID: u.OrgID, Role: string(u.Role)}
}
