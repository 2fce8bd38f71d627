// Package guard decides, for every request, whether its session cookie is
// still good. Young tokens are trusted on their signature; older ones are
// checked against the session store and re-issued.
package guard

import (
	"context"
	"errors"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"pawplanner/backend/internal/platform/ban"
	"pawplanner/backend/internal/security"
	"pawplanner/backend/internal/session/domain"
	"pawplanner/backend/internal/session/repository"
	"pawplanner/backend/internal/session/revalidation"
	"pawplanner/backend/internal/telemetry"
	telemetrydomain "pawplanner/backend/internal/telemetry/domain"
	userdomain "pawplanner/backend/internal/user/domain"
)

const instrumentationName = "pawplanner/backend/internal/guard"

// DefaultStoreTimeout bounds each store call on the slow path when Config.StoreTimeout is unset.
const DefaultStoreTimeout = 2 * time.Second

// Codec signs and verifies session tokens.
type Codec interface {
	Sign(payload security.SessionPayload) (string, error)
	Verify(token string) (*security.SessionClaims, error)
}

// Store is the part of the session repository the guard uses.
type Store interface {
	Find(ctx context.Context, id string) (*domain.Session, *userdomain.User, error)
	Touch(ctx context.Context, id string, at time.Time, upd domain.FingerprintUpdate) error
	Delete(ctx context.Context, id string) error
}

// Config holds the guard settings.
type Config struct {
	CookieName      string
	FreshnessWindow time.Duration
	StoreTimeout    time.Duration
}

// Option configures a Guard.
type Option func(*Guard)

// WithClock sets the clock used to age tokens and stamp activity.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		if now != nil {
			g.now = now
		}
	}
}

// WithEmitter sends auth events for denials, rotations and slow-path revocations.
func WithEmitter(e telemetry.EventEmitter) Option {
	return func(g *Guard) { g.emitter = e }
}

// Guard evaluates requests against their session cookie. It holds no
// per-session state and is safe for concurrent use.
type Guard struct {
	codec   Codec
	store   Store
	cfg     Config
	now     func() time.Time
	emitter telemetry.EventEmitter

	tracer    trace.Tracer
	decisions metric.Int64Counter
}

// New returns a Guard. A zero FreshnessWindow uses revalidation.DefaultFreshnessWindow.
func New(codec Codec, store Store, cfg Config, opts ...Option) *Guard {
	if cfg.FreshnessWindow <= 0 {
		cfg.FreshnessWindow = revalidation.DefaultFreshnessWindow
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultStoreTimeout
	}
	g := &Guard{
		codec:  codec,
		store:  store,
		cfg:    cfg,
		now:    time.Now,
		tracer: otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(g)
	}
	counter, err := otel.Meter(instrumentationName).Int64Counter(
		"session_guard_decisions",
		metric.WithDescription("Session guard decisions by path, outcome and reason."),
	)
	if err != nil {
		log.Printf("guard: create decisions counter: %v", err)
	}
	g.decisions = counter
	return g
}

// CookieName returns the name of the session cookie.
func (g *Guard) CookieName() string {
	return g.cfg.CookieName
}

// Evaluate returns the decision for req.
func (g *Guard) Evaluate(ctx context.Context, req Request) Decision {
	d, claims := g.evaluate(ctx, req)
	g.record(ctx, req, d, claims)
	return d
}

func (g *Guard) evaluate(ctx context.Context, req Request) (Decision, *security.SessionClaims) {
	token, ok := req.Cookie(g.cfg.CookieName)
	if !ok || token == "" {
		return deny(ReasonNoSession, revalidation.FastPath, CookieKeep), nil
	}
	claims, err := g.codec.Verify(token)
	if err != nil {
		return deny(ReasonNoSession, revalidation.FastPath, CookieClear), nil
	}

	now := g.now()
	if revalidation.Decide(claims.IssuedAtTime(), now, g.cfg.FreshnessWindow) == revalidation.FastPath {
		return Decision{
			Outcome:  Allow,
			Path:     revalidation.FastPath,
			Identity: &Identity{SessionID: claims.SessionID, User: claims.User},
		}, claims
	}
	return g.slowPath(ctx, req, claims, now), claims
}

func (g *Guard) slowPath(ctx context.Context, req Request, claims *security.SessionClaims, now time.Time) Decision {
	ctx, span := g.tracer.Start(ctx, "guard.slow_path")
	defer span.End()

	findCtx, cancel := context.WithTimeout(ctx, g.cfg.StoreTimeout)
	sess, user, err := g.store.Find(findCtx, claims.SessionID)
	cancel()
	if err != nil {
		log.Printf("guard: find session: %v", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "find session")
		return deny(ReasonStoreUnavailable, revalidation.SlowPath, CookieKeep)
	}
	if sess == nil || sess.UserID != claims.User.ID {
		return deny(ReasonSessionRevoked, revalidation.SlowPath, CookieClear)
	}
	if sess.Expired(now) {
		g.deleteSession(ctx, sess.ID)
		return deny(ReasonSessionExpired, revalidation.SlowPath, CookieClear)
	}
	if user == nil {
		g.deleteSession(ctx, sess.ID)
		return deny(ReasonSessionRevoked, revalidation.SlowPath, CookieClear)
	}
	if ban.IsBanned(user, now) {
		g.deleteSession(ctx, sess.ID)
		return deny(ReasonUserBanned, revalidation.SlowPath, CookieClear)
	}

	observed := FingerprintOf(req)
	touchCtx, cancel := context.WithTimeout(ctx, g.cfg.StoreTimeout)
	err = g.store.Touch(touchCtx, sess.ID, now, domain.DiffFingerprint(sess.Fingerprint, observed))
	cancel()
	if errors.Is(err, repository.ErrNotFound) {
		return deny(ReasonSessionRevoked, revalidation.SlowPath, CookieClear)
	}
	if err != nil {
		log.Printf("guard: touch session: %v", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "touch session")
		return deny(ReasonStoreUnavailable, revalidation.SlowPath, CookieKeep)
	}

	snapshot := security.SnapshotOf(user)
	token, err := g.codec.Sign(security.SessionPayload{SessionID: sess.ID, User: snapshot})
	if err != nil {
		log.Printf("guard: sign session token: %v", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "sign token")
		return deny(ReasonStoreUnavailable, revalidation.SlowPath, CookieKeep)
	}
	return Decision{
		Outcome:  Allow,
		Path:     revalidation.SlowPath,
		Cookie:   CookieMutation{Action: CookieSet, Value: token},
		Identity: &Identity{SessionID: sess.ID, User: snapshot},
	}
}

// deleteSession removes a session that can no longer be used. A failure leaves
// the record for the sweeper; the request is denied either way.
func (g *Guard) deleteSession(ctx context.Context, id string) {
	delCtx, cancel := context.WithTimeout(ctx, g.cfg.StoreTimeout)
	defer cancel()
	if err := g.store.Delete(delCtx, id); err != nil {
		log.Printf("guard: delete session: %v", err)
	}
}

func (g *Guard) record(ctx context.Context, req Request, d Decision, claims *security.SessionClaims) {
	if g.decisions != nil {
		g.decisions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("path", d.Path.String()),
			attribute.String("outcome", d.Outcome.String()),
			attribute.String("reason", string(d.Reason)),
		))
	}
	if g.emitter == nil {
		return
	}
	var ev *telemetrydomain.AuthEvent
	switch {
	case d.Allowed() && d.Cookie.Action == CookieSet:
		ev = &telemetrydomain.AuthEvent{Type: telemetrydomain.EventSessionRotated}
	case !d.Allowed() && d.Reason != ReasonNoSession:
		ev = &telemetrydomain.AuthEvent{Type: telemetrydomain.EventSessionDenied, Reason: string(d.Reason)}
	default:
		return
	}
	ev.Source = "guard"
	ev.IP = req.ClientIP()
	if claims != nil {
		ev.UserID = claims.User.ID
		ev.OrgID = claims.User.OrgID
		ev.SessionID = claims.SessionID
	}
	telemetry.EmitAsync(g.emitter, ev)
}
