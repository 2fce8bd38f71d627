// Package service issues sessions: it sends one-time sign-in credentials and
// exchanges them for a session record and a signed token.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"pawplanner/backend/internal/audit"
	"pawplanner/backend/internal/guard"
	"pawplanner/backend/internal/notify"
	codedomain "pawplanner/backend/internal/onetimecode/domain"
	coderepo "pawplanner/backend/internal/onetimecode/repository"
	"pawplanner/backend/internal/platform/ban"
	"pawplanner/backend/internal/platform/ratelimit"
	"pawplanner/backend/internal/security"
	sessiondomain "pawplanner/backend/internal/session/domain"
	sessionrepo "pawplanner/backend/internal/session/repository"
	"pawplanner/backend/internal/telemetry"
	telemetrydomain "pawplanner/backend/internal/telemetry/domain"
	userdomain "pawplanner/backend/internal/user/domain"
)

var (
	// ErrNoUserFound is returned when no user has the requested email.
	ErrNoUserFound = errors.New("no user found for email")
	// ErrInvalidEmail is returned when the email is empty or not an address.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrCodeNotFound is returned when no pending code matches, or its user is gone or banned.
	ErrCodeNotFound = errors.New("code not found")
	// ErrCodeExpired is returned when the matching code is past its expiry.
	ErrCodeExpired = errors.New("code expired")
	// ErrSessionConflict is returned when a freshly generated session id collided twice.
	ErrSessionConflict = errors.New("could not allocate a unique session id")
	// ErrTooManyAttempts is returned while an email or client address is locked
	// out after repeated wrong verification codes.
	ErrTooManyAttempts = errors.New("too many failed code attempts")
)

// LockedOutError carries how long a locked-out caller must wait. It matches ErrTooManyAttempts.
type LockedOutError struct {
	RetryAfter time.Duration
}

func (e *LockedOutError) Error() string {
	return fmt.Sprintf("%v; retry after %v", ErrTooManyAttempts, e.RetryAfter)
}

func (e *LockedOutError) Is(target error) bool { return target == ErrTooManyAttempts }

// LoginResult is a newly created session and the token for its cookie.
type LoginResult struct {
	Token   string
	Session *sessiondomain.Session
	User    *userdomain.User
}

// UserRepo is the minimal user lookup needed by LoginService.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
}

// SessionRepo is the minimal session persistence needed by LoginService.
type SessionRepo interface {
	Create(ctx context.Context, s *sessiondomain.Session) error
	Delete(ctx context.Context, id string) error
}

// Signer issues session tokens.
type Signer interface {
	Sign(payload security.SessionPayload) (string, error)
}

// Config holds the issuance parameters.
type Config struct {
	// AppBaseURL is the public origin magic links point at.
	AppBaseURL string
	SessionTTL time.Duration
	// MagicLinkTTL and CodeTTL bound how long a sent credential can be redeemed.
	MagicLinkTTL time.Duration
	CodeTTL      time.Duration
	// TestAccountEmail names an account whose codes survive redemption.
	TestAccountEmail string
}

// Option configures a LoginService.
type Option func(*LoginService)

// WithClock sets the clock used for code and session timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *LoginService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithAuditLogger records login and sign-out events.
func WithAuditLogger(l audit.AuditLogger) Option {
	return func(s *LoginService) { s.audit = l }
}

// WithEmitter sends auth telemetry events.
func WithEmitter(e telemetry.EventEmitter) Option {
	return func(s *LoginService) { s.emitter = e }
}

// WithSessionIDs overrides session id generation.
func WithSessionIDs(gen func() (string, error)) Option {
	return func(s *LoginService) {
		if gen != nil {
			s.newSessionID = gen
		}
	}
}

// WithAttemptLimiters replaces the verification-code limiters keyed by email and by client IP.
func WithAttemptLimiters(byEmail, byIP *ratelimit.Limiter) Option {
	return func(s *LoginService) {
		s.byEmail, s.byIP = byEmail, byIP
	}
}

// LoginService sends sign-in credentials and turns redeemed ones into sessions.
type LoginService struct {
	users    UserRepo
	sessions SessionRepo
	codes    coderepo.Repository
	signer   Signer
	sender   notify.Sender
	cfg      Config

	audit        audit.AuditLogger
	emitter      telemetry.EventEmitter
	now          func() time.Time
	newSessionID func() (string, error)
	byEmail      *ratelimit.Limiter
	byIP         *ratelimit.Limiter
}

// NewLoginService returns a LoginService. Zero TTLs in cfg fall back to 15m for
// magic links, 10m for codes and 720h for sessions.
func NewLoginService(users UserRepo, sessions SessionRepo, codes coderepo.Repository, signer Signer, sender notify.Sender, cfg Config, opts ...Option) *LoginService {
	if cfg.MagicLinkTTL <= 0 {
		cfg.MagicLinkTTL = 15 * time.Minute
	}
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = 10 * time.Minute
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 720 * time.Hour
	}
	s := &LoginService{
		users:        users,
		sessions:     sessions,
		codes:        codes,
		signer:       signer,
		sender:       sender,
		cfg:          cfg,
		now:          time.Now,
		newSessionID: security.NewSessionID,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.byEmail == nil {
		s.byEmail = ratelimit.New(ratelimit.PerEmail, s.now)
	}
	if s.byIP == nil {
		s.byIP = ratelimit.New(ratelimit.PerIP, s.now)
	}
	return s
}

// SessionTTL returns the lifetime of issued sessions; callers use it as the cookie max-age.
func (s *LoginService) SessionTTL() time.Duration {
	return s.cfg.SessionTTL
}

// SendMagicLink emails a single-use sign-in link to the user with email.
func (s *LoginService) SendMagicLink(ctx context.Context, email string) error {
	user, err := s.lookupRecipient(ctx, email)
	if err != nil {
		return err
	}
	token, err := security.GenerateLinkToken()
	if err != nil {
		return fmt.Errorf("generate link token: %w", err)
	}
	if err := s.storeCode(ctx, user, codedomain.KindMagicLink, token, s.cfg.MagicLinkTTL); err != nil {
		return err
	}
	link := strings.TrimSuffix(s.cfg.AppBaseURL, "/") + "/auth/magic-link?token=" + url.QueryEscape(token)
	if err := s.sender.SendMagicLink(ctx, user.Email, link, s.cfg.MagicLinkTTL); err != nil {
		return fmt.Errorf("send magic link: %w", err)
	}
	s.emit(&telemetrydomain.AuthEvent{Type: telemetrydomain.EventCodeSent, OrgID: user.OrgID, UserID: user.ID, Reason: string(codedomain.KindMagicLink)})
	return nil
}

// SendVerificationCode emails a 6-digit sign-in code to the user with email.
func (s *LoginService) SendVerificationCode(ctx context.Context, email string) error {
	user, err := s.lookupRecipient(ctx, email)
	if err != nil {
		return err
	}
	code, err := security.GenerateVerificationCode()
	if err != nil {
		return fmt.Errorf("generate verification code: %w", err)
	}
	if err := s.storeCode(ctx, user, codedomain.KindVerificationCode, code, s.cfg.CodeTTL); err != nil {
		return err
	}
	if err := s.sender.SendVerificationCode(ctx, user.Email, code, s.cfg.CodeTTL); err != nil {
		return fmt.Errorf("send verification code: %w", err)
	}
	s.emit(&telemetrydomain.AuthEvent{Type: telemetrydomain.EventCodeSent, OrgID: user.OrgID, UserID: user.ID, Reason: string(codedomain.KindVerificationCode)})
	return nil
}

// ExchangeMagicLink redeems a magic-link token and creates a session recorded with fp.
func (s *LoginService) ExchangeMagicLink(ctx context.Context, token string, fp sessiondomain.Fingerprint) (*LoginResult, error) {
	if token == "" {
		return nil, s.loginFailed(ctx, nil, fp, ErrCodeNotFound)
	}
	hash := security.HashOneTimeCode(token)
	code, err := s.codes.FindByHash(ctx, codedomain.KindMagicLink, hash)
	if err != nil {
		return nil, fmt.Errorf("find magic link: %w", err)
	}
	if code == nil || !security.OneTimeCodeEqual(token, code.CodeHash) {
		return nil, s.loginFailed(ctx, nil, fp, ErrCodeNotFound)
	}
	user, err := s.users.GetByID(ctx, code.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return s.redeem(ctx, code, user, fp)
}

// ValidateVerificationCode redeems the code sent to email and creates a session recorded with fp.
// The lookup is scoped to the user so a code only works with the address it was sent to.
// Wrong or expired codes count against both email and fp.IPAddress; once either
// is locked out every attempt fails with a *LockedOutError until the lockout ends.
func (s *LoginService) ValidateVerificationCode(ctx context.Context, email, code string, fp sessiondomain.Fingerprint) (*LoginResult, error) {
	email = userdomain.NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if blocked, wait := s.lockedOut(email, fp.IPAddress); blocked {
		log.Printf("identity: code attempts locked out for %v (ip %s)", wait.Round(time.Second), fp.IPAddress)
		return nil, &LockedOutError{RetryAfter: wait}
	}
	res, err := s.validateCode(ctx, email, code, fp)
	switch {
	case err == nil:
		s.byEmail.RecordSuccess(email)
	case errors.Is(err, ErrCodeNotFound) || errors.Is(err, ErrCodeExpired):
		s.byEmail.RecordFailure(email)
		s.byIP.RecordFailure(fp.IPAddress)
	}
	return res, err
}

func (s *LoginService) lockedOut(email, ip string) (bool, time.Duration) {
	emailBlocked, emailWait := s.byEmail.Check(email)
	ipBlocked, ipWait := s.byIP.Check(ip)
	if ipWait > emailWait {
		emailWait = ipWait
	}
	return emailBlocked || ipBlocked, emailWait
}

func (s *LoginService) validateCode(ctx context.Context, email, code string, fp sessiondomain.Fingerprint) (*LoginResult, error) {
	if email == "" || code == "" {
		return nil, s.loginFailed(ctx, nil, fp, ErrCodeNotFound)
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, s.loginFailed(ctx, nil, fp, ErrCodeNotFound)
	}
	stored, err := s.codes.FindForUser(ctx, codedomain.KindVerificationCode, user.ID, security.HashOneTimeCode(code))
	if err != nil {
		return nil, fmt.Errorf("find verification code: %w", err)
	}
	if stored == nil || !security.OneTimeCodeEqual(code, stored.CodeHash) {
		return nil, s.loginFailed(ctx, user, fp, ErrCodeNotFound)
	}
	return s.redeem(ctx, stored, user, fp)
}

// SignOut deletes the session. The caller clears the cookie.
func (s *LoginService) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	var orgID, userID string
	if id, ok := guard.IdentityFrom(ctx); ok && id.SessionID == sessionID {
		orgID, userID = id.OrgID(), id.UserID()
	}
	if s.audit != nil {
		s.audit.LogEvent(ctx, orgID, userID, audit.ActionLogout, audit.ResourceSession, "")
	}
	s.emit(&telemetrydomain.AuthEvent{Type: telemetrydomain.EventSignedOut, OrgID: orgID, UserID: userID, SessionID: sessionID})
	return nil
}

// redeem consumes code (unless it belongs to the test account) and, when the
// code is live and its user may sign in, creates the session.
func (s *LoginService) redeem(ctx context.Context, code *codedomain.Code, user *userdomain.User, fp sessiondomain.Fingerprint) (*LoginResult, error) {
	if !s.isTestAccount(user) {
		if err := s.codes.Delete(ctx, code.ID); err != nil {
			return nil, fmt.Errorf("delete code: %w", err)
		}
	}
	now := s.now().UTC()
	if code.Expired(now) {
		return nil, s.loginFailed(ctx, user, fp, ErrCodeExpired)
	}
	if user == nil || ban.IsBanned(user, now) {
		return nil, s.loginFailed(ctx, user, fp, ErrCodeNotFound)
	}
	return s.createSession(ctx, user, fp)
}

func (s *LoginService) createSession(ctx context.Context, user *userdomain.User, fp sessiondomain.Fingerprint) (*LoginResult, error) {
	for attempt := 0; attempt < 2; attempt++ {
		id, err := s.newSessionID()
		if err != nil {
			return nil, fmt.Errorf("generate session id: %w", err)
		}
		now := s.now().UTC()
		sess := &sessiondomain.Session{
			ID:           id,
			UserID:       user.ID,
			CreatedAt:    now,
			UpdatedAt:    now,
			LastActiveAt: now,
			ExpiresAt:    now.Add(s.cfg.SessionTTL),
			Fingerprint:  fp,
		}
		err = s.sessions.Create(ctx, sess)
		if errors.Is(err, sessionrepo.ErrConflict) {
			log.Printf("identity: session id collision on attempt %d", attempt+1)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		token, err := s.signer.Sign(security.SessionPayload{SessionID: id, User: security.SnapshotOf(user)})
		if err != nil {
			return nil, fmt.Errorf("sign session token: %w", err)
		}
		if s.audit != nil {
			s.audit.LogEvent(ctx, user.OrgID, user.ID, audit.ActionLoginSuccess, audit.ResourceSession, "")
		}
		s.emit(&telemetrydomain.AuthEvent{
			Type:      telemetrydomain.EventSessionCreated,
			OrgID:     user.OrgID,
			UserID:    user.ID,
			SessionID: id,
			IP:        fp.IPAddress,
		})
		return &LoginResult{Token: token, Session: sess, User: user}, nil
	}
	return nil, ErrSessionConflict
}

func (s *LoginService) lookupRecipient(ctx context.Context, email string) (*userdomain.User, error) {
	email = userdomain.NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil || ban.IsBanned(user, s.now()) {
		return nil, ErrNoUserFound
	}
	return user, nil
}

func (s *LoginService) storeCode(ctx context.Context, user *userdomain.User, kind codedomain.Kind, plaintext string, ttl time.Duration) error {
	now := s.now().UTC()
	c := &codedomain.Code{
		ID:        uuid.New().String(),
		Kind:      kind,
		UserID:    user.ID,
		CodeHash:  security.HashOneTimeCode(plaintext),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := s.codes.Replace(ctx, c); err != nil {
		return fmt.Errorf("store %s: %w", kind, err)
	}
	return nil
}

func (s *LoginService) isTestAccount(u *userdomain.User) bool {
	if u == nil || s.cfg.TestAccountEmail == "" {
		return false
	}
	return userdomain.NormalizeEmail(u.Email) == userdomain.NormalizeEmail(s.cfg.TestAccountEmail)
}

// loginFailed records a failed redemption and returns err.
func (s *LoginService) loginFailed(ctx context.Context, u *userdomain.User, fp sessiondomain.Fingerprint, err error) error {
	var orgID, userID string
	if u != nil {
		orgID, userID = u.OrgID, u.ID
	}
	reason := "not_found"
	if errors.Is(err, ErrCodeExpired) {
		reason = "expired"
	}
	if s.audit != nil {
		s.audit.LogEvent(ctx, orgID, userID, audit.ActionLoginFailure, audit.ResourceSession, `{"reason":"`+reason+`"}`)
	}
	s.emit(&telemetrydomain.AuthEvent{Type: telemetrydomain.EventLoginFailed, OrgID: orgID, UserID: userID, Reason: reason, IP: fp.IPAddress})
	return err
}

func (s *LoginService) emit(e *telemetrydomain.AuthEvent) {
	if s.emitter == nil {
		return
	}
	e.Source = "identity"
	e.CreatedAt = s.now().UTC()
	telemetry.EmitAsync(s.emitter, e)
}
