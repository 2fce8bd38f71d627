package security

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/awnumar/memguard"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"

	userdomain "pawplanner/backend/internal/user/domain"
)

var (
	// ErrInvalidToken is returned when a token is malformed, tampered with, or signed with another key.
	ErrInvalidToken = errors.New("invalid token")
	// ErrWeakSecret is returned by NewTokenCodec when the signing secret is too short.
	ErrWeakSecret = errors.New("session secret must be at least 32 bytes")
	// ErrCodecClosed is returned after Close.
	ErrCodecClosed = errors.New("token codec closed")
)

const (
	minSecretLen = 32
	keyLen       = 32
	keyInfo      = "pawplanner session token v1"
)

// UserSnapshot is the copy of the user carried inside a session token. It is
// current as of the token's issued-at time and is refreshed on every slow-path
// re-issue.
type UserSnapshot struct {
	ID          string `json:"id"`
	OrgID       string `json:"org_id"`
	Role        string `json:"role"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	BannedAt    *int64 `json:"banned_at,omitempty"`
	BannedUntil *int64 `json:"banned_until,omitempty"`
	Timezone    string `json:"timezone"`
}

// SnapshotOf returns the token snapshot of u.
func SnapshotOf(u *userdomain.User) UserSnapshot {
	return UserSnapshot{
		ID:          u.ID,
		OrgID:       u.OrgID,
		Role:        string(u.Role),
		Name:        u.Name,
		Email:       u.Email,
		BannedAt:    unixPtr(u.BannedAt),
		BannedUntil: unixPtr(u.BannedUntil),
		Timezone:    u.Timezone,
	}
}

// SessionPayload is what callers hand to Sign.
type SessionPayload struct {
	SessionID string
	User      UserSnapshot
}

// SessionClaims holds the JWT claims of a session token. There is no exp claim:
// a token is only trusted while it is younger than the freshness window and is
// otherwise checked against the session store.
type SessionClaims struct {
	jwt.RegisteredClaims
	SessionID string       `json:"sid"`
	User      UserSnapshot `json:"user"`
}

// IssuedAtTime returns the iat claim as a time.Time.
func (c *SessionClaims) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// NotBeforeTime returns the nbf claim as a time.Time.
func (c *SessionClaims) NotBeforeTime() time.Time {
	if c.NotBefore == nil {
		return time.Time{}
	}
	return c.NotBefore.Time
}

// CodecOption configures a TokenCodec.
type CodecOption func(*TokenCodec)

// WithClock sets the clock used for the iat claim.
func WithClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		if now != nil {
			c.now = now
		}
	}
}

// TokenCodec signs and verifies session tokens with HS256. The HMAC key is
// derived from the configured secret with HKDF-SHA256 into a frozen memguard
// buffer once, at construction; Sign and Verify only read it. It cannot be
// changed after construction and is safe for concurrent use.
type TokenCodec struct {
	mu    sync.RWMutex
	key   *memguard.LockedBuffer
	owned bool
	now   func() time.Time
}

// NewTokenCodec returns a TokenCodec keyed from secret. The caller's secret slice is not retained.
func NewTokenCodec(secret []byte, opts ...CodecOption) (*TokenCodec, error) {
	key, err := deriveKey(secret)
	if err != nil {
		return nil, err
	}
	return newCodec(key, true, opts...), nil
}

func newCodec(key *memguard.LockedBuffer, owned bool, opts ...CodecOption) *TokenCodec {
	c := &TokenCodec{key: key, owned: owned, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func deriveKey(secret []byte) (*memguard.LockedBuffer, error) {
	if len(secret) < minSecretLen {
		return nil, ErrWeakSecret
	}
	buf := memguard.NewBuffer(keyLen)
	r := hkdf.New(sha256.New, secret, nil, []byte(keyInfo))
	if _, err := io.ReadFull(r, buf.Bytes()); err != nil {
		buf.Destroy()
		return nil, fmt.Errorf("derive session key: %w", err)
	}
	buf.Freeze()
	return buf, nil
}

// Sign issues a token for payload with iat set to now.
func (c *TokenCodec) Sign(payload SessionPayload) (string, error) {
	if payload.SessionID == "" || payload.User.ID == "" {
		return "", errors.New("sign session token: session id and user id are required")
	}
	now := jwt.NewNumericDate(c.now().UTC())
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  now,
			NotBefore: now,
		},
		SessionID: payload.SessionID,
		User:      payload.User,
	}
	var token string
	err := c.withKey(func(key []byte) error {
		var err error
		token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
		return err
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// Verify checks the signature of token and returns its claims. Every failure,
// whatever the cause, is reported as ErrInvalidToken. Time claims are not
// checked here: how old a token may be is decided by the revalidation policy,
// and a token dated in the future goes through the session store.
func (c *TokenCodec) Verify(token string) (*SessionClaims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	claims := &SessionClaims{}
	err := c.withKey(func(key []byte) error {
		parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
			return key, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithStrictDecoding(), jwt.WithoutClaimsValidation())
		if err != nil {
			return err
		}
		if !parsed.Valid {
			return ErrInvalidToken
		}
		return nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims.SessionID == "" || claims.User.ID == "" || claims.IssuedAt == nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Close destroys the key. Sign and Verify fail afterwards.
func (c *TokenCodec) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.key != nil && c.owned {
		c.key.Destroy()
	}
	c.key = nil
}

func (c *TokenCodec) withKey(fn func(key []byte) error) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.key == nil {
		return ErrCodecClosed
	}
	return fn(c.key.Bytes())
}

func unixPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	v := t.Unix()
	return &v
}
