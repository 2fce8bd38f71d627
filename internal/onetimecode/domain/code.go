package domain

import "time"

// Kind distinguishes the two sign-in protocols.
type Kind string

const (
	KindMagicLink        Kind = "magic_link"
	KindVerificationCode Kind = "verification_code"
)

// Code is a pending one-time sign-in credential. Only the SHA-256 of the
// plaintext is stored.
type Code struct {
	ID        string
	Kind      Kind
	UserID    string
	CodeHash  string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the code can no longer be used at now.
func (c *Code) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}
