package domain

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// User is the core user entity. Every user belongs to exactly one organization.
type User struct {
	ID          string
	OrgID       string
	Role        Role
	Name        string
	Email       string
	BannedAt    *time.Time // nil when never banned
	BannedUntil *time.Time // nil with BannedAt set means banned indefinitely
	Timezone    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Role is the user's role inside their organization.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// IsOrgAdmin reports whether r may administer its organization.
func (r Role) IsOrgAdmin() bool {
	return r == RoleOwner || r == RoleAdmin
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.OrgID == "" {
		return errors.New("org_id is required")
	}
	if u.Role == "" {
		u.Role = RoleMember
	}
	if !u.Role.Valid() {
		return errors.New("role must be owner, admin or member")
	}
	if u.Timezone == "" {
		u.Timezone = "UTC"
	}
	return nil
}

// NormalizeEmail returns email in the form it is stored and looked up in:
// NFKC-normalized, trimmed and lowercased.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFKC.String(email)))
}
