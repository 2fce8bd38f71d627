// Package ban evaluates user bans. It is consulted at login and on the session
// slow path only; a token inside its freshness window is not re-checked.
package ban

import (
	"time"

	userdomain "pawplanner/backend/internal/user/domain"
)

// Status describes a user's ban state at a point in time.
type Status int

const (
	// None means the user was never banned.
	None Status = iota
	// Forever means banned with no end.
	Forever
	// Until means banned until BannedUntil, which is still in the future.
	Until
	// Lifted means a ban existed but its end has passed.
	Lifted
)

func (s Status) String() string {
	switch s {
	case Forever:
		return "banned"
	case Until:
		return "banned_until"
	case Lifted:
		return "lifted"
	default:
		return "none"
	}
}

// StatusOf returns the ban status of u at now. A nil user has no ban.
func StatusOf(u *userdomain.User, now time.Time) Status {
	if u == nil || u.BannedAt == nil {
		return None
	}
	if u.BannedUntil == nil {
		return Forever
	}
	if u.BannedUntil.After(now) {
		return Until
	}
	return Lifted
}

// IsBanned reports whether u is banned at now: banned_at set and either no
// banned_until or a banned_until still in the future.
func IsBanned(u *userdomain.User, now time.Time) bool {
	s := StatusOf(u, now)
	return s == Forever || s == Until
}
