package guard

import (
	"pawplanner/backend/internal/security"
	"pawplanner/backend/internal/session/revalidation"
)

// Outcome is the result of evaluating a request.
type Outcome int

const (
	Deny Outcome = iota
	Allow
)

func (o Outcome) String() string {
	if o == Allow {
		return "allow"
	}
	return "deny"
}

// Reason explains a Deny. It is empty for Allow.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonNoSession        Reason = "no_session"
	ReasonSessionExpired   Reason = "session_expired"
	ReasonSessionRevoked   Reason = "session_revoked"
	ReasonUserBanned       Reason = "user_banned"
	ReasonStoreUnavailable Reason = "store_unavailable"
)

// CookieAction is what a front-end must do with the session cookie.
type CookieAction int

const (
	CookieKeep CookieAction = iota
	CookieSet
	CookieClear
)

// CookieMutation carries the new token when Action is CookieSet.
type CookieMutation struct {
	Action CookieAction
	Value  string
}

// Identity is the authenticated principal of an allowed request.
type Identity struct {
	SessionID string
	User      security.UserSnapshot
}

// UserID returns the id of the signed-in user.
func (i *Identity) UserID() string { return i.User.ID }

// OrgID returns the organization of the signed-in user.
func (i *Identity) OrgID() string { return i.User.OrgID }

// Decision is the guard's verdict on one request.
type Decision struct {
	Outcome Outcome
	Reason  Reason
	// Path is the verification path taken. Requests without a readable token report FastPath.
	Path     revalidation.Path
	Cookie   CookieMutation
	Identity *Identity
}

// Allowed reports whether the request may proceed.
func (d Decision) Allowed() bool {
	return d.Outcome == Allow
}

func deny(reason Reason, path revalidation.Path, cookie CookieAction) Decision {
	return Decision{Outcome: Deny, Reason: reason, Path: path, Cookie: CookieMutation{Action: cookie}}
}
