package engine

import "context"

// Session access actions.
const (
	ActionList      = "list"
	ActionDelete    = "delete"
	ActionRevokeAll = "revoke_all"
)

// Principal is a user as seen by the policy: id, organization and role.
type Principal struct {
	ID    string `json:"id"`
	OrgID string `json:"org_id"`
	Role  string `json:"role"`
}

// SessionAccessInput is one question to the policy: may Actor perform Action
// on the sessions of Target?
type SessionAccessInput struct {
	Action string    `json:"action"`
	Actor  Principal `json:"actor"`
	Target Principal `json:"target"`
}

// Evaluator decides session access using OPA or other engines.
type Evaluator interface {
	// AuthorizeSessionAccess reports whether the actor may act on the target's sessions.
	// An error means the policy could not be evaluated; callers deny.
	AuthorizeSessionAccess(ctx context.Context, in SessionAccessInput) (bool, error)
}
