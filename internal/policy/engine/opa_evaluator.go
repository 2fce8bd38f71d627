package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const allowQuery = "data.pawplanner.session_access.allow"

// DefaultPolicy lets users manage their own sessions, owners and admins manage
// the sessions of their organization, and owners and admins of the super
// organization manage everyone's.
const DefaultPolicy = `package pawplanner.session_access

default allow := false

known_action if {
	input.action in {"list", "delete", "revoke_all"}
}

org_admin if {
	input.actor.role in {"owner", "admin"}
}

allow if {
	known_action
	input.actor.id != ""
	input.actor.id == input.target.id
}

allow if {
	known_action
	org_admin
	input.actor.org_id != ""
	input.actor.org_id == input.target.org_id
}

allow if {
	known_action
	org_admin
	input.super_org_id != ""
	input.actor.org_id == input.super_org_id
}
`

// Option configures an OPAEvaluator.
type Option func(*OPAEvaluator)

// WithPolicy replaces DefaultPolicy. The module must define data.pawplanner.session_access.allow.
func WithPolicy(module string) Option {
	return func(e *OPAEvaluator) {
		if module != "" {
			e.module = module
		}
	}
}

// OPAEvaluator evaluates the session access policy with OPA Rego. The policy is
// compiled once; evaluation is safe for concurrent use.
type OPAEvaluator struct {
	module     string
	superOrgID string
	query      rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles the policy. superOrgID may be empty, which disables cross-org access.
func NewOPAEvaluator(ctx context.Context, superOrgID string, opts ...Option) (*OPAEvaluator, error) {
	e := &OPAEvaluator{module: DefaultPolicy, superOrgID: superOrgID}
	for _, opt := range opts {
		opt(e)
	}
	compiler, err := ast.CompileModules(map[string]string{"session_access.rego": e.module})
	if err != nil {
		return nil, fmt.Errorf("compile session access policy: %w", err)
	}
	q, err := rego.New(
		rego.Query(allowQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare session access policy: %w", err)
	}
	e.query = q
	return e, nil
}

// HealthCheck evaluates the compiled policy against a minimal input. Does not touch the database.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	_, err := e.AuthorizeSessionAccess(ctx, SessionAccessInput{
		Action: ActionList,
		Actor:  Principal{ID: "healthcheck"},
		Target: Principal{ID: "healthcheck"},
	})
	return err
}

// AuthorizeSessionAccess evaluates the policy for in.
func (e *OPAEvaluator) AuthorizeSessionAccess(ctx context.Context, in SessionAccessInput) (bool, error) {
	input, err := toInput(in, e.superOrgID)
	if err != nil {
		return false, fmt.Errorf("build input: %w", err)
	}
	rs, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("eval session access policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, fmt.Errorf("policy query returned no result")
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("policy returned %T, want bool", rs[0].Expressions[0].Value)
	}
	return allowed, nil
}

// toInput round-trips through JSON so the policy sees the same field names as the struct tags.
func toInput(in SessionAccessInput, superOrgID string) (map[string]interface{}, error) {
	b, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	out["super_org_id"] = superOrgID
	return out, nil
}
