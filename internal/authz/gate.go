// Package authz decides whether an actor's role satisfies an entity policy's
// minimum role. The decision is expressed as a Rego policy evaluated with
// OPA, prepared once at startup.
package authz

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
)

const policyModule = `package makerflow.authz

default allow := false

rank := {
	"student": 1,
	"staff": 2,
	"manager": 3,
	"admin": 4,
}

allow if {
	rank[input.actor_role] >= rank[input.min_role]
}
`

// Gate evaluates role checks against the prepared policy.
type Gate struct {
	query rego.PreparedEvalQuery
}

// NewGate compiles and prepares the role policy.
func NewGate(ctx context.Context) (*Gate, error) {
	query, err := rego.New(
		rego.Query("data.makerflow.authz.allow"),
		rego.Module("authz.rego", policyModule),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("authz: prepare policy: %w", err)
	}
	return &Gate{query: query}, nil
}

// Allow reports whether actorRole satisfies minRole. Unknown roles on either
// side deny.
func (g *Gate) Allow(ctx context.Context, actorRole, minRole string) (bool, error) {
	results, err := g.query.Eval(ctx, rego.EvalInput(map[string]any{
		"actor_role": actorRole,
		"min_role":   minRole,
	}))
	if err != nil {
		return false, fmt.Errorf("authz: eval: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, nil
	}
	allowed, ok := results[0].Expressions[0].Value.(bool)
	return ok && allowed, nil
}
