// Package policy decides whether a session may be opened, using OPA.
package policy

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/rego"
)

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// SessionInput is the document a session policy is evaluated against.
type SessionInput struct {
	Model     string   `json:"model"`
	Available []string `json:"available"`
}

// Decision is the outcome of a policy evaluation.
type Decision struct {
	Allow  bool
	Reason string
}

// NewEngine creates a new policy engine with the given policy content.
// The module must define data.session_policy.decision.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.session_policy.decision"),
		rego.Module("session_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// NewEngineFromFile loads the policy from path, or DefaultPolicy when path is empty.
func NewEngineFromFile(ctx context.Context, path string) (*Engine, error) {
	if path == "" {
		return NewEngine(ctx, DefaultPolicy)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return NewEngine(ctx, string(content))
}

// Evaluate checks whether a session for input.Model may be created.
// The rule may produce either a string ("allow"/"block") or an object
// {"allow": bool, "reason": string}.
func (e *Engine) Evaluate(ctx context.Context, input SessionInput) (Decision, error) {
	if input.Available == nil {
		input.Available = []string{}
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(map[string]interface{}{
		"model":     input.Model,
		"available": input.Available,
	}))
	if err != nil {
		return Decision{}, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Decision{Allow: false, Reason: "no policy decision"}, nil
	}

	switch val := results[0].Expressions[0].Value.(type) {
	case string:
		return Decision{Allow: val == "allow", Reason: val}, nil
	case map[string]interface{}:
		allow, _ := val["allow"].(bool)
		reason, _ := val["reason"].(string)
		return Decision{Allow: allow, Reason: reason}, nil
	default:
		return Decision{}, fmt.Errorf("unexpected policy result type %T", val)
	}
}

// DefaultPolicy admits a model only when the runtime reports it as available.
const DefaultPolicy = `
package session_policy

default decision = {"allow": false, "reason": "model not available"}

decision = {"allow": true, "reason": "model available"} {
	input.model != ""
	input.available[_] == input.model
}
`
