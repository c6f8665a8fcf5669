// Package policy defines the rule/decision data model and the PolicyEngine
// capability contract (spec.md §3, §4.8).
package policy

// Effect is the outcome a matching rule produces.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Rule is one ordered entry in a Config's rule list (spec.md §4.8). All
// present filters are ANDed; an absent (nil) filter is not evaluated.
type Rule struct {
	ID          string
	Description string
	Effect      Effect
	Users       []string
	Roles       []string
	Permissions []string
	Resources   []string // glob patterns
	Actions     []string // glob patterns
	Custom      map[string]string
	// Condition, if non-empty, is an optional CEL expression evaluated
	// against the subject context via internal/adapter/outbound/cel. It is
	// an enrichment beyond spec.md's glob/set matcher, not a replacement for
	// it: a rule with filters AND a Condition must satisfy both.
	Condition string
}

// Config is the policy engine's full rule set (spec.md §4.8).
type Config struct {
	Rules                   []Rule
	DefaultDecision         Effect
	CaseSensitivePermissions bool
}

// Context is the subject/request context a rule is evaluated against.
type Context struct {
	UserID      string
	Roles       []string
	Permissions []string
	Custom      map[string]string
}

// Decision is the result of evaluating a Context against a Config (spec.md
// §3 PolicyDecision).
type Decision struct {
	Allowed         bool
	Reason          string
	MatchedPolicyID string
	AppliedPolicies []string
}

// Engine is the policy-provider capability contract (spec.md §4.8).
type Engine interface {
	// Evaluate walks the configured rules in order and returns the first
	// match's decision, or the default decision if none match.
	Evaluate(resource, action string, ctx Context) (Decision, error)

	// EvaluateBulk evaluates a batch of (resource, action) pairs against
	// the same subject context. Semantics must equal calling Evaluate once
	// per pair; concrete implementations may batch-optimize internally.
	EvaluateBulk(requests []Request, ctx Context) ([]Decision, error)
}

// Request is one (resource, action) pair for EvaluateBulk.
type Request struct {
	Resource string
	Action   string
}
