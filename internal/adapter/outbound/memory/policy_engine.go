package memory

import (
	"path/filepath"
	"strings"

	celeval "github.com/wardenauth/warden/internal/adapter/outbound/cel"
	"github.com/wardenauth/warden/internal/domain/policy"
)

// PolicyEngine implements policy.Engine in memory: an ordered rule list
// evaluated first-match-wins, with an optional CEL evaluator layered on top
// for rules carrying a Condition expression (spec.md §4.8).
type PolicyEngine struct {
	cfg policy.Config
	cel *celeval.Evaluator
}

// NewPolicyEngine creates a PolicyEngine for cfg. cel may be nil; rules with
// a non-empty Condition then always fail closed (treated as non-matching),
// since there is no evaluator to run them against.
func NewPolicyEngine(cfg policy.Config, cel *celeval.Evaluator) *PolicyEngine {
	return &PolicyEngine{cfg: cfg, cel: cel}
}

// Evaluate walks the configured rules in order and returns the first
// match's decision, or the default decision if none match (spec.md §4.8).
func (e *PolicyEngine) Evaluate(resource, action string, ctx policy.Context) (policy.Decision, error) {
	for i := range e.cfg.Rules {
		rule := &e.cfg.Rules[i]
		matched, err := e.ruleMatches(rule, resource, action, ctx)
		if err != nil {
			return policy.Decision{}, err
		}
		if !matched {
			continue
		}
		return policy.Decision{
			Allowed:         rule.Effect == policy.EffectAllow,
			Reason:          rule.Description,
			MatchedPolicyID: rule.ID,
			AppliedPolicies: []string{rule.ID},
		}, nil
	}
	return policy.Decision{
		Allowed:         e.cfg.DefaultDecision == policy.EffectAllow,
		Reason:          "no rule matched; applying default decision",
		MatchedPolicyID: "default",
	}, nil
}

// EvaluateBulk evaluates every (resource, action) pair against the same
// subject context, with identical semantics to calling Evaluate once per
// pair.
func (e *PolicyEngine) EvaluateBulk(requests []policy.Request, ctx policy.Context) ([]policy.Decision, error) {
	decisions := make([]policy.Decision, len(requests))
	for i, req := range requests {
		d, err := e.Evaluate(req.Resource, req.Action, ctx)
		if err != nil {
			return nil, err
		}
		decisions[i] = d
	}
	return decisions, nil
}

func (e *PolicyEngine) ruleMatches(rule *policy.Rule, resource, action string, ctx policy.Context) (bool, error) {
	if len(rule.Users) > 0 && !containsString(rule.Users, ctx.UserID) {
		return false, nil
	}
	if len(rule.Roles) > 0 && !anyStringIn(rule.Roles, ctx.Roles) {
		return false, nil
	}
	if len(rule.Permissions) > 0 && !anyPermissionMatch(rule.Permissions, ctx.Permissions, e.cfg.CaseSensitivePermissions) {
		return false, nil
	}
	if len(rule.Resources) > 0 && !anyGlobMatch(rule.Resources, resource) {
		return false, nil
	}
	if len(rule.Actions) > 0 && !anyGlobMatch(rule.Actions, action) {
		return false, nil
	}
	for k, v := range rule.Custom {
		if ctx.Custom[k] != v {
			return false, nil
		}
	}

	if rule.Condition == "" {
		return true, nil
	}
	if e.cel == nil {
		return false, nil
	}
	return e.cel.Evaluate(rule.Condition, ctx, resource, action)
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func anyStringIn(needles, haystack []string) bool {
	for _, n := range needles {
		if containsString(haystack, n) {
			return true
		}
	}
	return false
}

func anyPermissionMatch(ruleValues, subjectValues []string, caseSensitive bool) bool {
	for _, want := range ruleValues {
		for _, have := range subjectValues {
			if caseSensitive {
				if want == have {
					return true
				}
			} else if strings.EqualFold(want, have) {
				return true
			}
		}
	}
	return false
}

func anyGlobMatch(patterns []string, value string) bool {
	for _, p := range patterns {
		if matched, _ := filepath.Match(p, value); matched {
			return true
		}
	}
	return false
}

var _ policy.Engine = (*PolicyEngine)(nil)
