package memory

import (
	"testing"

	"github.com/wardenauth/warden/internal/domain/policy"
)

func TestPolicyEngine_FirstMatchWins(t *testing.T) {
	t.Parallel()
	cfg := policy.Config{
		Rules: []policy.Rule{
			{ID: "deny-secrets", Effect: policy.EffectDeny, Resources: []string{"secrets:*"}},
			{ID: "allow-all-docs", Effect: policy.EffectAllow, Resources: []string{"docs:*"}},
		},
		DefaultDecision: policy.EffectDeny,
	}
	e := NewPolicyEngine(cfg, nil)

	d, err := e.Evaluate("docs:report", "read", policy.Context{UserID: "u1"})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !d.Allowed || d.MatchedPolicyID != "allow-all-docs" {
		t.Fatalf("unexpected decision: %+v", d)
	}

	d, err = e.Evaluate("secrets:keys", "read", policy.Context{UserID: "u1"})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if d.Allowed || d.MatchedPolicyID != "deny-secrets" {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestPolicyEngine_DefaultDecisionWhenNoRuleMatches(t *testing.T) {
	t.Parallel()
	cfg := policy.Config{DefaultDecision: policy.EffectDeny}
	e := NewPolicyEngine(cfg, nil)

	d, err := e.Evaluate("anything", "anything", policy.Context{})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if d.Allowed {
		t.Fatal("expected default-deny with no matching rules")
	}
	if d.MatchedPolicyID != "default" {
		t.Fatalf(`expected matched_policy_id "default", got %q`, d.MatchedPolicyID)
	}
}

func TestPolicyEngine_RoleFilter(t *testing.T) {
	t.Parallel()
	cfg := policy.Config{
		Rules: []policy.Rule{
			{ID: "editor-only", Effect: policy.EffectAllow, Roles: []string{"editor"}},
		},
		DefaultDecision: policy.EffectDeny,
	}
	e := NewPolicyEngine(cfg, nil)

	d, err := e.Evaluate("docs:x", "write", policy.Context{UserID: "u1", Roles: []string{"viewer"}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if d.Allowed {
		t.Fatal("expected viewer to be denied by editor-only rule")
	}

	d, err = e.Evaluate("docs:x", "write", policy.Context{UserID: "u2", Roles: []string{"editor"}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !d.Allowed {
		t.Fatal("expected editor to be allowed")
	}
}

func TestPolicyEngine_ConditionWithoutEvaluatorFailsClosed(t *testing.T) {
	t.Parallel()
	cfg := policy.Config{
		Rules: []policy.Rule{
			{ID: "conditional", Effect: policy.EffectAllow, Condition: `"admin" in roles`},
		},
		DefaultDecision: policy.EffectDeny,
	}
	e := NewPolicyEngine(cfg, nil)

	d, err := e.Evaluate("docs:x", "write", policy.Context{UserID: "u1", Roles: []string{"admin"}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if d.Allowed {
		t.Fatal("expected a Condition rule to fail closed when no CEL evaluator is wired")
	}
}

func TestPolicyEngine_EvaluateBulkMatchesEvaluate(t *testing.T) {
	t.Parallel()
	cfg := policy.Config{
		Rules: []policy.Rule{
			{ID: "allow-docs", Effect: policy.EffectAllow, Resources: []string{"docs:*"}},
		},
		DefaultDecision: policy.EffectDeny,
	}
	e := NewPolicyEngine(cfg, nil)

	results, err := e.EvaluateBulk([]policy.Request{
		{Resource: "docs:a", Action: "read"},
		{Resource: "secrets:a", Action: "read"},
	}, policy.Context{UserID: "u1"})
	if err != nil {
		t.Fatalf("evaluate bulk: %v", err)
	}
	if !results[0].Allowed || results[1].Allowed {
		t.Fatalf("unexpected bulk results: %+v", results)
	}
}
