package cel

import (
	"testing"

	"github.com/wardenauth/warden/internal/domain/policy"
)

func TestEvaluator_EvaluateRoleMembership(t *testing.T) {
	t.Parallel()
	eval, err := NewEvaluator()
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}

	ctx := policy.Context{UserID: "u1", Roles: []string{"editor", "viewer"}}
	ok, err := eval.Evaluate(`"editor" in roles`, ctx, "docs", "write")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !ok {
		t.Fatal("expected role membership condition to be true")
	}
}

func TestEvaluator_EvaluateGlobFunction(t *testing.T) {
	t.Parallel()
	eval, err := NewEvaluator()
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}

	ctx := policy.Context{UserID: "u1"}
	ok, err := eval.Evaluate(`glob(resource, "docs:*")`, ctx, "docs:report", "read")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !ok {
		t.Fatal("expected glob condition to match")
	}
}

func TestEvaluator_ValidateExpressionRejectsTooDeepNesting(t *testing.T) {
	t.Parallel()
	eval, err := NewEvaluator()
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}

	deep := ""
	for i := 0; i < maxNestingDepth+5; i++ {
		deep += "("
	}
	deep += "true"
	for i := 0; i < maxNestingDepth+5; i++ {
		deep += ")"
	}

	if err := eval.ValidateExpression(deep); err == nil {
		t.Fatal("expected overly nested expression to be rejected")
	}
}

func TestEvaluator_ValidateExpressionRejectsEmpty(t *testing.T) {
	t.Parallel()
	eval, err := NewEvaluator()
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}
	if err := eval.ValidateExpression(""); err == nil {
		t.Fatal("expected empty expression to be rejected")
	}
}

func TestEvaluator_CompileCachesBySource(t *testing.T) {
	t.Parallel()
	eval, err := NewEvaluator()
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}

	if _, err := eval.Compile(`"a" in roles`); err != nil {
		t.Fatalf("compile 1: %v", err)
	}
	if _, err := eval.Compile(`"a" in roles`); err != nil {
		t.Fatalf("compile 2: %v", err)
	}
	if len(eval.cache) != 1 {
		t.Fatalf("expected one cache entry for two compiles of the same source, got %d", len(eval.cache))
	}
}
