// Package cel provides an optional CEL-based evaluator for a policy Rule's
// Condition expression, layered on top of the glob/set matcher in
// internal/domain/policy (spec.md §4.8's Condition is an enrichment, not a
// replacement). Adapted from the teacher's cel evaluator: same environment-
// plus-program-cache shape and the same compile-time safety limits
// (expression length, nesting depth, evaluation cost budget, timeout), with
// the variable surface rebuilt around an authorization subject/request
// instead of an MCP tool call.
package cel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/wardenauth/warden/internal/domain/policy"
)

// maxExpressionLength bounds a Condition string's size.
const maxExpressionLength = 1024

// maxCostBudget limits CEL runtime cost to prevent a pathological expression
// from burning CPU on every Evaluate call.
const maxCostBudget = 100_000

// maxNestingDepth bounds parenthesis/bracket/brace nesting depth.
const maxNestingDepth = 50

// evalTimeout bounds a single evaluation's wall-clock time.
const evalTimeout = 5 * time.Second

const interruptCheckFreq = 100

// Evaluator compiles and evaluates CEL Condition expressions against a
// policy.Context plus the (resource, action) pair under evaluation.
type Evaluator struct {
	env *cel.Env

	mu    sync.Mutex
	cache map[string]cel.Program
}

// NewEvaluator creates a CEL evaluator with the authorization environment.
func NewEvaluator() (*Evaluator, error) {
	env, err := newConditionEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create policy condition environment: %w", err)
	}
	return &Evaluator{env: env, cache: make(map[string]cel.Program)}, nil
}

// Compile parses and type-checks expr, caching the compiled program keyed by
// its source text so repeated evaluation of the same rule's Condition across
// many Evaluate calls does not re-parse it.
func (e *Evaluator) Compile(expr string) (cel.Program, error) {
	e.mu.Lock()
	if prg, ok := e.cache[expr]; ok {
		e.mu.Unlock()
		return prg, nil
	}
	e.mu.Unlock()

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("condition compilation failed: %w", issues.Err())
	}
	prg, err := e.env.Program(ast,
		cel.EvalOptions(cel.OptOptimize),
		cel.CostLimit(maxCostBudget),
		cel.InterruptCheckFrequency(interruptCheckFreq),
	)
	if err != nil {
		return nil, fmt.Errorf("condition program creation failed: %w", err)
	}

	e.mu.Lock()
	e.cache[expr] = prg
	e.mu.Unlock()
	return prg, nil
}

// ValidateExpression checks that expr is a syntactically valid, safely
// bounded CEL boolean expression, without evaluating it.
func (e *Evaluator) ValidateExpression(expr string) error {
	if expr == "" {
		return errors.New("condition expression is empty")
	}
	if len(expr) > maxExpressionLength {
		return fmt.Errorf("condition expression too long: %d characters (max %d)", len(expr), maxExpressionLength)
	}
	if err := validateNesting(expr); err != nil {
		return err
	}
	if _, err := e.Compile(expr); err != nil {
		return fmt.Errorf("invalid condition expression: %w", err)
	}
	return nil
}

func validateNesting(expr string) error {
	var depth, maxDepth int
	for _, ch := range expr {
		switch ch {
		case '(', '[', '{':
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
		case ')', ']', '}':
			depth--
		}
	}
	if maxDepth > maxNestingDepth {
		return fmt.Errorf("condition expression nesting too deep: %d levels (max %d)", maxDepth, maxNestingDepth)
	}
	return nil
}

// Evaluate compiles (or reuses the cached compilation of) expr and runs it
// against ctx/resource/action, requiring a boolean result.
func (e *Evaluator) Evaluate(expr string, ctx policy.Context, resource, action string) (bool, error) {
	prg, err := e.Compile(expr)
	if err != nil {
		return false, err
	}

	activation := buildActivation(ctx, resource, action)

	runCtx, cancel := context.WithTimeout(context.Background(), evalTimeout)
	defer cancel()

	result, _, err := prg.ContextEval(runCtx, activation)
	if err != nil {
		return false, fmt.Errorf("condition evaluation failed: %w", err)
	}

	boolResult, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("condition did not evaluate to a boolean, got %T", result.Value())
	}
	return boolResult, nil
}
