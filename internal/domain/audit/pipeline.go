package audit

import (
	"fmt"
	"strings"
)

// TermKind identifies which algebra case a PipelineTerm holds.
type TermKind int

const (
	// KindSingle requires exactly one EventKind to appear.
	KindSingle TermKind = iota
	// KindGroup requires any one of a set of EventKinds to appear.
	KindGroup
	// KindSequence requires an ordered list of Single/Group terms to appear
	// in order, with intervening events permitted.
	KindSequence
	// KindAlternatives requires at least one of a set of Sequences to match.
	KindAlternatives
)

// PipelineTerm is one node of the audit-pipeline algebra. Construct terms
// with Single, Group, Sequence, and Alternatives, and combine them with Or
// and Then rather than building the struct directly.
type PipelineTerm struct {
	kind  TermKind
	event EventKind     // valid when kind == KindSingle
	set   []EventKind   // valid when kind == KindGroup (order-stable, de-duplicated)
	steps []PipelineTerm // valid when kind == KindSequence (each Single or Group)
	alts  []PipelineTerm // valid when kind == KindAlternatives (each Sequence)
}

// Single builds a term requiring exactly the given event.
func Single(k EventKind) PipelineTerm {
	return PipelineTerm{kind: KindSingle, event: k}
}

// Group builds a term satisfied by any one of the given events. Duplicates
// are collapsed.
func Group(kinds ...EventKind) PipelineTerm {
	return PipelineTerm{kind: KindGroup, set: dedupe(kinds)}
}

// Sequence builds a term requiring each step to appear, in order, within the
// observed events. Each step must be a Single or Group term; passing a
// Sequence or Alternatives term panics, matching the construction contract
// in spec.md §4.1 ("no nested Sequence").
func Sequence(steps ...PipelineTerm) PipelineTerm {
	flat := make([]PipelineTerm, 0, len(steps))
	for _, s := range steps {
		switch s.kind {
		case KindSingle, KindGroup:
			flat = append(flat, s)
		case KindSequence:
			// >> flattens nested sequences rather than nesting them.
			flat = append(flat, s.steps...)
		default:
			panic("audit: Sequence steps must be Single or Group terms")
		}
	}
	return PipelineTerm{kind: KindSequence, steps: flat}
}

// Alternatives builds a term satisfied if any of the given Sequence terms
// matches. Non-Sequence arguments are promoted to a single-step Sequence.
func Alternatives(alts ...PipelineTerm) PipelineTerm {
	flat := make([]PipelineTerm, 0, len(alts))
	for _, a := range alts {
		if a.kind == KindSequence {
			flat = append(flat, a)
			continue
		}
		flat = append(flat, PipelineTerm{kind: KindSequence, steps: []PipelineTerm{a}})
	}
	return PipelineTerm{kind: KindAlternatives, alts: flat}
}

// Or implements the `|` combinator: combines two terms into a Group or
// Alternatives term according to their kinds (spec.md §4.1).
//
//   - Single | Single       -> Group({a, b})
//   - Group  | Single/Group -> Group with the union of members
//   - Sequence | Sequence   -> Alternatives({a, b})
//   - Sequence | Alternatives, or the reverse -> Alternatives with a appended
func (t PipelineTerm) Or(other PipelineTerm) PipelineTerm {
	switch {
	case isEventLike(t) && isEventLike(other):
		return Group(append(append([]EventKind{}, eventsOf(t)...), eventsOf(other)...)...)
	case t.kind == KindSequence && other.kind == KindSequence:
		return Alternatives(t, other)
	case t.kind == KindAlternatives && other.kind == KindSequence:
		return Alternatives(append(append([]PipelineTerm{}, t.alts...), other)...)
	case t.kind == KindSequence && other.kind == KindAlternatives:
		return Alternatives(append([]PipelineTerm{t}, other.alts...)...)
	case t.kind == KindAlternatives && other.kind == KindAlternatives:
		return Alternatives(append(append([]PipelineTerm{}, t.alts...), other.alts...)...)
	default:
		panic("audit: Or between incompatible term kinds")
	}
}

// Then implements the `>>` combinator: concatenates into a Sequence,
// flattening either operand if it is already a Sequence (spec.md §4.1).
func (t PipelineTerm) Then(other PipelineTerm) PipelineTerm {
	return Sequence(t, other)
}

func isEventLike(t PipelineTerm) bool {
	return t.kind == KindSingle || t.kind == KindGroup
}

func eventsOf(t PipelineTerm) []EventKind {
	if t.kind == KindSingle {
		return []EventKind{t.event}
	}
	return t.set
}

func dedupe(kinds []EventKind) []EventKind {
	seen := make(map[EventKind]struct{}, len(kinds))
	out := make([]EventKind, 0, len(kinds))
	for _, k := range kinds {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// ValidationError names the first unsatisfied term in a pipeline, along with
// the observed events and a pretty-printed rendering of the whole pipeline,
// as required by spec.md §4.1.
type ValidationError struct {
	Term     PipelineTerm
	Observed []EventKind
	Pipeline string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("audit pipeline not satisfied: expected %s, observed %v (pipeline: %s)",
		e.Term.String(), e.Observed, e.Pipeline)
}

// Validate checks whether the observed event sequence satisfies the term,
// implementing the greedy forward-scan algorithm of spec.md §4.1. On failure
// it returns a *ValidationError naming the first term that could not be
// matched.
func Validate(term PipelineTerm, observed []EventKind) error {
	if ok, _ := match(term, observed, 0); ok {
		return nil
	}
	failing := firstFailingTerm(term, observed)
	return &ValidationError{Term: failing, Observed: observed, Pipeline: term.String()}
}

// match attempts to satisfy term against observed starting at cursor i,
// returning whether it matched and the cursor position after matching
// (meaningful for Sequence steps; ignored by the top-level Validate caller
// for non-Sequence terms).
func match(term PipelineTerm, observed []EventKind, i int) (bool, int) {
	switch term.kind {
	case KindSingle:
		for j := i; j < len(observed); j++ {
			if observed[j] == term.event {
				return true, j + 1
			}
		}
		return false, i
	case KindGroup:
		for j := i; j < len(observed); j++ {
			if containsEvent(term.set, observed[j]) {
				return true, j + 1
			}
		}
		return false, i
	case KindSequence:
		cursor := i
		for _, step := range term.steps {
			ok, next := match(step, observed, cursor)
			if !ok {
				return false, cursor
			}
			cursor = next
		}
		return true, cursor
	case KindAlternatives:
		for _, alt := range term.alts {
			if ok, next := match(alt, observed, i); ok {
				return true, next
			}
		}
		return false, i
	default:
		return false, i
	}
}

// firstFailingTerm walks a Sequence to find the first step that could not be
// matched, for error reporting. For non-Sequence terms it returns the term
// itself. For Alternatives it returns the term itself (no single alternative
// is "the" failure).
func firstFailingTerm(term PipelineTerm, observed []EventKind) PipelineTerm {
	if term.kind != KindSequence {
		return term
	}
	cursor := 0
	for _, step := range term.steps {
		ok, next := match(step, observed, cursor)
		if !ok {
			return step
		}
		cursor = next
	}
	return term
}

func containsEvent(set []EventKind, k EventKind) bool {
	for _, s := range set {
		if s == k {
			return true
		}
	}
	return false
}

// String renders the term in the `|`/`>>` infix notation for diagnostics.
func (t PipelineTerm) String() string {
	switch t.kind {
	case KindSingle:
		return string(t.event)
	case KindGroup:
		parts := make([]string, len(t.set))
		for i, k := range t.set {
			parts[i] = string(k)
		}
		return "(" + strings.Join(parts, " | ") + ")"
	case KindSequence:
		parts := make([]string, len(t.steps))
		for i, s := range t.steps {
			parts[i] = s.String()
		}
		return strings.Join(parts, " >> ")
	case KindAlternatives:
		parts := make([]string, len(t.alts))
		for i, a := range t.alts {
			parts[i] = a.String()
		}
		return "(" + strings.Join(parts, " || ") + ")"
	default:
		return "<invalid term>"
	}
}
