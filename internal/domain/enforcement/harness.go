package enforcement

import (
	"strings"

	"github.com/wardenauth/warden/internal/domain/audit"
	"github.com/wardenauth/warden/internal/domain/wardenerr"
)

// defaultRegistry is the process-wide (type, method) -> PipelineTerm cache
// every Run/RunValue call resolves its term through, per spec.md §4.2's
// MRO-resolution paragraph: the first call for a given qualifiedName
// registers its term, and every subsequent call for that name is served
// from the registry rather than from the literal passed in, so a provider
// that's reconstructed with the same qualifiedName cannot silently drift
// its pipeline requirement.
var defaultRegistry = NewRegistry()

// resolveTerm splits qualifiedName ("TypeName.MethodName") into the
// Registry's (typeName, methodName) key pair, registering term on first use
// and returning whatever term is on record for that pair thereafter.
func resolveTerm(qualifiedName string, term audit.PipelineTerm) audit.PipelineTerm {
	typeName, methodName := splitQualifiedName(qualifiedName)
	if cached, ok := defaultRegistry.Lookup(typeName, methodName); ok {
		return cached
	}
	defaultRegistry.Register(typeName, methodName, term)
	return term
}

func splitQualifiedName(qualifiedName string) (typeName, methodName string) {
	idx := strings.LastIndex(qualifiedName, ".")
	if idx < 0 {
		return "", qualifiedName
	}
	return qualifiedName[:idx], qualifiedName[idx+1:]
}

// Run wraps a guarded operation identified by qualifiedName: it records the
// journal's watermark, invokes fn, and validates the events fn emitted
// against term, on every return path (spec.md §4.2).
//
// Failure semantics (spec.md §4.2, §5 Cancellation, §7 taxonomy item 1):
//   - If fn returns nil and validation succeeds, Run returns nil.
//   - If fn returns an error and validation succeeds, Run returns fn's error
//     unchanged (audit integrity is fine; the caller's error is primary).
//   - If validation fails, Run returns *wardenerr.AuditRequirementError
//     regardless of whether fn itself errored — an in-flight error is
//     chained via errors.Unwrap, never silently dropped, but no longer the
//     value returned to the caller.
//
// Because Go has no implicit task cancellation that bypasses a return
// statement, "validate even under cancellation" (spec.md §5) is satisfied by
// construction: fn is expected to observe ctx.Done() itself and return
// promptly, after which Run still runs the validation step below.
func Run(j *audit.Journal, qualifiedName string, term audit.PipelineTerm, fn func() error) error {
	term = resolveTerm(qualifiedName, term)
	start := j.LastPosition()
	callErr := fn()
	observed := j.EventsAfter(start)

	if verr := audit.Validate(term, observed); verr != nil {
		return wardenerr.NewAuditRequirementError(qualifiedName, term.String(), eventStrings(observed), callErr)
	}
	return callErr
}

// RunValue is Run for operations that also produce a value, such as
// SessionManager.Create returning a *session.Session.
func RunValue[T any](j *audit.Journal, qualifiedName string, term audit.PipelineTerm, fn func() (T, error)) (T, error) {
	term = resolveTerm(qualifiedName, term)
	start := j.LastPosition()
	val, callErr := fn()
	observed := j.EventsAfter(start)

	if verr := audit.Validate(term, observed); verr != nil {
		var zero T
		return zero, wardenerr.NewAuditRequirementError(qualifiedName, term.String(), eventStrings(observed), callErr)
	}
	return val, callErr
}

func eventStrings(kinds []audit.EventKind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}
