// Package enforcement implements the audit-pipeline enforcement harness:
// wrapping a guarded operation so that its emitted events are checked
// against a declared PipelineTerm, on every return path.
//
// The source material (original_source/serv/auth/audit/enforcement.py) uses
// a runtime metaclass plus `__getattribute__` interception to auto-wrap
// methods, keyed by a weak-reference (class, method-name) -> term cache.
// Per spec.md §9's redesign notes, Go has no runtime metaclasses and no weak
// references to type objects, so the harness is an explicit wrapper function
// applied at provider construction, and the cache key is a stable hash of
// the type name plus method name rather than a weak reference.
package enforcement

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/wardenauth/warden/internal/domain/audit"
)

// Registry is the process-wide (type, method) -> PipelineTerm cache
// described in spec.md §4.2's MRO-resolution paragraph. Concrete providers
// register the term for each guarded method once, typically in an init-time
// call; the harness looks it up by the same key on every call.
//
// Protected by a reader-writer lock: many reads, rare writes on first
// registration of a new method, matching the concurrency model in spec.md
// §5.
type Registry struct {
	mu    sync.RWMutex
	terms map[uint64]audit.PipelineTerm
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{terms: make(map[uint64]audit.PipelineTerm)}
}

// Key derives a stable cache key from a type name and method name. Using a
// name hash rather than a reflect.Type pointer or weak reference means the
// key survives across process restarts and is independent of GC identity,
// matching spec.md §9's "key cache on stable class identifier (type_id)"
// guidance.
func Key(typeName, methodName string) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(typeName)
	_, _ = h.WriteString("#")
	_, _ = h.WriteString(methodName)
	return h.Sum64()
}

// Register associates term with the (typeName, methodName) pair. Concrete
// providers that override a base method's pipeline requirement call this
// once per method with their own type name; since Go has no base-class
// method resolution order to walk, "most-derived wins" reduces to "whichever
// registration happens last for that key," which is the provider's own
// registration performed during construction.
func (r *Registry) Register(typeName, methodName string, term audit.PipelineTerm) {
	key := Key(typeName, methodName)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.terms[key] = term
}

// Lookup resolves the term registered for (typeName, methodName).
func (r *Registry) Lookup(typeName, methodName string) (audit.PipelineTerm, bool) {
	key := Key(typeName, methodName)
	r.mu.RLock()
	defer r.mu.RUnlock()
	term, ok := r.terms[key]
	return term, ok
}
