// Package timing provides the minimum-duration wrapper used by the session
// manager and the JWT token service so that branching on "not found",
// "expired", or "invalid signature" is not observable via wall-clock timing
// (spec.md §4.5, §4.7). Generalized from the inline `timing_protection`
// helper in original_source/serv/auth/session_manager.py into a single
// reusable wrapper rather than duplicating it per provider.
package timing

import "time"

// Protect runs fn and blocks until at least budget has elapsed since it
// started, regardless of which branch fn took internally. The zero value of
// budget disables protection (fn's own duration is returned unchanged).
func Protect(budget time.Duration, fn func() error) error {
	start := time.Now()
	err := fn()
	if budget <= 0 {
		return err
	}
	if elapsed := time.Since(start); elapsed < budget {
		time.Sleep(budget - elapsed)
	}
	return err
}

// ProtectValue is Protect for functions that also return a value.
func ProtectValue[T any](budget time.Duration, fn func() (T, error)) (T, error) {
	start := time.Now()
	val, err := fn()
	if budget <= 0 {
		return val, err
	}
	if elapsed := time.Since(start); elapsed < budget {
		time.Sleep(budget - elapsed)
	}
	return val, err
}
