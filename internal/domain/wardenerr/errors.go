// Package wardenerr defines the typed error taxonomy security callers and
// the enforcement harness surface, mirroring
// original_source/serv/auth/exceptions.py's hierarchy without inheritance:
// each kind is its own concrete type implementing error, distinguished with
// errors.As rather than isinstance.
package wardenerr

import "fmt"

// base carries the fields common to every Warden error: a human-readable
// message and a details map that must never contain sensitive data (spec.md
// §6 "no sensitive data may be placed in either").
type base struct {
	Message string
	Details map[string]any
}

func (b base) Error() string {
	if b.Message == "" {
		return "warden: error"
	}
	return b.Message
}

// AuthenticationError reports invalid credentials, an expired session, or a
// locked account at the authentication boundary.
type AuthenticationError struct{ base }

// NewAuthenticationError constructs an AuthenticationError.
func NewAuthenticationError(message string, details map[string]any) *AuthenticationError {
	return &AuthenticationError{base{Message: message, Details: details}}
}

// AuthorizationError reports a policy-engine deny.
type AuthorizationError struct{ base }

func NewAuthorizationError(message string, details map[string]any) *AuthorizationError {
	return &AuthorizationError{base{Message: message, Details: details}}
}

// AuthValidationError reports malformed input or sensitive data present in a
// payload that must be rejected at construction time.
type AuthValidationError struct{ base }

func NewAuthValidationError(message string, details map[string]any) *AuthValidationError {
	return &AuthValidationError{base{Message: message, Details: details}}
}

// SessionExpiredError reports that a session's TTL has elapsed.
type SessionExpiredError struct{ base }

func NewSessionExpiredError(message string, details map[string]any) *SessionExpiredError {
	return &SessionExpiredError{base{Message: message, Details: details}}
}

// InvalidCredentialsError reports a credential verification failure that is
// not a lockout.
type InvalidCredentialsError struct{ base }

func NewInvalidCredentialsError(message string, details map[string]any) *InvalidCredentialsError {
	return &InvalidCredentialsError{base{Message: message, Details: details}}
}

// PermissionDeniedError reports denial of a specific permission, optionally
// against a named resource.
type PermissionDeniedError struct {
	base
	Permission string
	Resource   string
}

func NewPermissionDeniedError(permission, resource, message string, details map[string]any) *PermissionDeniedError {
	return &PermissionDeniedError{base{Message: message, Details: details}, permission, resource}
}

func (e *PermissionDeniedError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("permission denied: %s on %s", e.Permission, e.Resource)
	}
	return fmt.Sprintf("permission denied: %s", e.Permission)
}

// AuditRequirementError reports that a guarded call failed to emit the event
// sequence its pipeline requires (spec.md §4.2, §7 taxonomy item 1). It is
// the only error the enforcement harness is permitted to substitute for an
// in-flight error from the wrapped call; the original error, if any, is
// reachable via errors.Unwrap.
type AuditRequirementError struct {
	base
	MethodName string
	Expected   string
	Actual     []string
	cause      error
}

func NewAuditRequirementError(methodName, expected string, actual []string, cause error) *AuditRequirementError {
	return &AuditRequirementError{
		base:       base{Message: fmt.Sprintf("audit requirement not satisfied for %s", methodName)},
		MethodName: methodName,
		Expected:   expected,
		Actual:     actual,
		cause:      cause,
	}
}

func (e *AuditRequirementError) Error() string {
	return fmt.Sprintf("audit requirement not satisfied for %s: expected %s, observed %v",
		e.MethodName, e.Expected, e.Actual)
}

// Unwrap exposes the wrapped call's original error, if the call both raised
// and failed audit validation (spec.md §9 open question: Warden chooses
// replacement with Go-native chaining over silent discard).
func (e *AuditRequirementError) Unwrap() error { return e.cause }

// ConfigurationError reports a startup-time configuration failure.
type ConfigurationError struct{ base }

func NewConfigurationError(message string, details map[string]any) *ConfigurationError {
	return &ConfigurationError{base{Message: message, Details: details}}
}

// ProviderErrorKind distinguishes the two provider-operational failure modes
// named in spec.md §6.
type ProviderErrorKind int

const (
	ProviderNotFound ProviderErrorKind = iota
	ProviderInitFailed
)

// ProviderError reports a storage or crypto-library failure from a provider
// implementation.
type ProviderError struct {
	base
	Kind  ProviderErrorKind
	cause error
}

func NewProviderError(kind ProviderErrorKind, message string, cause error) *ProviderError {
	return &ProviderError{base: base{Message: message}, Kind: kind, cause: cause}
}

func (e *ProviderError) Unwrap() error { return e.cause }
