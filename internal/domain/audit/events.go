// Package audit defines the fixed audit-event vocabulary and the pipeline
// algebra used to declare which event sequences a security operation must
// produce.
package audit

import "strings"

// EventKind identifies a single audit-event type. The vocabulary is closed:
// new kinds are added only by extending the constants below, never by
// constructing arbitrary strings at call sites.
type EventKind string

// Authentication events.
const (
	EventAuthAttempt EventKind = "auth.attempt"
	EventAuthSuccess EventKind = "auth.success"
	EventAuthFailure EventKind = "auth.failure"
	EventAuthLogout  EventKind = "auth.logout"
)

// Authorization events.
const (
	EventAuthzCheck EventKind = "authz.check"
	EventAuthzGrant EventKind = "authz.grant"
	EventAuthzDeny  EventKind = "authz.deny"
)

// Session events.
const (
	EventSessionCreate  EventKind = "session.create"
	EventSessionRefresh EventKind = "session.refresh"
	EventSessionExpire  EventKind = "session.expire"
	EventSessionRevoke  EventKind = "session.revoke"
	EventSessionDestroy EventKind = "session.destroy"
	EventSessionAccess  EventKind = "session.access"
	EventSessionInvalid EventKind = "session.invalid"
)

// User-directory events.
const (
	EventUserCreate EventKind = "user.create"
	EventUserUpdate EventKind = "user.update"
	EventUserDelete EventKind = "user.delete"
	EventUserLock   EventKind = "user.lock"
	EventUserUnlock EventKind = "user.unlock"
)

// Credential events.
const (
	EventCredentialCreate EventKind = "credential.create"
	EventCredentialUpdate EventKind = "credential.update"
	EventCredentialDelete EventKind = "credential.delete"
	EventCredentialVerify EventKind = "credential.verify"
)

// Security and rate-limit events.
const (
	EventSecurityViolation EventKind = "security.violation"
	EventSecurityAnomaly   EventKind = "security.anomaly"
	EventRateLimitExceeded EventKind = "rate_limit.exceeded"
)

// Permission/access events.
const (
	EventPermissionCheck EventKind = "permission.check"
	EventAccessGranted   EventKind = "access.granted"
	EventAccessDenied    EventKind = "access.denied"
)

// sensitiveFieldSet names the key substrings that must never appear as
// metadata keys on an AuditEvent, a Session, a Token payload, or a User
// context. Matching is case-insensitive and checks for substring containment,
// mirroring original_source/serv/auth/session_manager.py's
// _validate_user_context sensitive-key set.
var sensitiveFieldSet = []string{
	"password", "secret", "key", "credential", "hash", "salt", "private",
}

// ContainsSensitiveKey reports whether name matches the sensitive-field set.
func ContainsSensitiveKey(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range sensitiveFieldSet {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
