package audit

import "time"

// Decision is the recorded outcome of a security-relevant operation, stored
// on an AuditEvent. None means the event carries no decision (e.g. session
// lifecycle events).
type Decision string

const (
	DecisionAllow   Decision = "allow"
	DecisionDeny    Decision = "deny"
	DecisionAbstain Decision = "abstain"
	DecisionNone    Decision = ""
)

// Severity labels an AuditEvent for downstream filtering, inferred by
// InferSeverity per spec.md §4.3.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityWarn   Severity = "warning"
)

// Event is the persistent, immutable audit record (spec.md §3 AuditEvent).
// Metadata keys matching the sensitive-field set are redacted by the sink
// before storage, not by the caller; constructing an Event does not itself
// validate.
type Event struct {
	ID        string
	Kind      EventKind
	Timestamp time.Time
	UserID    string
	SessionID string
	Resource  string
	Action    string
	Decision  Decision
	Metadata  map[string]any
	IPAddress string
	UserAgent string
	Severity  Severity
}

// InferSeverity assigns a Severity to an event per spec.md §4.3: auth
// failures, authz denies, any security.* kind, and rate-limit-exceeded are
// "warning"; user deletion and session revocation are "medium"; everything
// else is "low". An explicit outcome of failure/error/denied in metadata
// escalates to "warning" regardless of kind.
func InferSeverity(kind EventKind, metadataOutcome string) Severity {
	switch {
	case kind == EventAuthFailure,
		kind == EventAuthzDeny,
		isSecurityKind(kind),
		kind == EventRateLimitExceeded:
		return SeverityWarn
	case kind == EventUserDelete, kind == EventSessionRevoke:
		return SeverityMedium
	}
	switch metadataOutcome {
	case "failure", "error", "denied":
		return SeverityWarn
	}
	return SeverityLow
}

func isSecurityKind(kind EventKind) bool {
	return len(kind) >= len("security.") && kind[:len("security.")] == "security."
}
