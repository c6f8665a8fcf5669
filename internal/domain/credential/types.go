// Package credential defines the credential data model and the
// CredentialStore capability contract (spec.md §3, §4.4). Concrete storage
// lives in internal/adapter/outbound/memory.
package credential

import (
	"context"
	"time"

	"github.com/wardenauth/warden/internal/domain/audit"
)

// Kind distinguishes the credential material a Credential record holds.
type Kind string

const (
	KindPassword Kind = "Password"
	KindToken    Kind = "Token"
	KindAPIKey   Kind = "ApiKey"
)

// Credential is the opaque, storage-agnostic record described in spec.md
// §3. Data holds an Argon2id-encoded hash for KindPassword or random token
// bytes for KindToken/KindAPIKey; it is never logged or placed in audit
// metadata.
type Credential struct {
	ID             string
	UserID         string
	Kind           Kind
	Data           []byte
	Purpose        string
	CreatedAt      time.Time
	LastUsed       time.Time
	FailedAttempts int
	LockedUntil    *time.Time
	ExpiresAt      *time.Time
	IsActive       bool
}

// IsLocked reports whether the credential is currently in its lockout
// window.
func (c *Credential) IsLocked(now time.Time) bool {
	return c.LockedUntil != nil && now.Before(*c.LockedUntil)
}

// Policy configures password acceptability, enforced at create/update time
// (spec.md §4.4 "Password policy").
type Policy struct {
	MinLength        int
	RequireLowercase bool
	RequireUppercase bool
	RequireDigit     bool
	RequireSymbol    bool
}

// LockoutPolicy configures the failed-attempt lockout state machine
// (spec.md §4.4).
type LockoutPolicy struct {
	MaxFailedAttempts int
	LockoutDuration   time.Duration
}

// CompromiseChecker optionally checks whether a plaintext password has
// appeared in a known breach corpus. The default implementation always
// returns false; the interface forbids implementations from transmitting
// the plaintext anywhere except the check itself (spec.md §4.4 "Compromise
// check").
type CompromiseChecker interface {
	IsCompromised(ctx context.Context, plaintext string) (bool, error)
}

// NeverCompromised is the default CompromiseChecker.
type NeverCompromised struct{}

func (NeverCompromised) IsCompromised(ctx context.Context, plaintext string) (bool, error) {
	return false, nil
}

// VerifyOutcome distinguishes why Verify succeeded or failed, used to pick
// the audit metadata outcome value and to decide whether the lockout counter
// advances.
type VerifyOutcome string

const (
	OutcomeSuccess VerifyOutcome = "success"
	OutcomeFailure VerifyOutcome = "failure"
	OutcomeLocked  VerifyOutcome = "locked"
)

// Statistics summarizes store-wide credential state for admin introspection
// (spec.md §9 supplement, grounded in
// original_source/serv/bundled/auth/memory/credential.py's
// get_statistics). It exposes no hash material.
type Statistics struct {
	Total           int
	Active          int
	Locked          int
	ByKind          map[Kind]int
}

// Metadata is the introspection-safe view of a Credential, omitting Data
// (spec.md §9 supplement, get_credential_metadata).
type Metadata struct {
	ID             string
	UserID         string
	Kind           Kind
	Purpose        string
	CreatedAt      time.Time
	LastUsed       time.Time
	FailedAttempts int
	LockedUntil    *time.Time
	ExpiresAt      *time.Time
	IsActive       bool
}

// Store is the credential-provider capability contract (spec.md §4.4). Each
// operation's required audit events are enumerated in its doc comment; a
// concrete implementation wraps its method bodies with
// enforcement.Run(journal, ..., term, ...) using these terms.
type Store interface {
	// CreateCredentials stores a new credential for a user. purpose and ttl
	// apply only to KindToken/KindAPIKey (spec.md §4.4 "Opaque tokens"): ttl
	// <= 0 stores a token that never expires. Both are ignored for
	// KindPassword. Required event: credential.create.
	CreateCredentials(ctx context.Context, journal *audit.Journal, userID string, kind Kind, secret string, purpose string, ttl time.Duration) (*Credential, error)

	// VerifyCredentials checks a candidate secret against the stored
	// credential, applying the lockout state machine for KindPassword.
	// For KindToken/KindAPIKey, verification additionally requires the
	// supplied purpose to match the one the token was created with and
	// that the token has not passed its expires_at (spec.md §4.4); purpose
	// is ignored for KindPassword. Required event: credential.verify.
	VerifyCredentials(ctx context.Context, journal *audit.Journal, userID string, kind Kind, candidate string, purpose string) (bool, VerifyOutcome, error)

	// UpdateCredentials replaces the stored secret and resets lockout state.
	// Required event: credential.update.
	UpdateCredentials(ctx context.Context, journal *audit.Journal, userID string, kind Kind, newSecret string) error

	// DeleteCredentials removes a credential. Required event:
	// credential.delete.
	DeleteCredentials(ctx context.Context, journal *audit.Journal, userID string, kind Kind) error

	// GetStatistics returns store-wide counts. Not pipeline-guarded: it is
	// an introspection operation, not a security decision.
	GetStatistics(ctx context.Context) (Statistics, error)

	// GetCredentialMetadata returns the introspection-safe view of a stored
	// credential. Not pipeline-guarded.
	GetCredentialMetadata(ctx context.Context, userID string, kind Kind) (*Metadata, error)
}
