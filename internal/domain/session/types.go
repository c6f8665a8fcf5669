// Package session defines the session data model and the SessionManager
// capability contract (spec.md §3, §4.5).
package session

import (
	"context"
	"time"

	"github.com/wardenauth/warden/internal/domain/audit"
)

// Session is an opaque, cryptographically-random-id artifact binding a
// caller to a user for a bounded lifetime (spec.md §3).
type Session struct {
	ID                string
	UserID            string
	CreatedAt         time.Time
	ExpiresAt         time.Time
	LastAccessed      time.Time
	LastRefresh       time.Time
	DeviceFingerprint string
	IPAddress         string
	UserAgent         string
	AccessCount       int
}

// IsExpired reports whether the session has exceeded its timeout.
func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Config bounds a SessionManager's behavior (spec.md §4.5).
type Config struct {
	DefaultSessionTTL          time.Duration
	MaxSessionTTL              time.Duration
	MaxConcurrentSessions      int
	RequireIPValidation        bool
	RequireUserAgentValidation bool
	ExtendOnAccess             bool
	SessionRefreshThreshold    time.Duration
	TimingProtectionBudget     time.Duration
}

// ValidateParams carries the caller-supplied context used to detect session
// hijacking (spec.md §4.5 "Validate").
type ValidateParams struct {
	SessionID         string
	DeviceFingerprint string
	IPAddress         string
	UserAgent         string
}

// Manager is the session-provider capability contract (spec.md §4.5). Each
// operation's required audit events are enumerated in its doc comment.
type Manager interface {
	// Create starts a new session bound to userID, enforcing
	// MaxConcurrentSessions by evicting the oldest session when the limit is
	// reached. Required event: session.create.
	Create(ctx context.Context, journal *audit.Journal, userID, deviceFingerprint string, requestedTTL time.Duration) (*Session, error)

	// Validate looks up a session and checks its expiry and, if configured,
	// IP/user-agent binding. On success it updates LastAccessed and
	// AccessCount and optionally extends ExpiresAt.
	//
	// Required events: session.expire on TTL expiry, security.violation on
	// fingerprint/IP/UA mismatch, session.access on success.
	Validate(ctx context.Context, journal *audit.Journal, params ValidateParams) (*Session, error)

	// Refresh extends a session's expiry, but only if
	// SessionRefreshThreshold has elapsed since the last refresh, to prevent
	// hot refresh loops. Required event: session.refresh (only emitted when
	// the threshold gate allows the extension).
	Refresh(ctx context.Context, journal *audit.Journal, sessionID string) (*Session, error)

	// Destroy removes a session. Idempotent: destroying an absent session
	// returns (false, nil). Required event: session.destroy.
	Destroy(ctx context.Context, journal *audit.Journal, sessionID string) (bool, error)

	// DestroyUserSessions removes every session belonging to userID,
	// returning the count removed.
	DestroyUserSessions(ctx context.Context, journal *audit.Journal, userID string) (int, error)

	// CleanupExpired sweeps and removes sessions whose ExpiresAt has
	// passed, returning the count removed. Invoked by a background task.
	CleanupExpired(ctx context.Context) (int, error)
}
