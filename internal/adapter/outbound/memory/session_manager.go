package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/wardenauth/warden/internal/domain/audit"
	"github.com/wardenauth/warden/internal/domain/enforcement"
	"github.com/wardenauth/warden/internal/domain/session"
	"github.com/wardenauth/warden/internal/domain/timing"
	"github.com/wardenauth/warden/internal/domain/wardenerr"
)

// DefaultSessionCleanupInterval matches the teacher's default background
// sweep cadence.
const DefaultSessionCleanupInterval = 1 * time.Minute

// SessionManager implements session.Manager in memory: a session-by-id map,
// a user-to-session-ids index, and a per-user lock registry serializing
// concurrent mutation of that user's sessions (spec.md §4.5, §5).
type SessionManager struct {
	mu           sync.RWMutex
	byID         map[string]*session.Session
	byUser       map[string]map[string]struct{}
	userLocks    *keyedMutex
	cfg          session.Config
	stopChan     chan struct{}
	wg           sync.WaitGroup
	once         sync.Once
	cleanupEvery time.Duration
	logger       *slog.Logger
}

// NewSessionManager creates an in-memory session manager.
func NewSessionManager(cfg session.Config) *SessionManager {
	if cfg.DefaultSessionTTL == 0 {
		cfg.DefaultSessionTTL = 30 * time.Minute
	}
	if cfg.MaxSessionTTL == 0 {
		cfg.MaxSessionTTL = 24 * time.Hour
	}
	return &SessionManager{
		byID:         make(map[string]*session.Session),
		byUser:       make(map[string]map[string]struct{}),
		userLocks:    newKeyedMutex(),
		cfg:          cfg,
		stopChan:     make(chan struct{}),
		cleanupEvery: DefaultSessionCleanupInterval,
		logger:       slog.Default(),
	}
}

// StartCleanup launches the background sweep goroutine removing expired
// sessions, stopped by ctx cancellation or Stop().
func (m *SessionManager) StartCleanup(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cleanupEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopChan:
				return
			case <-ticker.C:
				if n, err := m.CleanupExpired(ctx); err == nil && n > 0 {
					m.logger.Debug("session cleanup completed", "removed", n)
				}
			}
		}
	}()
}

// Stop gracefully stops the cleanup goroutine. Safe to call multiple times.
func (m *SessionManager) Stop() {
	m.once.Do(func() { close(m.stopChan) })
	m.wg.Wait()
}

const sessionTypeName = "memory.SessionManager"

var sessionCreateTerm = audit.Single(audit.EventSessionCreate)

// Create generates a 256-bit random session id and enforces
// MaxConcurrentSessions by evicting the oldest session first.
func (m *SessionManager) Create(ctx context.Context, journal *audit.Journal, userID, deviceFingerprint string, requestedTTL time.Duration) (*session.Session, error) {
	return enforcement.RunValue(journal, sessionTypeName+".Create", sessionCreateTerm, func() (*session.Session, error) {
		ttl := m.cfg.DefaultSessionTTL
		if requestedTTL > 0 && requestedTTL < m.cfg.MaxSessionTTL {
			ttl = requestedTTL
		} else if requestedTTL >= m.cfg.MaxSessionTTL {
			ttl = m.cfg.MaxSessionTTL
		}

		id, err := generateSessionID()
		if err != nil {
			return nil, wardenerr.NewProviderError(wardenerr.ProviderInitFailed, "failed to generate session id", err)
		}

		now := time.Now().UTC()
		sess := &session.Session{
			ID:                id,
			UserID:            userID,
			CreatedAt:         now,
			ExpiresAt:         now.Add(ttl),
			LastAccessed:      now,
			LastRefresh:       now,
			DeviceFingerprint: deviceFingerprint,
		}

		var evictedID string
		m.userLocks.With(userID, func() {
			m.mu.Lock()
			defer m.mu.Unlock()

			set, ok := m.byUser[userID]
			if !ok {
				set = make(map[string]struct{})
				m.byUser[userID] = set
			}
			if m.cfg.MaxConcurrentSessions > 0 && len(set) >= m.cfg.MaxConcurrentSessions {
				evictedID = m.oldestSessionLocked(set)
				if evictedID != "" {
					delete(set, evictedID)
					delete(m.byID, evictedID)
				}
			}
			set[id] = struct{}{}
			m.byID[id] = sess
		})

		journal.Emit(audit.EventSessionCreate, map[string]any{"user_id": userID, "session_id": id})
		if evictedID != "" {
			journal.Emit(audit.EventSessionDestroy, map[string]any{"user_id": userID, "session_id": evictedID, "reason": "max_concurrent_sessions"})
		}
		return cloneSession(sess), nil
	})
}

// oldestSessionLocked must be called with m.mu held. It returns the id of
// the session with the smallest CreatedAt in set, or "" if set is empty.
func (m *SessionManager) oldestSessionLocked(set map[string]struct{}) string {
	var oldestID string
	var oldestAt time.Time
	for id := range set {
		sess, ok := m.byID[id]
		if !ok {
			continue
		}
		if oldestID == "" || sess.CreatedAt.Before(oldestAt) {
			oldestID = id
			oldestAt = sess.CreatedAt
		}
	}
	return oldestID
}

// Validate implements spec.md §4.5's five-step lookup, wrapped in a
// minimum-duration timing-protection budget so that "not found", "expired",
// and "fingerprint mismatch" paths are indistinguishable from success by
// wall-clock timing.
func (m *SessionManager) Validate(ctx context.Context, journal *audit.Journal, params session.ValidateParams) (*session.Session, error) {
	// The enforcement harness's own watermark/validate bracket subsumes
	// timing here; validate's pipeline term varies by outcome, so Validate
	// is wrapped directly rather than through enforcement.RunValue with a
	// single fixed term (spec.md doesn't give Validate a single required
	// event set the way Create/Destroy have one).
	return timing.ProtectValue(m.cfg.TimingProtectionBudget, func() (*session.Session, error) {
		m.mu.Lock()
		sess, ok := m.byID[params.SessionID]
		if !ok {
			m.mu.Unlock()
			journal.Emit(audit.EventSessionInvalid, map[string]any{"session_id": params.SessionID, "reason": "not_found"})
			return nil, wardenerr.NewSessionExpiredError("session not found", nil)
		}

		now := time.Now().UTC()
		if sess.IsExpired(now) {
			m.deleteLocked(sess.UserID, sess.ID)
			m.mu.Unlock()
			journal.Emit(audit.EventSessionExpire, map[string]any{"user_id": sess.UserID, "session_id": sess.ID})
			return nil, wardenerr.NewSessionExpiredError("session expired", nil)
		}

		if params.DeviceFingerprint != "" && sess.DeviceFingerprint != "" && sess.DeviceFingerprint != params.DeviceFingerprint {
			m.deleteLocked(sess.UserID, sess.ID)
			m.mu.Unlock()
			journal.Emit(audit.EventSecurityViolation, map[string]any{"user_id": sess.UserID, "session_id": sess.ID, "reason": "fingerprint_mismatch"})
			return nil, wardenerr.NewAuthenticationError("session fingerprint mismatch", nil)
		}

		if m.cfg.RequireIPValidation && params.IPAddress != "" && sess.IPAddress != "" && sess.IPAddress != params.IPAddress {
			m.deleteLocked(sess.UserID, sess.ID)
			m.mu.Unlock()
			journal.Emit(audit.EventSecurityViolation, map[string]any{"user_id": sess.UserID, "session_id": sess.ID, "reason": "ip_mismatch"})
			return nil, wardenerr.NewAuthenticationError("session ip mismatch", nil)
		}

		if m.cfg.RequireUserAgentValidation && params.UserAgent != "" && sess.UserAgent != "" && sess.UserAgent != params.UserAgent {
			m.deleteLocked(sess.UserID, sess.ID)
			m.mu.Unlock()
			journal.Emit(audit.EventSecurityViolation, map[string]any{"user_id": sess.UserID, "session_id": sess.ID, "reason": "user_agent_mismatch"})
			return nil, wardenerr.NewAuthenticationError("session user agent mismatch", nil)
		}

		sess.LastAccessed = now
		sess.AccessCount++
		if m.cfg.ExtendOnAccess {
			sess.ExpiresAt = now.Add(m.cfg.DefaultSessionTTL)
		}
		result := cloneSession(sess)
		m.mu.Unlock()

		journal.Emit(audit.EventSessionAccess, map[string]any{"user_id": sess.UserID, "session_id": sess.ID})
		return result, nil
	})
}

// Refresh extends expiry only if SessionRefreshThreshold has elapsed since
// the last refresh, preventing hot refresh loops (spec.md §4.5).
func (m *SessionManager) Refresh(ctx context.Context, journal *audit.Journal, sessionID string) (*session.Session, error) {
	m.mu.Lock()
	sess, ok := m.byID[sessionID]
	if !ok {
		m.mu.Unlock()
		return nil, wardenerr.NewSessionExpiredError("session not found", nil)
	}

	now := time.Now().UTC()
	if now.Sub(sess.LastRefresh) < m.cfg.SessionRefreshThreshold {
		result := cloneSession(sess)
		m.mu.Unlock()
		return result, nil
	}

	sess.ExpiresAt = now.Add(m.cfg.DefaultSessionTTL)
	sess.LastRefresh = now
	result := cloneSession(sess)
	m.mu.Unlock()

	journal.Emit(audit.EventSessionRefresh, map[string]any{"user_id": sess.UserID, "session_id": sessionID})
	return result, nil
}

// Destroy removes a session. Idempotent: destroying an absent session
// returns (false, nil) rather than an error.
func (m *SessionManager) Destroy(ctx context.Context, journal *audit.Journal, sessionID string) (bool, error) {
	m.mu.Lock()
	sess, ok := m.byID[sessionID]
	if !ok {
		m.mu.Unlock()
		return false, nil
	}
	m.deleteLocked(sess.UserID, sessionID)
	m.mu.Unlock()

	journal.Emit(audit.EventSessionDestroy, map[string]any{"user_id": sess.UserID, "session_id": sessionID})
	return true, nil
}

// DestroyUserSessions removes every session belonging to userID.
func (m *SessionManager) DestroyUserSessions(ctx context.Context, journal *audit.Journal, userID string) (int, error) {
	m.mu.Lock()
	set, ok := m.byUser[userID]
	if !ok {
		m.mu.Unlock()
		return 0, nil
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	for _, id := range ids {
		delete(m.byID, id)
	}
	delete(m.byUser, userID)
	m.mu.Unlock()

	for _, id := range ids {
		journal.Emit(audit.EventSessionDestroy, map[string]any{"user_id": userID, "session_id": id})
	}
	return len(ids), nil
}

// CleanupExpired sweeps and removes sessions whose ExpiresAt has passed.
func (m *SessionManager) CleanupExpired(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, sess := range m.byID {
		if sess.IsExpired(now) {
			m.deleteLocked(sess.UserID, id)
			removed++
		}
	}
	return removed, nil
}

// deleteLocked must be called with m.mu held.
func (m *SessionManager) deleteLocked(userID, sessionID string) {
	delete(m.byID, sessionID)
	if set, ok := m.byUser[userID]; ok {
		delete(set, sessionID)
		if len(set) == 0 {
			delete(m.byUser, userID)
		}
	}
}

// generateSessionID produces a 256-bit random identifier, hex-encoded
// (spec.md §3 "cryptographically random, >=128 bits of entropy").
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func cloneSession(s *session.Session) *session.Session {
	clone := *s
	return &clone
}

var _ session.Manager = (*SessionManager)(nil)
