package memory

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/wardenauth/warden/internal/domain/audit"
	"github.com/wardenauth/warden/internal/domain/session"
)

func newTestSessionManager() *SessionManager {
	return NewSessionManager(session.Config{
		DefaultSessionTTL:          time.Hour,
		MaxSessionTTL:              2 * time.Hour,
		MaxConcurrentSessions:      2,
		RequireIPValidation:        true,
		SessionRefreshThreshold:    time.Minute,
	})
}

func TestSessionManager_CreateAndValidate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newTestSessionManager()
	j := audit.NewJournal(ctx, nil)

	sess, err := m.Create(ctx, j, "alice", "fp-A", 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := m.Validate(ctx, j, session.ValidateParams{SessionID: sess.ID})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got.UserID != "alice" {
		t.Fatalf("expected alice, got %s", got.UserID)
	}
}

// TestSessionManager_HijackDetectionFingerprint implements spec.md §8
// end-to-end scenario 3: validating with a mismatched device fingerprint
// deletes the session and reports failure, since device_fingerprint set at
// creation is immutable and validation requires exact equality (spec.md §3).
func TestSessionManager_HijackDetectionFingerprint(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newTestSessionManager()
	j := audit.NewJournal(ctx, nil)

	sess, err := m.Create(ctx, j, "alice", "fp-A", 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = m.Validate(ctx, j, session.ValidateParams{SessionID: sess.ID, DeviceFingerprint: "fp-B"})
	if err == nil {
		t.Fatal("expected fingerprint mismatch to fail validation")
	}

	if _, err := m.Validate(ctx, j, session.ValidateParams{SessionID: sess.ID}); err == nil {
		t.Fatal("expected session to have been deleted after fingerprint mismatch")
	}
}

// TestSessionManager_HijackDetectionIP covers the IP-binding surface of the
// same hijack-detection contract, gated by RequireIPValidation.
func TestSessionManager_HijackDetectionIP(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newTestSessionManager()
	j := audit.NewJournal(ctx, nil)

	sess, err := m.Create(ctx, j, "alice", "fp-A", 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	m.mu.Lock()
	m.byID[sess.ID].IPAddress = "10.0.0.1"
	m.mu.Unlock()

	_, err = m.Validate(ctx, j, session.ValidateParams{SessionID: sess.ID, IPAddress: "10.0.0.2"})
	if err == nil {
		t.Fatal("expected hijack detection to fail validation")
	}

	if _, err := m.Validate(ctx, j, session.ValidateParams{SessionID: sess.ID}); err == nil {
		t.Fatal("expected session to have been deleted after hijack detection")
	}
}

func TestSessionManager_MaxConcurrentSessionsEvictsOldest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newTestSessionManager()
	j := audit.NewJournal(ctx, nil)

	first, err := m.Create(ctx, j, "bob", "fp-1", 0)
	if err != nil {
		t.Fatalf("create 1: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	if _, err := m.Create(ctx, j, "bob", "fp-2", 0); err != nil {
		t.Fatalf("create 2: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	if _, err := m.Create(ctx, j, "bob", "fp-3", 0); err != nil {
		t.Fatalf("create 3: %v", err)
	}

	if _, err := m.Validate(ctx, j, session.ValidateParams{SessionID: first.ID}); err == nil {
		t.Fatal("expected oldest session to have been evicted")
	}
}

func TestSessionManager_RefreshThrottledByThreshold(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newTestSessionManager()
	j := audit.NewJournal(ctx, nil)

	sess, err := m.Create(ctx, j, "carol", "fp-A", 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	before := sess.ExpiresAt

	got, err := m.Refresh(ctx, j, sess.ID)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if !got.ExpiresAt.Equal(before) {
		t.Fatal("expected refresh within threshold window to be a no-op")
	}
}

func TestSessionManager_DestroyIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newTestSessionManager()
	j := audit.NewJournal(ctx, nil)

	sess, err := m.Create(ctx, j, "dave", "fp-A", 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	ok1, err := m.Destroy(ctx, j, sess.ID)
	if err != nil || !ok1 {
		t.Fatalf("first destroy: ok=%v err=%v", ok1, err)
	}
	ok2, err := m.Destroy(ctx, j, sess.ID)
	if err != nil || ok2 {
		t.Fatalf("second destroy: expected false/no-error, got ok=%v err=%v", ok2, err)
	}
}

func TestSessionManager_CleanupStopsGoroutine(t *testing.T) {
	defer goleak.VerifyNone(t)
	t.Parallel()
	m := newTestSessionManager()
	m.cleanupEvery = time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	m.StartCleanup(ctx)
	cancel()
	m.Stop()
}
