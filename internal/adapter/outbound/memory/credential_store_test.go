package memory

import (
	"context"
	"testing"
	"time"

	"github.com/wardenauth/warden/internal/domain/audit"
	"github.com/wardenauth/warden/internal/domain/credential"
)

func newTestCredentialStore() *CredentialStore {
	return NewCredentialStore(
		credential.Policy{MinLength: 8},
		credential.LockoutPolicy{MaxFailedAttempts: 3, LockoutDuration: time.Hour},
	)
}

func TestCredentialStore_CreateAndVerifyPassword(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestCredentialStore()
	j := audit.NewJournal(ctx, nil)

	if _, err := store.CreateCredentials(ctx, j, "alice", credential.KindPassword, "P@ssword01", "", 0); err != nil {
		t.Fatalf("create: %v", err)
	}

	ok, outcome, err := store.VerifyCredentials(ctx, j, "alice", credential.KindPassword, "P@ssword01", "")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok || outcome != credential.OutcomeSuccess {
		t.Fatalf("expected success, got ok=%v outcome=%v", ok, outcome)
	}
}

// TestCredentialStore_LockoutAfterThreeFailures implements spec.md §8
// end-to-end scenario 2.
func TestCredentialStore_LockoutAfterThreeFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestCredentialStore()
	j := audit.NewJournal(ctx, nil)

	if _, err := store.CreateCredentials(ctx, j, "alice", credential.KindPassword, "P@ssword01", "", 0); err != nil {
		t.Fatalf("create: %v", err)
	}

	for i := 0; i < 3; i++ {
		ok, outcome, err := store.VerifyCredentials(ctx, j, "alice", credential.KindPassword, "wrong", "")
		if err != nil {
			t.Fatalf("verify %d: %v", i, err)
		}
		if ok || outcome != credential.OutcomeFailure {
			t.Fatalf("verify %d: expected failure, got ok=%v outcome=%v", i, ok, outcome)
		}
	}

	// Fourth call, correct password, but now locked.
	ok, outcome, err := store.VerifyCredentials(ctx, j, "alice", credential.KindPassword, "P@ssword01", "")
	if err != nil {
		t.Fatalf("verify locked: %v", err)
	}
	if ok || outcome != credential.OutcomeLocked {
		t.Fatalf("expected locked outcome even with correct password, got ok=%v outcome=%v", ok, outcome)
	}

	meta, err := store.GetCredentialMetadata(ctx, "alice", credential.KindPassword)
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if meta.LockedUntil == nil {
		t.Fatal("expected LockedUntil to be set")
	}
}

func TestCredentialStore_InactiveCredentialNeverVerifies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestCredentialStore()
	j := audit.NewJournal(ctx, nil)

	if _, err := store.CreateCredentials(ctx, j, "bob", credential.KindPassword, "P@ssword01", "", 0); err != nil {
		t.Fatalf("create: %v", err)
	}
	store.mu.Lock()
	store.credentials[credentialKey{"bob", credential.KindPassword}].IsActive = false
	store.mu.Unlock()

	ok, _, err := store.VerifyCredentials(ctx, j, "bob", credential.KindPassword, "P@ssword01", "")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatal("expected inactive credential to never verify")
	}
}

func TestCredentialStore_PasswordPolicyRejectsShortPassword(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestCredentialStore()
	j := audit.NewJournal(ctx, nil)

	if _, err := store.CreateCredentials(ctx, j, "carol", credential.KindPassword, "short", "", 0); err == nil {
		t.Fatal("expected policy violation for short password")
	}
}

func TestCredentialStore_OpaqueTokenVerification(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestCredentialStore()
	j := audit.NewJournal(ctx, nil)

	cred, err := store.CreateCredentials(ctx, j, "dave", credential.KindAPIKey, "", "login", 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	ok, _, err := store.VerifyCredentials(ctx, j, "dave", credential.KindAPIKey, string(cred.Data), "login")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("expected opaque token to verify")
	}
}

// TestCredentialStore_OpaqueTokenRejectsWrongPurpose implements spec.md
// §4.4's "Opaque tokens" requirement that verification match purpose, not
// just token value.
func TestCredentialStore_OpaqueTokenRejectsWrongPurpose(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestCredentialStore()
	j := audit.NewJournal(ctx, nil)

	cred, err := store.CreateCredentials(ctx, j, "dave", credential.KindAPIKey, "", "login", 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	ok, _, err := store.VerifyCredentials(ctx, j, "dave", credential.KindAPIKey, string(cred.Data), "password-reset")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatal("expected a purpose mismatch to fail verification")
	}
}

// TestCredentialStore_OpaqueTokenRejectsExpired implements spec.md §4.4's
// "non-expiration" requirement for opaque-token verification.
func TestCredentialStore_OpaqueTokenRejectsExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestCredentialStore()
	j := audit.NewJournal(ctx, nil)

	cred, err := store.CreateCredentials(ctx, j, "dave", credential.KindAPIKey, "", "login", time.Millisecond)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	ok, outcome, err := store.VerifyCredentials(ctx, j, "dave", credential.KindAPIKey, string(cred.Data), "login")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok || outcome != credential.OutcomeFailure {
		t.Fatalf("expected an expired token to fail verification, got ok=%v outcome=%v", ok, outcome)
	}
}
