package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wardenauth/warden/internal/adapter/outbound/memory"
	"github.com/wardenauth/warden/internal/domain/audit"
	"github.com/wardenauth/warden/internal/domain/credential"
)

func TestInstrumentedCredentialStore_RecordsLockout(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	store := NewInstrumentedCredentialStore(
		memory.NewCredentialStore(
			credential.Policy{MinLength: 8},
			credential.LockoutPolicy{MaxFailedAttempts: 1, LockoutDuration: time.Hour},
		),
		m,
	)

	ctx := context.Background()
	j := audit.NewJournal(ctx, nil)

	if _, err := store.CreateCredentials(ctx, j, "alice", credential.KindPassword, "P@ssword01", "", 0); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, _, err := store.VerifyCredentials(ctx, j, "alice", credential.KindPassword, "wrong", ""); err != nil {
		t.Fatalf("verify (wrong): %v", err)
	}
	// MaxFailedAttempts is 1, so the account is now locked; this attempt
	// observes outcome=locked.
	ok, outcome, err := store.VerifyCredentials(ctx, j, "alice", credential.KindPassword, "P@ssword01", "")
	if err != nil {
		t.Fatalf("verify (locked): %v", err)
	}
	if ok || outcome != credential.OutcomeLocked {
		t.Fatalf("expected locked outcome, got ok=%v outcome=%v", ok, outcome)
	}

	if v := counterValue(t, m.CredentialLockoutsTotal); v != 1 {
		t.Fatalf("expected 1 lockout recorded, got %v", v)
	}
}
