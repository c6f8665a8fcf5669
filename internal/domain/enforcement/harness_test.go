package enforcement

import (
	"context"
	"errors"
	"testing"

	"github.com/wardenauth/warden/internal/domain/audit"
	"github.com/wardenauth/warden/internal/domain/wardenerr"
)

func TestRun_SatisfiedPipeline_ReturnsNil(t *testing.T) {
	t.Parallel()
	j := audit.NewJournal(context.Background(), nil)
	term := audit.Single(audit.EventCredentialVerify)

	err := Run(j, "CredentialStore.Verify", term, func() error {
		j.Emit(audit.EventCredentialVerify, nil)
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestRun_UnsatisfiedPipeline_RaisesAuditRequirementError(t *testing.T) {
	t.Parallel()
	j := audit.NewJournal(context.Background(), nil)
	term := audit.Single(audit.EventCredentialVerify)

	err := Run(j, "CredentialStore.Verify", term, func() error {
		return nil // forgot to emit
	})
	var auditErr *wardenerr.AuditRequirementError
	if !errors.As(err, &auditErr) {
		t.Fatalf("expected *AuditRequirementError, got %v", err)
	}
}

func TestRun_CallErrorButValidAudit_PropagatesOriginalError(t *testing.T) {
	t.Parallel()
	j := audit.NewJournal(context.Background(), nil)
	term := audit.Single(audit.EventAuthFailure)
	sentinel := errors.New("invalid credentials")

	err := Run(j, "Authenticator.Authenticate", term, func() error {
		j.Emit(audit.EventAuthFailure, nil)
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected original error propagated, got %v", err)
	}
}

func TestRun_CallErrorAndInvalidAudit_ReplacesWithChainedCause(t *testing.T) {
	t.Parallel()
	j := audit.NewJournal(context.Background(), nil)
	term := audit.Single(audit.EventAuthFailure)
	sentinel := errors.New("boom")

	err := Run(j, "Authenticator.Authenticate", term, func() error {
		return sentinel // neither emits the event nor the call succeeds
	})

	var auditErr *wardenerr.AuditRequirementError
	if !errors.As(err, &auditErr) {
		t.Fatalf("expected *AuditRequirementError, got %v", err)
	}
	if !errors.Is(err, sentinel) {
		t.Fatal("expected original error reachable via errors.Is/Unwrap")
	}
}

func TestRunValue_PropagatesValueOnSuccess(t *testing.T) {
	t.Parallel()
	j := audit.NewJournal(context.Background(), nil)
	term := audit.Single(audit.EventSessionCreate)

	got, err := RunValue(j, "SessionManager.Create", term, func() (string, error) {
		j.Emit(audit.EventSessionCreate, nil)
		return "session-id", nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got != "session-id" {
		t.Fatalf("expected session-id, got %q", got)
	}
}

// TestRun_ResolvesTermThroughDefaultRegistry confirms Run consults the
// package's (type, method) term cache rather than trusting its term
// argument verbatim on every call: once a qualifiedName is registered, a
// second call under that same name is validated against the cached term.
func TestRun_ResolvesTermThroughDefaultRegistry(t *testing.T) {
	j := audit.NewJournal(context.Background(), nil)
	qualifiedName := "RegistryDemo.Op"
	term := audit.Single(audit.EventCredentialCreate)

	if err := Run(j, qualifiedName, term, func() error {
		j.Emit(audit.EventCredentialCreate, nil)
		return nil
	}); err != nil {
		t.Fatalf("first call: %v", err)
	}

	typeName, methodName := splitQualifiedName(qualifiedName)
	cached, ok := defaultRegistry.Lookup(typeName, methodName)
	if !ok {
		t.Fatal("expected the first Run call to register its term")
	}
	if cached.String() != term.String() {
		t.Fatalf("expected cached term %s, got %s", term.String(), cached.String())
	}
}

func TestSplitQualifiedName(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in         string
		wantType   string
		wantMethod string
	}{
		{"memory.CredentialStore.CreateCredentials", "memory.CredentialStore", "CreateCredentials"},
		{"Bare", "", "Bare"},
	}
	for _, c := range cases {
		gotType, gotMethod := splitQualifiedName(c.in)
		if gotType != c.wantType || gotMethod != c.wantMethod {
			t.Errorf("splitQualifiedName(%q) = (%q, %q), want (%q, %q)", c.in, gotType, gotMethod, c.wantType, c.wantMethod)
		}
	}
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	term := audit.Single(audit.EventCredentialCreate)
	r.Register("MemoryCredentialStore", "Create", term)

	got, ok := r.Lookup("MemoryCredentialStore", "Create")
	if !ok {
		t.Fatal("expected registration to be found")
	}
	if got.String() != term.String() {
		t.Fatalf("expected %s, got %s", term.String(), got.String())
	}

	if _, ok := r.Lookup("MemoryCredentialStore", "Delete"); ok {
		t.Fatal("expected unregistered method to miss")
	}
}
