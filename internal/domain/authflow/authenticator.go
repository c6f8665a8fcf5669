// Package authflow implements the concrete authentication orchestration that
// original_source/serv/auth/auth_provider.py's StandardAuthProvider leaves
// as a NotImplementedError scaffold. Spec.md §9's open question fixes the
// event sequence (verify credentials -> create session -> emit events ->
// return session) but not the internal decomposition; Authenticator is that
// decomposition, composing a credential.Store, a session.Manager, and a
// journal factory rather than reaching into either provider's internals.
package authflow

import (
	"context"

	"github.com/wardenauth/warden/internal/domain/audit"
	"github.com/wardenauth/warden/internal/domain/credential"
	"github.com/wardenauth/warden/internal/domain/enforcement"
	"github.com/wardenauth/warden/internal/domain/session"
	"github.com/wardenauth/warden/internal/domain/wardenerr"
)

// Authenticator orchestrates password authentication into a session,
// matching spec.md §8 scenario 1's event sequence:
// auth.attempt >> (auth.success | auth.failure).
type Authenticator struct {
	Credentials credential.Store
	Sessions    session.Manager
}

// New constructs an Authenticator over the given providers.
func New(credentials credential.Store, sessions session.Manager) *Authenticator {
	return &Authenticator{Credentials: credentials, Sessions: sessions}
}

// requiredPipeline is spec.md §8 scenario 1's declared term:
// auth.attempt >> (auth.success | auth.failure).
func requiredPipeline() audit.PipelineTerm {
	return audit.Single(audit.EventAuthAttempt).Then(
		audit.Single(audit.EventAuthSuccess).Or(audit.Single(audit.EventAuthFailure)),
	)
}

// Authenticate verifies username/password credentials and, on success,
// creates a session. journal is the per-call AuditJournal the enforcement
// harness watermarks around the whole operation.
func (a *Authenticator) Authenticate(ctx context.Context, journal *audit.Journal, userID, password, deviceFingerprint string) (*session.Session, error) {
	return enforcement.RunValue(journal, "Authenticator.Authenticate", requiredPipeline(), func() (*session.Session, error) {
		journal.Emit(audit.EventAuthAttempt, map[string]any{"user_id": userID})

		ok, outcome, err := a.Credentials.VerifyCredentials(ctx, journal, userID, credential.KindPassword, password, "")
		if err != nil {
			journal.Emit(audit.EventAuthFailure, map[string]any{"user_id": userID, "outcome": "error"})
			return nil, err
		}
		if !ok {
			journal.Emit(audit.EventAuthFailure, map[string]any{"user_id": userID, "outcome": string(outcome)})
			return nil, wardenerr.NewInvalidCredentialsError("invalid credentials", nil)
		}

		sess, err := a.Sessions.Create(ctx, journal, userID, deviceFingerprint, 0)
		if err != nil {
			journal.Emit(audit.EventAuthFailure, map[string]any{"user_id": userID, "outcome": "session_error"})
			return nil, err
		}

		journal.Emit(audit.EventAuthSuccess, map[string]any{"user_id": userID, "session_id": sess.ID})
		return sess, nil
	})
}

// Logout destroys a session and emits auth.logout.
func (a *Authenticator) Logout(ctx context.Context, journal *audit.Journal, sessionID string) error {
	return enforcement.Run(journal, "Authenticator.Logout", audit.Single(audit.EventAuthLogout), func() error {
		_, err := a.Sessions.Destroy(ctx, journal, sessionID)
		journal.Emit(audit.EventAuthLogout, map[string]any{"session_id": sessionID})
		return err
	})
}
