package telemetry

import (
	"context"
	"time"

	"github.com/wardenauth/warden/internal/domain/audit"
	"github.com/wardenauth/warden/internal/domain/credential"
)

// InstrumentedCredentialStore wraps a credential.Store to record
// verification outcomes and lockout transitions against m.
type InstrumentedCredentialStore struct {
	next credential.Store
	m    *Metrics
}

// NewInstrumentedCredentialStore wraps next with metrics recording.
func NewInstrumentedCredentialStore(next credential.Store, m *Metrics) *InstrumentedCredentialStore {
	return &InstrumentedCredentialStore{next: next, m: m}
}

func (c *InstrumentedCredentialStore) CreateCredentials(ctx context.Context, journal *audit.Journal, userID string, kind credential.Kind, secret string, purpose string, ttl time.Duration) (*credential.Credential, error) {
	return c.next.CreateCredentials(ctx, journal, userID, kind, secret, purpose, ttl)
}

func (c *InstrumentedCredentialStore) VerifyCredentials(ctx context.Context, journal *audit.Journal, userID string, kind credential.Kind, candidate string, purpose string) (bool, credential.VerifyOutcome, error) {
	ok, outcome, err := c.next.VerifyCredentials(ctx, journal, userID, kind, candidate, purpose)
	if err == nil {
		c.m.CredentialVerifyTotal.WithLabelValues(string(outcome)).Inc()
		if outcome == credential.OutcomeLocked {
			c.m.CredentialLockoutsTotal.Inc()
		}
	}
	return ok, outcome, err
}

func (c *InstrumentedCredentialStore) UpdateCredentials(ctx context.Context, journal *audit.Journal, userID string, kind credential.Kind, newSecret string) error {
	return c.next.UpdateCredentials(ctx, journal, userID, kind, newSecret)
}

func (c *InstrumentedCredentialStore) DeleteCredentials(ctx context.Context, journal *audit.Journal, userID string, kind credential.Kind) error {
	return c.next.DeleteCredentials(ctx, journal, userID, kind)
}

func (c *InstrumentedCredentialStore) GetStatistics(ctx context.Context) (credential.Statistics, error) {
	return c.next.GetStatistics(ctx)
}

func (c *InstrumentedCredentialStore) GetCredentialMetadata(ctx context.Context, userID string, kind credential.Kind) (*credential.Metadata, error) {
	return c.next.GetCredentialMetadata(ctx, userID, kind)
}

var _ credential.Store = (*InstrumentedCredentialStore)(nil)
