package config

import (
	"testing"
	"time"
)

func TestConfig_SetDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDefaults()

	if !cfg.Enabled {
		t.Error("Enabled should default to true")
	}
	if cfg.Providers.Credential.Provider != "memory" {
		t.Errorf("Credential.Provider = %q, want %q", cfg.Providers.Credential.Provider, "memory")
	}
	if cfg.Providers.Credential.MinLength != 8 {
		t.Errorf("Credential.MinLength = %d, want 8", cfg.Providers.Credential.MinLength)
	}
	if cfg.Providers.Audit.Provider != "memory" {
		t.Errorf("Audit.Provider = %q, want %q", cfg.Providers.Audit.Provider, "memory")
	}
	if cfg.Providers.Policy.DefaultDecision != "deny" {
		t.Errorf("Policy.DefaultDecision = %q, want %q", cfg.Providers.Policy.DefaultDecision, "deny")
	}
	if cfg.Providers.Token.Algorithm != "HS256" {
		t.Errorf("Token.Algorithm = %q, want %q", cfg.Providers.Token.Algorithm, "HS256")
	}
	if cfg.Providers.RateLimit.DefaultLimit != "100/min" {
		t.Errorf("RateLimit.DefaultLimit = %q, want %q", cfg.Providers.RateLimit.DefaultLimit, "100/min")
	}
}

func TestConfig_SetDevDefaults_NoOpWhenMockProvidersDisabled(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDefaults()
	cfg.SetDevDefaults()

	if len(cfg.Development.TestUsers) != 0 {
		t.Error("TestUsers should remain empty when mock_providers is disabled")
	}
	if cfg.Providers.Token.SigningKey != "" {
		t.Error("SigningKey should remain empty when mock_providers is disabled")
	}
}

func TestConfig_SetDevDefaults_SeedsTestUserAndSigningKey(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.Development.MockProviders = true
	cfg.SetDefaults()
	cfg.SetDevDefaults()

	if len(cfg.Development.TestUsers) != 1 {
		t.Fatalf("expected 1 seeded test user, got %d", len(cfg.Development.TestUsers))
	}
	if cfg.Providers.Token.SigningKey == "" {
		t.Error("expected a dev signing key to be seeded")
	}
}

func TestParseDuration(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in       string
		fallback time.Duration
		want     time.Duration
	}{
		{"30m", 0, 30 * time.Minute},
		{"1h", 0, time.Hour},
		{"7d", 0, 7 * 24 * time.Hour},
		{"not-a-duration", time.Second, time.Second},
	}
	for _, tc := range cases {
		if got := ParseDuration(tc.in, tc.fallback); got != tc.want {
			t.Errorf("ParseDuration(%q, %v) = %v, want %v", tc.in, tc.fallback, got, tc.want)
		}
	}
}
