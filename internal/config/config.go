// Package config provides the typed configuration tree for Warden.
//
// The shape follows spec.md §6: a top-level Enabled flag, a Providers block
// naming which backend each capability uses plus its provider-specific
// settings, a Security block of cross-cutting knobs, and a Development
// block of non-production conveniences. Every bundled provider in this
// module is in-memory or file-backed; the "provider" string and "config"
// map exist so a deployment can point at an out-of-tree implementation
// without this package knowing about it (spec.md §6 "fully-qualified
// import reference").
package config

import (
	"strconv"
	"strings"
	"time"
)

// Config is the top-level configuration tree for a Warden instance.
type Config struct {
	// Enabled is a global kill switch; when false, the enforcement harness
	// treats every decorated call as auto-allowed and audit-only.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	Providers   ProvidersConfig   `yaml:"providers" mapstructure:"providers"`
	Security    SecurityConfig    `yaml:"security" mapstructure:"security"`
	Telemetry   TelemetryConfig   `yaml:"telemetry" mapstructure:"telemetry"`
	Development DevelopmentConfig `yaml:"development" mapstructure:"development"`
}

// ProvidersConfig names and configures the backend behind each capability
// (spec.md §6 "providers.{credential|session|user|audit|policy}").
type ProvidersConfig struct {
	Credential CredentialProviderConfig `yaml:"credential" mapstructure:"credential"`
	Session    SessionProviderConfig    `yaml:"session" mapstructure:"session"`
	User       UserProviderConfig       `yaml:"user" mapstructure:"user"`
	Audit      AuditProviderConfig      `yaml:"audit" mapstructure:"audit"`
	Policy     PolicyProviderConfig     `yaml:"policy" mapstructure:"policy"`
	Token      TokenProviderConfig      `yaml:"token" mapstructure:"token"`
	RateLimit  RateLimitProviderConfig  `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// CredentialProviderConfig configures the CredentialStore provider
// (spec.md §4.4).
type CredentialProviderConfig struct {
	// Provider selects the backend: bundled name ("memory") or a
	// fully-qualified "module.path:ClassName" reference.
	Provider string `yaml:"provider" mapstructure:"provider" validate:"required"`

	MinLength        int  `yaml:"min_length" mapstructure:"min_length" validate:"required,min=1"`
	RequireLowercase bool `yaml:"require_lowercase" mapstructure:"require_lowercase"`
	RequireUppercase bool `yaml:"require_uppercase" mapstructure:"require_uppercase"`
	RequireDigit     bool `yaml:"require_digit" mapstructure:"require_digit"`
	RequireSymbol    bool `yaml:"require_symbol" mapstructure:"require_symbol"`

	MaxFailedAttempts int    `yaml:"max_failed_attempts" mapstructure:"max_failed_attempts" validate:"required,min=1"`
	LockoutDuration   string `yaml:"lockout_duration" mapstructure:"lockout_duration" validate:"required,duration"`

	// CheckCompromised enables the breach-corpus lookup hook
	// (credential.CompromiseChecker); the bundled provider has no corpus
	// wired in, so this only takes effect with an out-of-tree provider.
	CheckCompromised bool `yaml:"check_compromised" mapstructure:"check_compromised"`
}

// SessionProviderConfig configures the SessionManager provider (spec.md
// §4.5).
type SessionProviderConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider" validate:"required"`

	DefaultTTL                 string `yaml:"default_ttl" mapstructure:"default_ttl" validate:"required,duration"`
	MaxTTL                     string `yaml:"max_ttl" mapstructure:"max_ttl" validate:"required,duration"`
	MaxConcurrentSessions      int    `yaml:"max_concurrent_sessions" mapstructure:"max_concurrent_sessions" validate:"required,min=1"`
	RequireIPValidation        bool   `yaml:"require_ip_validation" mapstructure:"require_ip_validation"`
	RequireUserAgentValidation bool   `yaml:"require_user_agent_validation" mapstructure:"require_user_agent_validation"`
	ExtendOnAccess             bool   `yaml:"extend_on_access" mapstructure:"extend_on_access"`
	RefreshThreshold           string `yaml:"refresh_threshold" mapstructure:"refresh_threshold" validate:"required,duration"`
	TimingProtectionBudget     string `yaml:"timing_protection_budget" mapstructure:"timing_protection_budget" validate:"omitempty,duration"`
	CleanupInterval            string `yaml:"cleanup_interval" mapstructure:"cleanup_interval" validate:"required,duration"`
}

// UserProviderConfig configures the UserDirectory provider (spec.md §4.6).
type UserProviderConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider" validate:"required"`

	// DefaultRoles are auto-created (AutoCreated=true) on first use if
	// absent from the directory, so a fresh deployment has a usable role
	// set without seeding a config file.
	DefaultRoles []string `yaml:"default_roles" mapstructure:"default_roles"`
}

// AuditProviderConfig configures the audit Sink provider (spec.md §4.3).
type AuditProviderConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider" validate:"required"`

	RetentionDays        int  `yaml:"retention_days" mapstructure:"retention_days" validate:"required,min=1"`
	MaxEvents             int `yaml:"max_events" mapstructure:"max_events" validate:"required,min=1"`
	IncludeSensitiveData bool `yaml:"include_sensitive_data" mapstructure:"include_sensitive_data"`

	// Dir is required when Provider is "file" (validated via
	// validateAuditDirRequired, not a struct tag, since it is conditional
	// on Provider's value).
	Dir string `yaml:"dir" mapstructure:"dir"`
	// MaxFileSizeMB bounds the per-file size before rotation; only
	// meaningful for Provider "file".
	MaxFileSizeMB int `yaml:"max_file_size_mb" mapstructure:"max_file_size_mb" validate:"omitempty,min=1"`

	// EncryptionEnabled and EncryptionKey are validated together: spec.md
	// §6 requires a key whenever encryption is turned on. The bundled
	// providers do not yet implement at-rest encryption; this is carried so
	// an out-of-tree provider can honor it without a config schema change.
	EncryptionEnabled bool   `yaml:"encryption_enabled" mapstructure:"encryption_enabled"`
	EncryptionKey     string `yaml:"encryption_key" mapstructure:"encryption_key"`
}

// PolicyProviderConfig configures the PolicyEngine provider (spec.md §4.8).
type PolicyProviderConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider" validate:"required"`

	DefaultDecision          string       `yaml:"default_decision" mapstructure:"default_decision" validate:"required,oneof=allow deny"`
	CaseSensitivePermissions bool         `yaml:"case_sensitive_permissions" mapstructure:"case_sensitive_permissions"`
	Rules                    []RuleConfig `yaml:"rules" mapstructure:"rules" validate:"omitempty,dive"`
}

// RuleConfig is one ordered rule entry (spec.md §4.8), mirrored onto
// policy.Rule at load time.
type RuleConfig struct {
	ID          string            `yaml:"id" mapstructure:"id" validate:"required"`
	Description string            `yaml:"description" mapstructure:"description"`
	Effect      string            `yaml:"effect" mapstructure:"effect" validate:"required,oneof=allow deny"`
	Users       []string          `yaml:"users" mapstructure:"users"`
	Roles       []string          `yaml:"roles" mapstructure:"roles"`
	Permissions []string          `yaml:"permissions" mapstructure:"permissions"`
	Resources   []string          `yaml:"resources" mapstructure:"resources"`
	Actions     []string          `yaml:"actions" mapstructure:"actions"`
	Custom      map[string]string `yaml:"custom" mapstructure:"custom"`
	// Condition is an optional CEL expression, an enrichment beyond
	// spec.md's glob/set matcher (internal/adapter/outbound/cel).
	Condition string `yaml:"condition" mapstructure:"condition"`
}

// TokenProviderConfig configures the JWT TokenService provider (spec.md
// §4.7).
type TokenProviderConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider" validate:"required"`

	Algorithm       string `yaml:"algorithm" mapstructure:"algorithm" validate:"required,oneof=HS256 HS384 HS512 RS256 RS384 RS512 ES256 ES384 ES512"`
	AccessTokenTTL  string `yaml:"access_token_ttl" mapstructure:"access_token_ttl" validate:"required,duration"`
	RefreshTokenTTL string `yaml:"refresh_token_ttl" mapstructure:"refresh_token_ttl" validate:"required,duration"`
	// SigningKey holds the HMAC secret (HS*) or PEM-encoded private key
	// (RS*/ES*). Always sourced via environment-variable interpolation
	// (spec.md §6) rather than committed in plaintext.
	SigningKey string `yaml:"signing_key" mapstructure:"signing_key" validate:"required"`
}

// RateLimitProviderConfig configures the RateLimiter provider (spec.md
// §4.9).
type RateLimitProviderConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider" validate:"required"`

	// DefaultLimit is the fallback `<N>/<window>` spec (spec.md §6) applied
	// when a call site does not supply its own ratelimit.Config.
	DefaultLimit string `yaml:"default_limit" mapstructure:"default_limit" validate:"required,ratelimit_spec"`
	// MaxTrackedIdentifiers bounds memory use; beyond it the limiter fails
	// open (spec.md §4.9), flagging the decision's FallbackOpen field.
	MaxTrackedIdentifiers int    `yaml:"max_tracked_identifiers" mapstructure:"max_tracked_identifiers" validate:"required,min=1"`
	CleanupInterval       string `yaml:"cleanup_interval" mapstructure:"cleanup_interval" validate:"required,duration"`
}

// SecurityConfig groups cross-cutting knobs outside the core provider
// contracts (spec.md §6 "security.headers.*, security.password_security.*,
// security.session_security.*").
type SecurityConfig struct {
	Headers          HeadersConfig          `yaml:"headers" mapstructure:"headers"`
	PasswordSecurity PasswordSecurityConfig `yaml:"password_security" mapstructure:"password_security"`
	SessionSecurity  SessionSecurityConfig  `yaml:"session_security" mapstructure:"session_security"`
}

// HeadersConfig configures security headers an HTTP-facing caller of Warden
// may choose to apply; Warden itself is transport-agnostic and only carries
// the values, it does not set headers on any response.
type HeadersConfig struct {
	HSTSMaxAge         string `yaml:"hsts_max_age" mapstructure:"hsts_max_age" validate:"omitempty,duration"`
	ContentTypeNosniff bool   `yaml:"content_type_nosniff" mapstructure:"content_type_nosniff"`
	FrameDeny          bool   `yaml:"frame_deny" mapstructure:"frame_deny"`
}

// PasswordSecurityConfig carries password-adjacent knobs that are not part
// of credential.Policy itself (rotation/reuse policy, unlike the
// acceptability rules enforced at write time).
type PasswordSecurityConfig struct {
	RotationInterval string `yaml:"rotation_interval" mapstructure:"rotation_interval" validate:"omitempty,duration"`
	HistoryCount     int    `yaml:"history_count" mapstructure:"history_count" validate:"omitempty,min=0"`
}

// SessionSecurityConfig carries session-adjacent knobs not part of
// session.Config (e.g. cookie attributes for an HTTP-facing caller).
type SessionSecurityConfig struct {
	CookieSecure   bool   `yaml:"cookie_secure" mapstructure:"cookie_secure"`
	CookieSameSite string `yaml:"cookie_same_site" mapstructure:"cookie_same_site" validate:"omitempty,oneof=strict lax none"`
}

// TelemetryConfig configures the internal/telemetry package's Prometheus
// registry and OpenTelemetry provider setup.
type TelemetryConfig struct {
	MetricsEnabled bool   `yaml:"metrics_enabled" mapstructure:"metrics_enabled"`
	TracingEnabled bool   `yaml:"tracing_enabled" mapstructure:"tracing_enabled"`
	ServiceName    string `yaml:"service_name" mapstructure:"service_name"`
}

// DevelopmentConfig groups non-production conveniences (spec.md §6
// "development.{mock_providers, bypass_mfa, debug_audit, test_users[]}").
// Every field here defaults to off; SetDevDefaults is the only code path
// that turns them on.
type DevelopmentConfig struct {
	MockProviders bool             `yaml:"mock_providers" mapstructure:"mock_providers"`
	BypassMFA     bool             `yaml:"bypass_mfa" mapstructure:"bypass_mfa"`
	DebugAudit    bool             `yaml:"debug_audit" mapstructure:"debug_audit"`
	TestUsers     []TestUserConfig `yaml:"test_users" mapstructure:"test_users" validate:"omitempty,dive"`
}

// TestUserConfig seeds a development-only user/role pair.
type TestUserConfig struct {
	Username string   `yaml:"username" mapstructure:"username" validate:"required"`
	Password string   `yaml:"password" mapstructure:"password" validate:"required"`
	Roles    []string `yaml:"roles" mapstructure:"roles" validate:"required,min=1"`
}

// SetDefaults applies sensible defaults before validation, mirroring the
// teacher's two-pass "defaults then dev-defaults then validate" sequence.
func (c *Config) SetDefaults() {
	c.Enabled = true

	if c.Providers.Credential.Provider == "" {
		c.Providers.Credential.Provider = "memory"
	}
	if c.Providers.Credential.MinLength == 0 {
		c.Providers.Credential.MinLength = 8
	}
	if c.Providers.Credential.MaxFailedAttempts == 0 {
		c.Providers.Credential.MaxFailedAttempts = 5
	}
	if c.Providers.Credential.LockoutDuration == "" {
		c.Providers.Credential.LockoutDuration = "15m"
	}

	if c.Providers.Session.Provider == "" {
		c.Providers.Session.Provider = "memory"
	}
	if c.Providers.Session.DefaultTTL == "" {
		c.Providers.Session.DefaultTTL = "30m"
	}
	if c.Providers.Session.MaxTTL == "" {
		c.Providers.Session.MaxTTL = "24h"
	}
	if c.Providers.Session.MaxConcurrentSessions == 0 {
		c.Providers.Session.MaxConcurrentSessions = 5
	}
	if c.Providers.Session.RefreshThreshold == "" {
		c.Providers.Session.RefreshThreshold = "5m"
	}
	if c.Providers.Session.CleanupInterval == "" {
		c.Providers.Session.CleanupInterval = "5m"
	}

	if c.Providers.User.Provider == "" {
		c.Providers.User.Provider = "memory"
	}

	if c.Providers.Audit.Provider == "" {
		c.Providers.Audit.Provider = "memory"
	}
	if c.Providers.Audit.RetentionDays == 0 {
		c.Providers.Audit.RetentionDays = 90
	}
	if c.Providers.Audit.MaxEvents == 0 {
		c.Providers.Audit.MaxEvents = 1_000_000
	}
	if c.Providers.Audit.MaxFileSizeMB == 0 {
		c.Providers.Audit.MaxFileSizeMB = 100
	}

	if c.Providers.Policy.Provider == "" {
		c.Providers.Policy.Provider = "memory"
	}
	if c.Providers.Policy.DefaultDecision == "" {
		c.Providers.Policy.DefaultDecision = "deny"
	}

	if c.Providers.Token.Provider == "" {
		c.Providers.Token.Provider = "jwt"
	}
	if c.Providers.Token.Algorithm == "" {
		c.Providers.Token.Algorithm = "HS256"
	}
	if c.Providers.Token.AccessTokenTTL == "" {
		c.Providers.Token.AccessTokenTTL = "15m"
	}
	if c.Providers.Token.RefreshTokenTTL == "" {
		c.Providers.Token.RefreshTokenTTL = "168h"
	}

	if c.Providers.RateLimit.Provider == "" {
		c.Providers.RateLimit.Provider = "memory"
	}
	if c.Providers.RateLimit.DefaultLimit == "" {
		c.Providers.RateLimit.DefaultLimit = "100/min"
	}
	if c.Providers.RateLimit.MaxTrackedIdentifiers == 0 {
		c.Providers.RateLimit.MaxTrackedIdentifiers = 100_000
	}
	if c.Providers.RateLimit.CleanupInterval == "" {
		c.Providers.RateLimit.CleanupInterval = "5m"
	}

	if c.Security.SessionSecurity.CookieSameSite == "" {
		c.Security.SessionSecurity.CookieSameSite = "strict"
	}

	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "warden"
	}
}

// SetDevDefaults applies permissive overrides for development mode. It is
// only ever invoked when Development.MockProviders or a CLI --dev flag asks
// for it, and runs after SetDefaults but before Validate (spec.md §6,
// mirroring the teacher's dev-mode escape hatch but applied to the provider
// tree instead of the teacher's own upstream/auth tree).
func (c *Config) SetDevDefaults() {
	if !c.Development.MockProviders {
		return
	}

	if len(c.Development.TestUsers) == 0 {
		c.Development.TestUsers = []TestUserConfig{
			{Username: "dev", Password: "dev-password-01", Roles: []string{"admin"}},
		}
	}
	if c.Providers.Token.SigningKey == "" {
		c.Providers.Token.SigningKey = "dev-only-signing-key-not-for-production"
	}
}

// ParseDuration parses spec.md §6's "N[s|m|h|d]" duration grammar. "d"
// (day) is not a unit time.ParseDuration understands, so it is expanded to
// hours first. Falls back to the caller-supplied default if parsing
// somehow fails after Validate has already accepted the config (defense
// against a field set after the fact).
func ParseDuration(s string, fallback time.Duration) time.Duration {
	if strings.HasSuffix(s, "d") {
		n, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return fallback
		}
		return time.Duration(n) * 24 * time.Hour
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
