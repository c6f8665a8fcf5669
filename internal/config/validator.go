package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/wardenauth/warden/internal/domain/ratelimit"
	"github.com/wardenauth/warden/internal/domain/wardenerr"
)

// durationPattern matches spec.md §6's "N[s|m|h|d]" duration grammar, a
// stricter subset of what time.ParseDuration itself accepts (no compound
// durations like "1h30m", no unit other than s/m/h/d).
var durationPattern = regexp.MustCompile(`^[0-9]+(s|m|h|d)$`)

// RegisterCustomValidators registers Warden-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("duration", validateDuration); err != nil {
		return fmt.Errorf("failed to register duration validator: %w", err)
	}
	if err := v.RegisterValidation("ratelimit_spec", validateRateLimitSpec); err != nil {
		return fmt.Errorf("failed to register ratelimit_spec validator: %w", err)
	}
	return nil
}

// validateDuration validates the "N[s|m|h|d]" grammar (spec.md §6).
func validateDuration(fl validator.FieldLevel) bool {
	return durationPattern.MatchString(fl.Field().String())
}

// validateRateLimitSpec validates the "<N>/<window>" grammar (spec.md §6)
// by delegating to the same parser the rate limiter itself uses, so the
// config layer and the runtime parser can never drift apart.
func validateRateLimitSpec(fl validator.FieldLevel) bool {
	_, err := ratelimit.ParseLimit(fl.Field().String())
	return err == nil
}

// Validate validates the Config using struct tags and custom cross-field
// rules (spec.md §6 "Validation"). Returns a *wardenerr.ConfigurationError
// with an actionable message on failure.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return wardenerr.NewConfigurationError(err.Error(), nil)
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.validateKnownProviders(); err != nil {
		return err
	}
	if err := c.validateAuditEncryption(); err != nil {
		return err
	}
	if err := c.validateAuditDirRequired(); err != nil {
		return err
	}

	return nil
}

// knownBundledProviders is the set of provider names this module ships an
// implementation for. Any other value is treated as a fully-qualified
// "module.path:ClassName" reference (spec.md §6) and is accepted here;
// resolving it to a class implementing the expected contract is a runtime
// wiring concern, not a config-validation concern, since this package
// cannot import arbitrary out-of-tree code.
var knownBundledProviders = map[string]map[string]struct{}{
	"credential": {"memory": {}},
	"session":    {"memory": {}},
	"user":       {"memory": {}},
	"audit":      {"memory": {}, "file": {}},
	"policy":     {"memory": {}},
	"token":      {"jwt": {}},
	"rate_limit": {"memory": {}},
}

// isBundledReference reports whether name looks like a bundled provider
// name (as opposed to a "module.path:ClassName" reference, which always
// contains a colon).
func isBundledReference(name string) bool {
	return !strings.Contains(name, ":")
}

// validateKnownProviders checks that any provider value that looks like a
// bundled name (no ":") is actually one of the names this module implements
// (spec.md §6 "bundled provider names exist in the known set").
func (c *Config) validateKnownProviders() error {
	checks := []struct {
		capability string
		value      string
	}{
		{"credential", c.Providers.Credential.Provider},
		{"session", c.Providers.Session.Provider},
		{"user", c.Providers.User.Provider},
		{"audit", c.Providers.Audit.Provider},
		{"policy", c.Providers.Policy.Provider},
		{"token", c.Providers.Token.Provider},
		{"rate_limit", c.Providers.RateLimit.Provider},
	}
	for _, chk := range checks {
		if !isBundledReference(chk.value) {
			continue
		}
		if _, ok := knownBundledProviders[chk.capability][chk.value]; !ok {
			return wardenerr.NewConfigurationError(
				fmt.Sprintf("providers.%s.provider: unknown bundled provider %q", chk.capability, chk.value),
				map[string]any{"capability": chk.capability, "provider": chk.value},
			)
		}
	}
	return nil
}

// validateAuditEncryption enforces spec.md §6's cross-field rule:
// "audit.encryption_enabled requires audit.encryption_key".
func (c *Config) validateAuditEncryption() error {
	if c.Providers.Audit.EncryptionEnabled && c.Providers.Audit.EncryptionKey == "" {
		return wardenerr.NewConfigurationError(
			"providers.audit.encryption_key is required when encryption_enabled is true",
			nil,
		)
	}
	return nil
}

// validateAuditDirRequired enforces that the file audit provider has
// somewhere to write.
func (c *Config) validateAuditDirRequired() error {
	if c.Providers.Audit.Provider == "file" && c.Providers.Audit.Dir == "" {
		return wardenerr.NewConfigurationError(
			"providers.audit.dir is required when providers.audit.provider is \"file\"",
			nil,
		)
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors to a single
// *wardenerr.ConfigurationError with a user-friendly, joined message.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return wardenerr.NewConfigurationError(strings.Join(messages, "; "), nil)
	}
	return wardenerr.NewConfigurationError(err.Error(), nil)
}

// formatSingleValidationError creates a user-friendly message for a single
// validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "duration":
		return fmt.Sprintf("%s must match duration grammar N[s|m|h|d], got %q", field, e.Value())
	case "ratelimit_spec":
		return fmt.Sprintf("%s must match rate-limit grammar <N>/<window>, got %q", field, e.Value())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
