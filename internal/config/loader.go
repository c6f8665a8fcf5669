// Package config provides configuration loading for Warden.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/wardenauth/warden/internal/domain/wardenerr"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, it searches for warden.yaml/.yml in
// standard locations. The search requires an explicit YAML extension to
// avoid matching a "warden" binary sitting in the same directory, which
// Viper's built-in SetConfigName would otherwise match (same base name, no
// extension).
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// No config file found in any standard location. Set name/type
		// without search paths so ReadInConfig returns
		// ConfigFileNotFoundError (handled gracefully by callers).
		viper.SetConfigName("warden")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: WARDEN_PROVIDERS_TOKEN_SIGNING_KEY
	viper.SetEnvPrefix("WARDEN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for a warden config file with
// an explicit YAML extension (.yaml or .yml).
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".warden"),
	}
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, "warden"))
		}
	} else {
		paths = append(paths, "/etc/warden")
	}
	return findConfigFileInPaths(paths)
}

// findConfigFileInPaths searches the given directories for warden.yaml or
// .yml. Returns the full path of the first match, or empty string if none
// found.
func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "warden"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds the config keys most commonly overridden via
// environment variable, so e.g. WARDEN_PROVIDERS_TOKEN_SIGNING_KEY reaches
// providers.token.signing_key without the config file naming it explicitly.
// Array-valued keys (rules, test_users) are not bound; those are only
// practical to set via the config file.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("enabled")

	_ = viper.BindEnv("providers.credential.provider")
	_ = viper.BindEnv("providers.credential.min_length")
	_ = viper.BindEnv("providers.credential.lockout_duration")

	_ = viper.BindEnv("providers.session.provider")
	_ = viper.BindEnv("providers.session.default_ttl")
	_ = viper.BindEnv("providers.session.max_ttl")

	_ = viper.BindEnv("providers.user.provider")

	_ = viper.BindEnv("providers.audit.provider")
	_ = viper.BindEnv("providers.audit.dir")
	_ = viper.BindEnv("providers.audit.retention_days")

	_ = viper.BindEnv("providers.policy.provider")
	_ = viper.BindEnv("providers.policy.default_decision")

	_ = viper.BindEnv("providers.token.provider")
	_ = viper.BindEnv("providers.token.algorithm")
	_ = viper.BindEnv("providers.token.signing_key")

	_ = viper.BindEnv("providers.rate_limit.provider")
	_ = viper.BindEnv("providers.rate_limit.default_limit")

	_ = viper.BindEnv("development.mock_providers")
	_ = viper.BindEnv("development.bypass_mfa")
}

// envVarPattern matches spec.md §6's three interpolation forms:
// ${NAME}, ${NAME:-default}, ${NAME:?error message}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)((:-)|(:\?))?([^}]*)\}`)

// interpolateEnvVars expands spec.md §6's environment-variable grammar over
// raw config text before Viper unmarshals it, so the rest of this package
// never has to think about placeholders — every value viper.Unmarshal sees
// is already resolved. Missing required ("${NAME:?msg}" with NAME unset)
// references return a *wardenerr.ConfigurationError naming the offending
// variable and the caller-supplied message.
func interpolateEnvVars(raw []byte) ([]byte, error) {
	var firstErr error
	result := envVarPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		if firstErr != nil {
			return match
		}
		groups := envVarPattern.FindSubmatch(match)
		name := string(groups[1])
		op := string(groups[2])
		rest := string(groups[5])

		val, present := os.LookupEnv(name)
		switch {
		case present:
			return []byte(val)
		case op == ":-":
			return []byte(rest)
		case op == ":?":
			msg := rest
			if msg == "" {
				msg = fmt.Sprintf("required environment variable %q is not set", name)
			}
			firstErr = wardenerr.NewConfigurationError(msg, map[string]any{"variable": name})
			return match
		default:
			// ${NAME} with NAME unset: spec.md leaves this case to mean
			// "no substitution, missing reference is an error at startup"
			// rather than silently interpolating an empty string.
			firstErr = wardenerr.NewConfigurationError(
				fmt.Sprintf("environment variable %q referenced in config is not set", name),
				map[string]any{"variable": name},
			)
			return match
		}
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return result, nil
}

// readAndInterpolateConfig reads the active config file (if any), applies
// the environment-variable interpolation pre-pass, and feeds the result
// back into Viper in place of the file on disk. When no config file is
// configured (env-vars-only mode), this is a no-op.
func readAndInterpolateConfig() error {
	path := viper.ConfigFileUsed()
	if path == "" {
		// ConfigFileUsed is only populated after a successful SetConfigFile
		// or a find; attempt a direct read so ConfigFileNotFoundError still
		// surfaces correctly to callers that tolerate env-vars-only mode.
		return viper.ReadInConfig()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	interpolated, err := interpolateEnvVars(raw)
	if err != nil {
		return err
	}

	// Round-trip through yaml.v3 first to fail fast with a clear parse
	// error before handing the buffer to Viper, whose own parse errors are
	// less specific about byte offsets.
	var probe map[string]any
	if err := yaml.Unmarshal(interpolated, &probe); err != nil {
		return fmt.Errorf("failed to parse interpolated config: %w", err)
	}

	viper.SetConfigType("yaml")
	return viper.ReadConfig(bytes.NewReader(interpolated))
}

// LoadConfig reads the configuration file, applies the environment-variable
// interpolation pre-pass, applies defaults, and returns the validated
// Config. Note: callers that need to apply CLI flag overrides (e.g. --dev)
// before validation should use LoadConfigRaw instead, then call
// cfg.SetDevDefaults() and cfg.Validate() themselves.
func LoadConfig() (*Config, error) {
	if err := readAndInterpolateConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// Config file not found - continue with env vars only.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	cfg.SetDevDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadConfigRaw reads the configuration file and applies defaults, but does
// NOT apply dev defaults or validate. Use this when CLI flags may override
// Development.MockProviders before validation.
func LoadConfigRaw() (*Config, error) {
	if err := readAndInterpolateConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was
// loaded. Returns an empty string if no config file was found (env vars
// only mode).
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
