package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/wardenauth/warden/internal/adapter/outbound/jwttoken"
	"github.com/wardenauth/warden/internal/config"
	"github.com/wardenauth/warden/internal/domain/policy"
	"github.com/wardenauth/warden/internal/domain/token"
)

// parseLogLevel converts the telemetry-adjacent log level implied by dev
// mode into an slog.Level. Warden carries no dedicated log_level config
// field of its own (that lives with whatever service embeds it); dev mode
// is the only signal this CLI has to raise verbosity.
func parseLogLevel(cfg *config.Config) slog.Level {
	if cfg.Development.MockProviders || cfg.Development.DebugAudit {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// hasPolicyCondition reports whether any configured rule carries a CEL
// condition, so serve can skip constructing a cel.Evaluator entirely when
// no rule needs it.
func hasPolicyCondition(cfg *config.Config) bool {
	for _, r := range cfg.Providers.Policy.Rules {
		if strings.TrimSpace(r.Condition) != "" {
			return true
		}
	}
	return false
}

// toPolicyRules mirrors the config-level RuleConfig list onto the
// domain-level policy.Rule list Evaluate operates on.
func toPolicyRules(rules []config.RuleConfig) []policy.Rule {
	out := make([]policy.Rule, len(rules))
	for i, r := range rules {
		out[i] = policy.Rule{
			ID:          r.ID,
			Description: r.Description,
			Effect:      policy.Effect(r.Effect),
			Users:       r.Users,
			Roles:       r.Roles,
			Permissions: r.Permissions,
			Resources:   r.Resources,
			Actions:     r.Actions,
			Custom:      r.Custom,
			Condition:   r.Condition,
		}
	}
	return out
}

// newTokenService constructs a token.Service from the configured
// algorithm. Only the HS* family is supported here: RS*/ES* signing and
// verification keys are PEM-encoded key material that a plain config
// string cannot represent without a parsing step out of scope for this
// wiring demo (an embedding service that needs RS*/ES* should construct
// jwttoken.Service directly with parsed *rsa.PrivateKey/*ecdsa.PrivateKey
// values instead of going through this CLI).
func newTokenService(cfg *config.Config) (token.Service, error) {
	alg := token.Algorithm(cfg.Providers.Token.Algorithm)
	switch alg {
	case token.HS256, token.HS384, token.HS512:
		return jwttoken.New(jwttoken.Config{
			Algorithm:  alg,
			SigningKey: []byte(cfg.Providers.Token.SigningKey),
			Issuer:     "warden",
		})
	default:
		return nil, fmt.Errorf("token algorithm %q requires PEM key material; this demo only wires HS256/HS384/HS512 from a config string", cfg.Providers.Token.Algorithm)
	}
}
