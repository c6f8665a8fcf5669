package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/wardenauth/warden/internal/adapter/outbound/audit"
	"github.com/wardenauth/warden/internal/adapter/outbound/cel"
	"github.com/wardenauth/warden/internal/adapter/outbound/memory"
	"github.com/wardenauth/warden/internal/config"
	domainaudit "github.com/wardenauth/warden/internal/domain/audit"
	"github.com/wardenauth/warden/internal/domain/authflow"
	"github.com/wardenauth/warden/internal/domain/credential"
	"github.com/wardenauth/warden/internal/domain/policy"
	"github.com/wardenauth/warden/internal/domain/ratelimit"
	"github.com/wardenauth/warden/internal/domain/session"
	"github.com/wardenauth/warden/internal/domain/token"
	"github.com/wardenauth/warden/internal/domain/user"
	"github.com/wardenauth/warden/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Wire the configured providers together and report readiness",
	Long: `Load the configuration, construct every provider it names, run a
single authenticate-then-logout demo call through the enforcement-guarded
authflow.Authenticator, and print a readiness line.

This is a wiring demo, not a server: warden opens no network listener and
accepts no connections. It exists to prove a configuration boots end to
end and to give operators a log line to grep for in a startup script.
Embed the providers constructed here directly in your own service instead
of shelling out to this command.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg),
	}))
	if file := config.ConfigFileUsed(); file != "" {
		logger.Info("loaded config", "file", file)
	} else {
		logger.Info("no config file found, using defaults and environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	credentials := memory.NewCredentialStore(
		credential.Policy{
			MinLength:        cfg.Providers.Credential.MinLength,
			RequireLowercase: cfg.Providers.Credential.RequireLowercase,
			RequireUppercase: cfg.Providers.Credential.RequireUppercase,
			RequireDigit:     cfg.Providers.Credential.RequireDigit,
			RequireSymbol:    cfg.Providers.Credential.RequireSymbol,
		},
		credential.LockoutPolicy{
			MaxFailedAttempts: cfg.Providers.Credential.MaxFailedAttempts,
			LockoutDuration:   config.ParseDuration(cfg.Providers.Credential.LockoutDuration, 0),
		},
		memory.WithLogger(logger),
	)

	sessions := memory.NewSessionManager(session.Config{
		DefaultSessionTTL:          config.ParseDuration(cfg.Providers.Session.DefaultTTL, 0),
		MaxSessionTTL:              config.ParseDuration(cfg.Providers.Session.MaxTTL, 0),
		MaxConcurrentSessions:      cfg.Providers.Session.MaxConcurrentSessions,
		RequireIPValidation:        cfg.Providers.Session.RequireIPValidation,
		RequireUserAgentValidation: cfg.Providers.Session.RequireUserAgentValidation,
		ExtendOnAccess:             cfg.Providers.Session.ExtendOnAccess,
		SessionRefreshThreshold:    config.ParseDuration(cfg.Providers.Session.RefreshThreshold, 0),
		TimingProtectionBudget:     config.ParseDuration(cfg.Providers.Session.TimingProtectionBudget, 0),
	})
	sessions.StartCleanup(ctx)
	defer sessions.Stop()

	directoryOpts := []memory.UserDirectoryOption{memory.WithDirectoryLogger(logger)}
	directory := memory.NewUserDirectory(sessions, credentials, directoryOpts...)

	var sink domainaudit.Sink
	switch cfg.Providers.Audit.Provider {
	case "file":
		fileSink, err := audit.NewFileSink(audit.FileSinkConfig{
			Dir:                  cfg.Providers.Audit.Dir,
			RetentionDays:        cfg.Providers.Audit.RetentionDays,
			MaxFileSizeMB:        cfg.Providers.Audit.MaxFileSizeMB,
			MaxEvents:            cfg.Providers.Audit.MaxEvents,
			IncludeSensitiveData: cfg.Providers.Audit.IncludeSensitiveData,
		}, logger)
		if err != nil {
			return fmt.Errorf("construct file audit sink: %w", err)
		}
		sink = fileSink
	default:
		sink = memory.NewAuditSink(memory.AuditSinkConfig{
			RetentionDays:        cfg.Providers.Audit.RetentionDays,
			MaxEvents:            cfg.Providers.Audit.MaxEvents,
			IncludeSensitiveData: cfg.Providers.Audit.IncludeSensitiveData,
		}, logger)
	}

	var evaluator *cel.Evaluator
	if hasPolicyCondition(cfg) {
		evaluator, err = cel.NewEvaluator()
		if err != nil {
			return fmt.Errorf("construct CEL evaluator: %w", err)
		}
	}
	policyEngine := memory.NewPolicyEngine(policy.Config{
		Rules:                    toPolicyRules(cfg.Providers.Policy.Rules),
		DefaultDecision:          policy.Effect(cfg.Providers.Policy.DefaultDecision),
		CaseSensitivePermissions: cfg.Providers.Policy.CaseSensitivePermissions,
	}, evaluator)

	tokenService, err := newTokenService(cfg)
	if err != nil {
		return fmt.Errorf("construct token service: %w", err)
	}

	rateLimiter := memory.NewRateLimiter(
		memory.WithMaxTrackedIdentifiers(cfg.Providers.RateLimit.MaxTrackedIdentifiers),
	)

	var credStore credential.Store = credentials
	var policyEng policy.Engine = policyEngine
	var limiter ratelimit.Limiter = rateLimiter
	var auditSink domainaudit.Sink = sink

	if cfg.Telemetry.MetricsEnabled {
		metrics := telemetry.NewMetrics(prometheus.NewRegistry())
		credStore = telemetry.NewInstrumentedCredentialStore(credStore, metrics)
		policyEng = telemetry.NewInstrumentedPolicyEngine(policyEng, metrics)
		limiter = telemetry.NewInstrumentedRateLimiter(limiter, metrics)
		auditSink = telemetry.NewInstrumentedSink(auditSink, metrics)
		logger.Info("metrics instrumentation enabled")
	}

	if cfg.Telemetry.TracingEnabled {
		providers, err := telemetry.NewProviders(ctx, cfg.Telemetry.ServiceName)
		if err != nil {
			return fmt.Errorf("construct telemetry providers: %w", err)
		}
		defer func() {
			if err := providers.Shutdown(context.Background()); err != nil {
				logger.Warn("telemetry shutdown failed", "error", err)
			}
		}()
		logger.Info("tracing instrumentation enabled", "service_name", cfg.Telemetry.ServiceName)
	}

	logger.Info("providers wired",
		"credential_provider", cfg.Providers.Credential.Provider,
		"session_provider", cfg.Providers.Session.Provider,
		"user_provider", cfg.Providers.User.Provider,
		"audit_provider", cfg.Providers.Audit.Provider,
		"policy_provider", cfg.Providers.Policy.Provider,
		"token_provider", cfg.Providers.Token.Provider,
		"token_algorithm", cfg.Providers.Token.Algorithm,
		"rate_limit_provider", cfg.Providers.RateLimit.Provider,
	)

	if err := runDemoFlow(ctx, cfg, credStore, sessions, directory, policyEng, tokenService, limiter, auditSink, logger); err != nil {
		return fmt.Errorf("demo flow: %w", err)
	}

	logger.Info("warden ready")
	fmt.Println("warden: providers wired, demo flow succeeded, ready")
	return nil
}

// runDemoFlow exercises one authenticate-then-logout pass through the
// enforcement-guarded authflow.Authenticator, a rate-limit check, and a
// policy evaluation, after seeding a single development user. This is the
// "prints a readiness line" demo, not a health check endpoint: warden has
// no endpoint to check.
func runDemoFlow(
	ctx context.Context,
	cfg *config.Config,
	credentials credential.Store,
	sessions *memory.SessionManager,
	directory *memory.UserDirectory,
	policyEngine policy.Engine,
	tokenService token.Service,
	rateLimiter ratelimit.Limiter,
	sink domainaudit.Sink,
	logger *slog.Logger,
) error {
	username := "warden-demo"
	password := "warden-demo-password-01"
	roles := []string{"admin"}
	if len(cfg.Development.TestUsers) > 0 {
		tu := cfg.Development.TestUsers[0]
		username = tu.Username
		password = tu.Password
		roles = tu.Roles
	}

	journal := domainaudit.NewJournal(ctx, sink)

	createdUser, err := directory.CreateUser(ctx, journal, &user.User{
		Username: username,
		Email:    username + "@warden.local",
		IsActive: true,
		Roles:    rolesToSet(roles),
	})
	if err != nil {
		return fmt.Errorf("create demo user: %w", err)
	}
	if _, err := credentials.CreateCredentials(ctx, journal, createdUser.ID, credential.KindPassword, password, "", 0); err != nil {
		return fmt.Errorf("create demo credentials: %w", err)
	}

	limitCfg, err := ratelimit.ParseLimit(cfg.Providers.RateLimit.DefaultLimit)
	if err != nil {
		return fmt.Errorf("parse default rate limit: %w", err)
	}
	limitResult, err := rateLimiter.Track(createdUser.ID, "authenticate", limitCfg)
	if err != nil {
		return fmt.Errorf("track rate limit: %w", err)
	}
	logger.Info("rate limit checked", "user_id", createdUser.ID, "remaining", limitResult.Remaining, "allowed", limitResult.Allowed)

	authenticator := authflow.New(credentials, sessions)
	sess, err := authenticator.Authenticate(ctx, journal, createdUser.ID, password, "warden-cli-demo")
	if err != nil {
		return fmt.Errorf("authenticate demo user: %w", err)
	}
	logger.Info("demo authentication succeeded", "user_id", createdUser.ID, "session_id", sess.ID)

	tok, err := tokenService.Generate(ctx, token.GenerateParams{
		UserID: createdUser.ID,
		Type:   token.TypeAccess,
		TTL:    config.ParseDuration(cfg.Providers.Token.AccessTokenTTL, 0),
	})
	if err != nil {
		return fmt.Errorf("generate demo access token: %w", err)
	}
	logger.Info("demo access token issued", "user_id", createdUser.ID, "token_id", tok.TokenID)

	decision, err := policyEngine.Evaluate("warden:demo", "read", policy.Context{
		UserID: createdUser.ID,
		Roles:  roles,
	})
	if err != nil {
		return fmt.Errorf("evaluate demo policy: %w", err)
	}
	logger.Info("demo policy decision", "user_id", createdUser.ID, "allowed", decision.Allowed, "matched_policy", decision.MatchedPolicyID)

	if err := authenticator.Logout(ctx, journal, sess.ID); err != nil {
		return fmt.Errorf("logout demo session: %w", err)
	}
	logger.Info("demo logout succeeded", "session_id", sess.ID)

	return nil
}

func rolesToSet(roles []string) map[string]struct{} {
	set := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}
