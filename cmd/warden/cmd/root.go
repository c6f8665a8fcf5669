// Package cmd provides the CLI commands for Warden.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wardenauth/warden/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "Warden - pluggable authentication and authorization framework",
	Long: `Warden is a library-first authentication and authorization framework:
credential verification, session lifecycle, user/role directory, audit
journaling, policy decisions, token issuance, and rate limiting, each
behind a small provider interface so an application can swap the bundled
in-memory implementation for its own.

This binary is a wiring demo and an operations aid, not a server. Warden
carries no network transport of its own; embed the library in your own
service and call its providers directly.

Quick start:
  1. Create a config file: warden.yaml
  2. Check it: warden config validate
  3. See it wired together: warden serve

Configuration:
  Config is loaded from warden.yaml in the current directory, /etc/warden/,
  or $HOME/.warden/.

  Environment variables can override config values with the WARDEN_ prefix.
  Example: WARDEN_PROVIDERS_TOKEN_SIGNING_KEY=supersecret

  Config values may also reference environment variables directly:
  signing_key: ${TOKEN_SIGNING_KEY}
  signing_key: ${TOKEN_SIGNING_KEY:-dev-only-key}
  signing_key: ${TOKEN_SIGNING_KEY:?TOKEN_SIGNING_KEY must be set in production}

Commands:
  serve          Wire the configured providers together and report readiness
  config         Validate a configuration file
  hash-password  Hash a password with the same Argon2id parameters the
                 bundled credential store uses
  version        Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./warden.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
