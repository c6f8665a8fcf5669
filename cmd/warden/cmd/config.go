package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wardenauth/warden/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and validate Warden configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and validate the configuration file",
	Long: `Load the configuration file (resolving environment-variable
references and applying defaults) and run it through the same validation
a "warden serve" boot would, without wiring any providers.

Exits non-zero and prints the validation error if the configuration is
invalid.`,
	RunE: runConfigValidate,
}

func init() {
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration invalid: %v\n", err)
		return err
	}

	if file := config.ConfigFileUsed(); file != "" {
		fmt.Printf("config ok: %s\n", file)
	} else {
		fmt.Println("config ok (no config file found; defaults and environment only)")
	}
	fmt.Printf("  credential provider: %s\n", cfg.Providers.Credential.Provider)
	fmt.Printf("  session provider:    %s\n", cfg.Providers.Session.Provider)
	fmt.Printf("  user provider:       %s\n", cfg.Providers.User.Provider)
	fmt.Printf("  audit provider:      %s\n", cfg.Providers.Audit.Provider)
	fmt.Printf("  policy provider:     %s\n", cfg.Providers.Policy.Provider)
	fmt.Printf("  token provider:      %s (%s)\n", cfg.Providers.Token.Provider, cfg.Providers.Token.Algorithm)
	fmt.Printf("  rate_limit provider: %s\n", cfg.Providers.RateLimit.Provider)
	return nil
}
