package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wardenauth/warden/internal/adapter/outbound/memory"
)

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Hash a password for use in a development config's test_users",
	Long: `Hash a password with the same Argon2id parameters the bundled
in-memory credential store uses, so a value pasted into
development.test_users[].password (or stored out of band for a seed
script) verifies exactly like one the store produced itself.

Example:
  warden hash-password "correct-horse-battery-staple"

Security note: the password will appear in shell history. Prefer piping
it in from an environment variable:
  warden hash-password "$SEED_PASSWORD"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := memory.HashPassword(args[0])
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		fmt.Println(hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashPasswordCmd)
}
