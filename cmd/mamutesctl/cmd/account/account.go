package account

import (
	"fmt"

	"github.com/EmanuelAngelo/mamutes-fa/cmd/mamutesctl/internal/config"
	"github.com/EmanuelAngelo/mamutes-fa/cmd/mamutesctl/internal/prompt"
	"github.com/EmanuelAngelo/mamutes-fa/pkg/sdk"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// AccountCmd is the parent command for self-service account operations
var AccountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage your own account",
}

var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Change your password",
	Long: fmt.Sprintf(`Changes the signed-in account's password. New passwords need at least %d
characters. In non-interactive mode the current, new and confirmation passwords
are read from stdin, one per line.`, sdk.MinPasswordLength),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.MustFromContext(cmd.Context())
		c, err := cfg.ClientProvider.SDKClient(cmd.Context())
		if err != nil {
			return err
		}
		if !c.Session().IsAuthenticated() {
			return fmt.Errorf("not logged in\n\nPlease run 'mamutesctl auth login' first")
		}

		in := prompt.New(cmd.InOrStdin(), cfg.NonInteractive)
		var input sdk.ChangePasswordInput
		if input.CurrentPassword, err = in.Secret("Current password"); err != nil {
			return err
		}
		if input.NewPassword, err = in.Secret("New password"); err != nil {
			return err
		}
		if input.ConfirmPassword, err = in.Secret("Confirm password"); err != nil {
			return err
		}

		if err := c.ChangePassword(cmd.Context(), input); err != nil {
			return fmt.Errorf("failed to change password: %w", err)
		}
		pterm.Success.Println("Password updated")
		return nil
	},
}

func init() {
	AccountCmd.AddCommand(passwordCmd)
}
