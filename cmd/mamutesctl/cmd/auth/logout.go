package auth

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out from Mamutes",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := sdkClient(cmd.Context())
		if err != nil {
			return err
		}

		c.Logout()
		pterm.Success.Println("Logged out successfully")
		return nil
	},
}
