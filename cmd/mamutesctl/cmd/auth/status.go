package auth

import (
	"fmt"
	"time"

	"github.com/EmanuelAngelo/mamutes-fa/cmd/mamutesctl/internal/config"
	"github.com/EmanuelAngelo/mamutes-fa/pkg/sdk"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display authentication status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.MustFromContext(cmd.Context())
		c, err := sdkClient(cmd.Context())
		if err != nil {
			return err
		}

		session := c.Session()
		if !session.IsAuthenticated() {
			return fmt.Errorf("not logged in")
		}

		pterm.DefaultSection.Println("Authentication Status")
		pterm.Info.Printf("Server: %s\n", c.BaseURL())
		if info, err := sdk.InspectToken(session.AccessToken()); err == nil && !info.ExpiresAt.IsZero() {
			state := "valid"
			if info.IsExpired() {
				state = "expired, renewed on next request"
			}
			pterm.Info.Printf("Access token expires at: %s (%s)\n", info.ExpiresAt.Format(time.RFC1123), state)
		}
		if session.RefreshToken() == "" && !cfg.ClientProvider.UsesBearerToken() {
			pterm.Warning.Println("No refresh token stored; you will need to log in again when the access token expires.")
		}

		// Goes through the intercepted client, so an expired access token is renewed here.
		me, err := c.Me(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to load account: %w", err)
		}
		pterm.Info.Printf("Signed in as: %s (%s)\n", me.Username, me.Role)
		return nil
	},
}
