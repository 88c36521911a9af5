package auth

import (
	"errors"
	"fmt"

	"github.com/EmanuelAngelo/mamutes-fa/cmd/mamutesctl/internal/config"
	"github.com/EmanuelAngelo/mamutes-fa/pkg/sdk"
	"github.com/EmanuelAngelo/mamutes-fa/pkg/sdk/navigation"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var username string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to Mamutes",
	Long: `Signs in with username and password and stores the token pair in the
credential store selected by --store.

The password is prompted for interactively. In non-interactive mode
(--non-interactive or MAMUTES_NON_INTERACTIVE=1) it is read from the first line
of stdin, preceded by the username when --username is not given:

  printf '%s\n' "$PASSWORD" | mamutesctl auth login --username coach --non-interactive`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.MustFromContext(cmd.Context())
		if cfg.ClientProvider.UsesBearerToken() {
			return errors.New("cannot log in while --token/MAMUTES_TOKEN is set")
		}

		in := newPrompt(cmd)
		user, err := in.Text("Username", username)
		if err != nil {
			return err
		}
		password, err := in.Secret("Password")
		if err != nil {
			return err
		}

		c, err := sdkClient(cmd.Context())
		if err != nil {
			return err
		}

		if err := c.Login(cmd.Context(), user, password); err != nil {
			var authErr *sdk.AuthenticationError
			if errors.As(err, &authErr) {
				return fmt.Errorf("login rejected: %s", authErr.Detail)
			}
			return err
		}

		me := c.Session().Identity()
		nav, err := cfg.ClientProvider.Navigator(cmd.Context())
		if err != nil {
			return err
		}
		landing, err := nav.NavigateTo(cmd.Context(), navigation.LoginRoute)
		if err != nil {
			return err
		}

		pterm.Success.Printf("Logged in as %s (%s)\n", me.DisplayName(), me.Role)
		pterm.Info.Printf("Landing view: %s (%s)\n", landing.Route.Name, landing.Path)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&username, "username", "u", "", "Account username")
}
