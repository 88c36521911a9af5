package cmd

import (
	"fmt"

	"github.com/EmanuelAngelo/mamutes-fa/cmd/mamutesctl/internal/config"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var meCmd = &cobra.Command{
	Use:   "me",
	Short: "Show the signed-in account",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.MustFromContext(cmd.Context())

		c, err := cfg.ClientProvider.SDKClient(cmd.Context())
		if err != nil {
			return err
		}
		if !c.Session().IsAuthenticated() {
			return fmt.Errorf("not logged in\n\nPlease run 'mamutesctl auth login' first")
		}

		me, err := c.Me(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to load account: %w", err)
		}

		athlete := "-"
		if me.AthleteID != nil {
			athlete = fmt.Sprintf("%d", *me.AthleteID)
		}
		data := pterm.TableData{
			{"ID", fmt.Sprintf("%d", me.ID)},
			{"Username", me.Username},
			{"Name", me.DisplayName()},
			{"Email", me.Email},
			{"Role", string(me.Role)},
			{"Athlete", athlete},
		}
		out, err := pterm.DefaultTable.WithData(data).Srender()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}
