package nav

import (
	"fmt"
	"sort"
	"strings"

	"github.com/EmanuelAngelo/mamutes-fa/cmd/mamutesctl/internal/config"
	"github.com/EmanuelAngelo/mamutes-fa/pkg/sdk/navigation"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// NavCmd is the parent command for view navigation checks
var NavCmd = &cobra.Command{
	Use:   "nav",
	Short: "Check which views the signed-in account can reach",
	Long: `Runs the application's navigation guard against the current session.

Use it to see where a path actually lands for your role, and to list the
route table with its authentication and role requirements.`,
}

var filterExpr string

var goCmd = &cobra.Command{
	Use:   "go <path>",
	Short: "Navigate to a path and show where it lands",
	Example: `  mamutesctl nav go /coach/trainings/12
  mamutesctl nav go /`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.MustFromContext(cmd.Context())
		nav, err := cfg.ClientProvider.Navigator(cmd.Context())
		if err != nil {
			return err
		}

		loc, err := nav.Navigate(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%s %s\n", loc.Route.Name, loc.Path)
		if len(loc.Params) > 0 {
			keys := make([]string, 0, len(loc.Params))
			for k := range loc.Params {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(w, "  %s=%s\n", k, loc.Params[k])
			}
		}
		if redirected(nav.Routes(), args[0], loc) {
			pterm.Info.Printf("Redirected from %s\n", args[0])
		}
		return nil
	},
}

// redirected reports whether navigation landed somewhere other than the requested path,
// comparing cleaned paths so a trailing slash or query string does not count.
func redirected(routes *navigation.Routes, requested string, loc navigation.Location) bool {
	m, ok := routes.Match(requested)
	return !ok || m.Path != loc.Path
}

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "List the route table",
	Example: `  mamutesctl nav routes
  mamutesctl nav routes --filter 'requires_auth == false'
  mamutesctl nav routes --filter '"COACH" in roles'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.MustFromContext(cmd.Context())
		nav, err := cfg.ClientProvider.Navigator(cmd.Context())
		if err != nil {
			return err
		}

		routes, err := nav.Routes().Filter(filterExpr)
		if err != nil {
			return err
		}

		out, err := pterm.DefaultTable.WithHasHeader().WithData(routeTable(routes)).Srender()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

func routeTable(routes []navigation.Route) pterm.TableData {
	data := pterm.TableData{{"NAME", "PATH", "AUTH", "ROLES", "REDIRECT"}}
	for _, r := range routes {
		roles := make([]string, len(r.Roles))
		for i, role := range r.Roles {
			roles[i] = string(role)
		}
		auth := "no"
		if r.RequiresAuth {
			auth = "yes"
		}
		data = append(data, []string{r.Name, r.Path, auth, strings.Join(roles, ","), r.Redirect})
	}
	return data
}

func init() {
	routesCmd.Flags().StringVar(&filterExpr, "filter", "", "Boolean expression over name, path, requires_auth, roles, redirect")
	NavCmd.AddCommand(goCmd)
	NavCmd.AddCommand(routesCmd)
}
