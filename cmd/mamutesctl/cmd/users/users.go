package users

import (
	"fmt"
	"strconv"

	"github.com/EmanuelAngelo/mamutes-fa/cmd/mamutesctl/internal/config"
	"github.com/EmanuelAngelo/mamutes-fa/cmd/mamutesctl/internal/prompt"
	"github.com/EmanuelAngelo/mamutes-fa/pkg/sdk"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// UsersCmd is the parent command for account administration (coach/admin only)
var UsersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage team accounts (coach/admin)",
}

var (
	search   string
	ordering string
	allUsers bool
	include  int64

	newUsername  string
	newEmail     string
	newFirstName string
	newLastName  string
	newRole      string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	Long: `Lists accounts. By default only accounts without a linked athlete are shown,
which is what the coach needs when linking a new athlete; use --all for everyone.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.MustFromContext(cmd.Context()).ClientProvider.SDKClient(cmd.Context())
		if err != nil {
			return err
		}

		users, err := c.ListUsers(cmd.Context(), sdk.ListUsersOptions{
			Search:   search,
			Ordering: ordering,
			AllUsers: allUsers,
			Include:  include,
		})
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}
		if len(users) == 0 {
			pterm.Info.Println("No users found")
			return nil
		}

		data := pterm.TableData{{"ID", "USERNAME", "NAME", "EMAIL", "ROLE"}}
		for _, u := range users {
			name := (&sdk.Identity{Username: u.Username, FirstName: u.FirstName, LastName: u.LastName}).DisplayName()
			data = append(data, []string{strconv.FormatInt(u.ID, 10), u.Username, name, u.Email, string(u.Role)})
		}
		out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account",
	Long: `Creates an account. The password is prompted for, or read from stdin in
non-interactive mode.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.MustFromContext(cmd.Context())
		c, err := cfg.ClientProvider.SDKClient(cmd.Context())
		if err != nil {
			return err
		}

		in := prompt.New(cmd.InOrStdin(), cfg.NonInteractive)
		username, err := in.Text("Username", newUsername)
		if err != nil {
			return err
		}
		password, err := in.Secret("Password")
		if err != nil {
			return err
		}

		user, err := c.CreateUser(cmd.Context(), sdk.CreateUserInput{
			Username:  username,
			Email:     newEmail,
			Password:  password,
			FirstName: newFirstName,
			LastName:  newLastName,
			Role:      sdk.Role(newRole),
		})
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		pterm.Success.Printf("Created user %s (id %d, %s)\n", user.Username, user.ID, user.Role)
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&search, "search", "", "Filter by username, name or email")
	listCmd.Flags().StringVar(&ordering, "ordering", "", "Sort field, prefix with - for descending (e.g. -username)")
	listCmd.Flags().BoolVar(&allUsers, "all", false, "Include accounts already linked to an athlete")
	listCmd.Flags().Int64Var(&include, "include", 0, "Always include this account id")

	createCmd.Flags().StringVarP(&newUsername, "username", "u", "", "Username")
	createCmd.Flags().StringVar(&newEmail, "email", "", "Email address")
	createCmd.Flags().StringVar(&newFirstName, "first-name", "", "First name")
	createCmd.Flags().StringVar(&newLastName, "last-name", "", "Last name")
	createCmd.Flags().StringVar(&newRole, "role", string(sdk.RolePlayer), "Role: PLAYER, COACH or ADMIN")

	UsersCmd.AddCommand(listCmd)
	UsersCmd.AddCommand(createCmd)
}
