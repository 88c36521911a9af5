package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/EmanuelAngelo/mamutes-fa/cmd/mamutesctl/cmd/account"
	"github.com/EmanuelAngelo/mamutes-fa/cmd/mamutesctl/cmd/api"
	"github.com/EmanuelAngelo/mamutes-fa/cmd/mamutesctl/cmd/auth"
	"github.com/EmanuelAngelo/mamutes-fa/cmd/mamutesctl/cmd/nav"
	"github.com/EmanuelAngelo/mamutes-fa/cmd/mamutesctl/cmd/users"
	credstore "github.com/EmanuelAngelo/mamutes-fa/cmd/mamutesctl/internal/auth"
	"github.com/EmanuelAngelo/mamutes-fa/cmd/mamutesctl/internal/client"
	"github.com/EmanuelAngelo/mamutes-fa/cmd/mamutesctl/internal/config"
	"github.com/EmanuelAngelo/mamutes-fa/pkg/sdk"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	serverURL      string
	configPath     string
	storeBackend   string
	timeout        time.Duration
	bearerToken    string
	verbose        bool
	nonInteractive bool
)

var rootCmd = &cobra.Command{
	Use:   "mamutesctl",
	Short: "Mamutes CLI - football team management client",
	Long: `mamutesctl is the command-line interface for the Mamutes team API.
Use it to sign in, inspect your account, check which views your role can reach,
manage users and call any API endpoint with automatic token renewal.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if os.Getenv("MAMUTES_NON_INTERACTIVE") == "1" {
			nonInteractive = true
		}

		dir, err := credstore.DefaultDir()
		if err != nil {
			return err
		}
		explicitConfig := cmd.Flags().Changed("config")
		path := configPath
		if !explicitConfig {
			path = filepath.Join(dir, "config.yaml")
		}
		file, err := config.Load(path, !explicitConfig)
		if err != nil {
			return err
		}
		routes, err := file.RouteTable()
		if err != nil {
			return fmt.Errorf("config %s: %w", path, err)
		}

		server := resolve(cmd, "server", serverURL, "MAMUTES_SERVER", file.ServerURL, config.DefaultServerURL)
		backend := resolve(cmd, "store", storeBackend, "", file.CredentialStore, credstore.BackendFile)
		token := resolve(cmd, "token", bearerToken, "MAMUTES_TOKEN", "", "")
		callTimeout := timeout
		if !cmd.Flags().Changed("timeout") && file.Timeout > 0 {
			callTimeout = file.Timeout
		}

		provider := client.NewProvider(client.Options{
			ServerURL:    server,
			StoreBackend: backend,
			Dir:          dir,
			Timeout:      callTimeout,
			BearerToken:  token,
			Routes:       routes,
			Logger:       newLogger(verbose),
		})

		cmd.SetContext(config.InjectConfig(cmd.Context(), &config.GlobalConfig{
			ServerURL:      server,
			NonInteractive: nonInteractive,
			ClientProvider: provider,
		}))
		return nil
	},
}

// resolve applies flag > environment > config file > default precedence. An empty flag
// counts as unset.
func resolve(cmd *cobra.Command, flag, flagValue, env, fileValue, def string) string {
	if cmd.Flags().Changed(flag) && flagValue != "" {
		return flagValue
	}
	if env != "" {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	if fileValue != "" {
		return fileValue
	}
	return def
}

// newLogger routes SDK logs through pterm on stderr; debug output needs --verbose.
func newLogger(verbose bool) *slog.Logger {
	level := pterm.LogLevelWarn
	if verbose {
		level = pterm.LogLevelDebug
	}
	logger := pterm.DefaultLogger.WithWriter(os.Stderr).WithLevel(level)
	return slog.New(pterm.NewSlogHandler(logger))
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if sdk.IsSessionExpired(err) {
			fmt.Fprintln(os.Stderr, "Session expired; run `mamutesctl auth login`.")
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Mamutes server URL (also set via MAMUTES_SERVER; default "+config.DefaultServerURL+")")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.mamutes/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&storeBackend, "store", "", "Credential store: file, keyring, memory (default file)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", sdk.DefaultTimeout, "Per-request timeout")
	rootCmd.PersistentFlags().StringVar(&bearerToken, "token", "", "Use this access token instead of the stored session (also set via MAMUTES_TOKEN)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log requests and token renewals to stderr")
	rootCmd.PersistentFlags().BoolVar(&nonInteractive, "non-interactive", false, "Disable interactive prompts (also set via MAMUTES_NON_INTERACTIVE=1)")

	rootCmd.AddCommand(auth.AuthCmd)
	rootCmd.AddCommand(meCmd)
	rootCmd.AddCommand(nav.NavCmd)
	rootCmd.AddCommand(users.UsersCmd)
	rootCmd.AddCommand(account.AccountCmd)
	rootCmd.AddCommand(api.APICmd)
}
