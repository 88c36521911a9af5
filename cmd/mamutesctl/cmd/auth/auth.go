package auth

import (
	"context"

	"github.com/EmanuelAngelo/mamutes-fa/cmd/mamutesctl/internal/config"
	"github.com/EmanuelAngelo/mamutes-fa/cmd/mamutesctl/internal/prompt"
	"github.com/EmanuelAngelo/mamutes-fa/pkg/sdk"
	"github.com/spf13/cobra"
)

// AuthCmd is the parent command for auth operations
var AuthCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage authentication",
	Long:  `Commands for signing in and out and inspecting the stored session.`,
}

func init() {
	AuthCmd.AddCommand(loginCmd)
	AuthCmd.AddCommand(logoutCmd)
	AuthCmd.AddCommand(statusCmd)
	AuthCmd.AddCommand(exportCmd)
}

func sdkClient(ctx context.Context) (*sdk.Client, error) {
	return config.MustFromContext(ctx).ClientProvider.SDKClient(ctx)
}

func newPrompt(cmd *cobra.Command) *prompt.Reader {
	cfg := config.MustFromContext(cmd.Context())
	return prompt.New(cmd.InOrStdin(), cfg.NonInteractive)
}
