package auth

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/EmanuelAngelo/mamutes-fa/pkg/sdk"
	"github.com/spf13/cobra"
)

var shellFormat string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the access token as MAMUTES_TOKEN",
	Long: `Outputs shell commands that set MAMUTES_TOKEN to the current access token,
so scripts and other tools can call the API without the credential store.

Supported shells:
  - posix (bash, zsh, sh) - default
  - fish
  - powershell

Usage:
  # POSIX shells (bash/zsh/sh)
  eval $(mamutesctl auth export)

  # Fish shell
  eval (mamutesctl auth export --shell fish)

  # PowerShell
  mamutesctl auth export --shell powershell | Invoke-Expression

An expired access token is renewed first. If the session cannot be renewed you will
be asked to run 'mamutesctl auth login'.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&shellFormat, "shell", "", "Shell format: posix, fish, powershell (auto-detected if not specified)")
}

func runExport(cmd *cobra.Command, args []string) error {
	c, err := sdkClient(cmd.Context())
	if err != nil {
		return err
	}
	session := c.Session()
	if !session.IsAuthenticated() {
		return fmt.Errorf("not logged in\n\nPlease run 'mamutesctl auth login' first")
	}

	if info, err := sdk.InspectToken(session.AccessToken()); err == nil && info.IsExpired() {
		if !session.RefreshAccessToken(cmd.Context()) {
			return fmt.Errorf("access token has expired\n\nPlease run 'mamutesctl auth login' to refresh your credentials")
		}
	}

	format := shellFormat
	if format == "" {
		format = detectShell()
	}

	w := cmd.OutOrStdout()
	token := session.AccessToken()
	switch strings.ToLower(format) {
	case "posix", "bash", "zsh", "sh":
		printHint("eval $(mamutesctl auth export)")
		fmt.Fprintf(w, "export MAMUTES_TOKEN=%q\n", token)
	case "fish":
		printHint("eval (mamutesctl auth export --shell fish)")
		fmt.Fprintf(w, "set -x MAMUTES_TOKEN %q\n", token)
	case "powershell", "pwsh", "ps1":
		printHint("mamutesctl auth export --shell powershell | Invoke-Expression")
		fmt.Fprintf(w, "$env:MAMUTES_TOKEN=%q\n", token)
	default:
		return fmt.Errorf("unsupported shell format: %s\n\nSupported formats: posix, fish, powershell", format)
	}
	return nil
}

// detectShell attempts to detect the current shell from the SHELL environment variable
func detectShell() string {
	shell := os.Getenv("SHELL")
	if shell == "" {
		return "posix"
	}

	switch filepath.Base(shell) {
	case "fish":
		return "fish"
	case "pwsh", "powershell":
		return "powershell"
	default:
		return "posix"
	}
}

// printHint writes usage instructions to stderr when stdout is a terminal, i.e. when
// the output is not being eval'd.
func printHint(usage string) {
	if !isTerminal(os.Stdout) {
		return
	}
	var b strings.Builder
	fmt.Fprintln(&b, "# Run this command to configure your environment:")
	fmt.Fprintf(&b, "#   %s\n\n", usage)
	_, _ = io.WriteString(os.Stderr, b.String())
}

// isTerminal checks if the given file is a terminal (TTY)
func isTerminal(f *os.File) bool {
	fileInfo, err := f.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}
