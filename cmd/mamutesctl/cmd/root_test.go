package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/EmanuelAngelo/mamutes-fa/pkg/sdk/sdktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(strings.NewReader(stdin))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("MAMUTES_SERVER", "")
	t.Setenv("MAMUTES_TOKEN", "")
	t.Setenv("MAMUTES_NON_INTERACTIVE", "1")
	return home
}

func TestCLI_SessionLifecycle(t *testing.T) {
	home := isolate(t)
	srv := sdktest.NewServer(t)
	srv.AddAccount("coach", "coach-pass", "COACH")
	server := "--server=" + srv.URL

	_, err := run(t, "", "me", server)
	assert.ErrorContains(t, err, "not logged in")

	_, err = run(t, "wrong-pass\n", "auth", "login", server, "-u", "coach")
	assert.ErrorContains(t, err, "login rejected")

	_, err = run(t, "coach-pass\n", "auth", "login", server, "-u", "coach")
	require.NoError(t, err)
	credentials := filepath.Join(home, ".mamutes", "credentials.json")
	assert.FileExists(t, credentials)

	out, err := run(t, "", "me", server)
	require.NoError(t, err)
	assert.Contains(t, out, "coach")
	assert.Contains(t, out, "COACH")

	out, err = run(t, "", "nav", "go", "/player", server)
	require.NoError(t, err)
	assert.Equal(t, "coach-dashboard /coach\n", out)

	out, err = run(t, "", "nav", "go", "/coach/trainings/3", server)
	require.NoError(t, err)
	assert.Equal(t, "coach-training-detail /coach/trainings/3\n  id=3\n", out)

	// An expired access token is renewed transparently and written back.
	srv.ExpireAccessTokens()
	out, err = run(t, "", "api", "get", "/api/probe/hello", server)
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "hello"`)
	assert.Equal(t, 1, srv.RefreshCalls())

	out, err = run(t, "", "auth", "export", "--shell", "fish", server)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "set -x MAMUTES_TOKEN "), out)
	token := strings.Trim(strings.TrimPrefix(strings.TrimSpace(out), "set -x MAMUTES_TOKEN "), `"`)
	assert.True(t, srv.IsAccessTokenValid(token), "export prints the renewed token")

	_, err = run(t, "", "auth", "logout", server)
	require.NoError(t, err)
	_, err = os.Stat(credentials)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCLI_UsersAndPassword(t *testing.T) {
	isolate(t)
	srv := sdktest.NewServer(t)
	srv.AddAccount("admin", "admin-pass", "ADMIN")
	server := "--server=" + srv.URL

	_, err := run(t, "admin-pass\n", "auth", "login", server, "-u", "admin")
	require.NoError(t, err)

	_, err = run(t, "rookie-pass\n", "users", "create", server, "-u", "rookie", "--first-name", "Rui")
	require.NoError(t, err)

	out, err := run(t, "", "users", "list", server, "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "rookie")
	assert.Contains(t, out, "Rui")

	_, err = run(t, "admin-pass\nshort\nshort\n", "account", "password", server)
	assert.ErrorContains(t, err, "at least 8")

	_, err = run(t, "admin-pass\nnew-admin-pass\nnew-admin-pass\n", "account", "password", server)
	require.NoError(t, err)

	_, err = run(t, "admin-pass\n", "auth", "login", server, "-u", "admin")
	assert.ErrorContains(t, err, "login rejected")
	_, err = run(t, "new-admin-pass\n", "auth", "login", server, "-u", "admin")
	require.NoError(t, err)
}

func TestCLI_TokenFlagAndRoutes(t *testing.T) {
	isolate(t)
	srv := sdktest.NewServer(t)
	srv.AddAccount("player", "secret-pass", "PLAYER")
	access, _ := srv.IssueTokens("player")
	server := "--server=" + srv.URL

	out, err := run(t, "", "me", server, "--token", access)
	require.NoError(t, err)
	assert.Contains(t, out, "player")

	_, err = run(t, "", "auth", "login", server, "--token", access)
	assert.ErrorContains(t, err, "--token")

	out, err = run(t, "", "nav", "routes", server, "--token", "", "--filter", "requires_auth == false")
	require.NoError(t, err)
	assert.Contains(t, out, "login")
	assert.NotContains(t, out, "coach-athletes")

	_, err = run(t, "", "nav", "go", "/nowhere", server)
	assert.ErrorContains(t, err, "route not found")
}

func TestCLI_ConfigFile(t *testing.T) {
	home := isolate(t)
	srv := sdktest.NewServer(t)
	srv.AddAccount("player", "secret-pass", "PLAYER")

	dir := filepath.Join(home, ".mamutes")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	t.Setenv("MAMUTES_TEST_SERVER", srv.URL)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(`
server_url: ${MAMUTES_TEST_SERVER}
credential_store: memory
routes:
  - name: login
    path: /entrar
  - name: player-dashboard
    path: /atleta
    requires_auth: true
    roles: [PLAYER]
  - name: coach-dashboard
    path: /treinador
    requires_auth: true
    roles: [COACH, ADMIN]
`), 0o600))

	// Memory store: nothing persists, so the guard sends us to the login view.
	out, err := run(t, "", "nav", "go", "/treinador", "--server", "")
	require.NoError(t, err)
	assert.Equal(t, "login /entrar\n", out)

	_, err = run(t, "", "me", "--config", filepath.Join(home, "missing.yaml"))
	assert.ErrorContains(t, err, "reading config file")
}
