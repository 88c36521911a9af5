package client

import (
	"context"
	"testing"

	"github.com/EmanuelAngelo/mamutes-fa/cmd/mamutesctl/internal/auth"
	"github.com/EmanuelAngelo/mamutes-fa/pkg/sdk"
	"github.com/EmanuelAngelo/mamutes-fa/pkg/sdk/navigation"
	"github.com/EmanuelAngelo/mamutes-fa/pkg/sdk/sdktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_FileStoreSharedAcrossInvocations(t *testing.T) {
	srv := sdktest.NewServer(t)
	srv.AddAccount("coach", "coach-pass", "COACH")
	dir := t.TempDir()
	ctx := context.Background()

	first := NewProvider(Options{ServerURL: srv.URL, StoreBackend: auth.BackendFile, Dir: dir})
	c, err := first.SDKClient(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Login(ctx, "coach", "coach-pass"))

	again, err := first.SDKClient(ctx)
	require.NoError(t, err)
	assert.Same(t, c, again)

	second := NewProvider(Options{ServerURL: srv.URL, Dir: dir})
	c2, err := second.SDKClient(ctx)
	require.NoError(t, err)
	assert.Equal(t, c.Session().AccessToken(), c2.Session().AccessToken())

	me, err := c2.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, sdk.RoleCoach, me.Role)
}

func TestProvider_BearerToken(t *testing.T) {
	srv := sdktest.NewServer(t)
	srv.AddAccount("player", "secret-pass", "PLAYER")
	access, _ := srv.IssueTokens("player")

	p := NewProvider(Options{ServerURL: srv.URL, BearerToken: access, Dir: t.TempDir()})
	assert.True(t, p.UsesBearerToken())

	c, err := p.SDKClient(context.Background())
	require.NoError(t, err)

	me, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "player", me.Username)

	reqs := srv.Requests()
	require.NotEmpty(t, reqs)
	assert.Equal(t, "Bearer "+access, reqs[0].Authorization)
}

func TestProvider_RejectedBearerTokenIsDropped(t *testing.T) {
	srv := sdktest.NewServer(t)
	srv.AddAccount("player", "secret-pass", "PLAYER")
	access, _ := srv.IssueTokens("player")
	srv.ExpireAccessTokens()
	ctx := context.Background()

	p := NewProvider(Options{ServerURL: srv.URL, BearerToken: access, Dir: t.TempDir()})
	store, err := p.Store()
	require.NoError(t, err)
	seeded, ok, err := store.Get(sdk.AccessTokenKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, access, seeded)

	c, err := p.SDKClient(ctx)
	require.NoError(t, err)

	err = c.Get(ctx, "probe/first", nil, nil)
	assert.True(t, sdk.IsUnauthorized(err))
	assert.False(t, c.Session().IsAuthenticated())

	// Once the session has dropped the token, nothing re-attaches it.
	_ = c.Get(ctx, "probe/second", nil, nil)
	reqs := srv.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "Bearer "+access, reqs[0].Authorization)
	assert.Empty(t, reqs[1].Authorization)
}

func TestProvider_ExpiredSessionRedirectsNavigator(t *testing.T) {
	srv := sdktest.NewServer(t)
	srv.AddAccount("coach", "coach-pass", "COACH")
	ctx := context.Background()

	p := NewProvider(Options{ServerURL: srv.URL, StoreBackend: auth.BackendMemory})
	c, err := p.SDKClient(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Login(ctx, "coach", "coach-pass"))

	nav, err := p.Navigator(ctx)
	require.NoError(t, err)
	loc, err := nav.Navigate(ctx, "/coach/athletes")
	require.NoError(t, err)
	assert.Equal(t, "coach-athletes", loc.Route.Name)

	srv.ExpireAccessTokens()
	srv.RevokeRefreshTokens()
	_, err = c.Me(ctx)
	assert.True(t, sdk.IsSessionExpired(err))

	current, ok := nav.Current()
	require.True(t, ok)
	assert.Equal(t, navigation.LoginRoute, current.Route.Name)
}

func TestProvider_UnknownBackend(t *testing.T) {
	p := NewProvider(Options{ServerURL: "http://localhost:8000", StoreBackend: "vault"})
	_, err := p.SDKClient(context.Background())
	assert.ErrorContains(t, err, "unknown credential store")

	_, err = p.Navigator(context.Background())
	assert.Error(t, err)
}
