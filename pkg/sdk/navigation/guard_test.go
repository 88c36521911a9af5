package navigation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/EmanuelAngelo/mamutes-fa/pkg/sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAuth is an in-memory AuthState.
type fakeAuth struct {
	mu         sync.Mutex
	token      string
	identity   *sdk.Identity
	role       sdk.Role
	fetchErr   error
	fetches    int
	logouts    int
	loading    bool
	blockFetch chan struct{}
}

func (f *fakeAuth) AccessToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeAuth) Identity() *sdk.Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.identity
}

func (f *fakeAuth) IsLoadingIdentity() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loading
}

func (f *fakeAuth) LoadIdentity(ctx context.Context) (*sdk.Identity, error) {
	f.mu.Lock()
	f.fetches++
	block := f.blockFetch
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	f.identity = &sdk.Identity{Username: "someone", Role: f.role}
	return f.identity, nil
}

func (f *fakeAuth) Logout() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logouts++
	f.token = ""
	f.identity = nil
}

func route(t *testing.T, name string) Route {
	t.Helper()
	r, ok := DefaultRoutes().Lookup(name)
	require.True(t, ok, name)
	return r
}

func TestGuard_Decide(t *testing.T) {
	tests := []struct {
		name        string
		auth        *fakeAuth
		target      string
		want        Decision
		wantFetches int
		wantLogouts int
	}{
		{
			name:   "anonymous to protected route",
			auth:   &fakeAuth{},
			target: "coach-trainings",
			want:   RedirectTo(LoginRoute),
		},
		{
			name:   "anonymous to login",
			auth:   &fakeAuth{},
			target: LoginRoute,
			want:   Allow(),
		},
		{
			name:        "player to coach route",
			auth:        &fakeAuth{token: "t", role: sdk.RolePlayer},
			target:      "coach-athletes",
			want:        RedirectTo(PlayerDashboardRoute),
			wantFetches: 1,
		},
		{
			name:   "coach to player route with cached identity",
			auth:   &fakeAuth{token: "t", identity: &sdk.Identity{Role: sdk.RoleCoach}},
			target: "player-profile",
			want:   RedirectTo(CoachDashboardRoute),
		},
		{
			name:   "admin to coach route",
			auth:   &fakeAuth{token: "t", identity: &sdk.Identity{Role: sdk.RoleAdmin}},
			target: CoachDashboardRoute,
			want:   Allow(),
		},
		{
			name:        "identity fetch fails",
			auth:        &fakeAuth{token: "t", fetchErr: errors.New("boom")},
			target:      PlayerDashboardRoute,
			want:        RedirectTo(LoginRoute),
			wantFetches: 1,
			wantLogouts: 1,
		},
		{
			name:        "authenticated player to login",
			auth:        &fakeAuth{token: "t", role: sdk.RolePlayer},
			target:      LoginRoute,
			want:        RedirectTo(PlayerDashboardRoute),
			wantFetches: 1,
		},
		{
			name:   "authenticated coach to login",
			auth:   &fakeAuth{token: "t", identity: &sdk.Identity{Role: sdk.RoleCoach}},
			target: LoginRoute,
			want:   RedirectTo(CoachDashboardRoute),
		},
		{
			name:        "login with stale credentials",
			auth:        &fakeAuth{token: "t", fetchErr: errors.New("boom")},
			target:      LoginRoute,
			want:        Allow(),
			wantFetches: 1,
			wantLogouts: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			guard := NewGuard(tt.auth, nil)

			got, err := guard.Decide(context.Background(), route(t, tt.target))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantFetches, tt.auth.fetches)
			assert.Equal(t, tt.wantLogouts, tt.auth.logouts)
		})
	}
}

func TestGuard_CancelledWhileLoadingIdentity(t *testing.T) {
	auth := &fakeAuth{token: "t", role: sdk.RolePlayer, blockFetch: make(chan struct{})}
	guard := NewGuard(auth, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := guard.Decide(ctx, route(t, PlayerDashboardRoute))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, auth.logouts, "an abandoned navigation keeps the session")
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "allow", Allow().String())
	assert.Equal(t, "redirect(login)", RedirectTo(LoginRoute).String())
	assert.True(t, Allow().Allowed())
	assert.False(t, RedirectTo(LoginRoute).Allowed())
}
