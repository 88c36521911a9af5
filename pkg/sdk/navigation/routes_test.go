package navigation

import (
	"testing"

	"github.com/EmanuelAngelo/mamutes-fa/pkg/sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoutes_Match(t *testing.T) {
	routes := DefaultRoutes()

	tests := []struct {
		path   string
		name   string
		params map[string]string
	}{
		{"/login", LoginRoute, nil},
		{"/", "home", nil},
		{"/player", PlayerDashboardRoute, nil},
		{"/player/", PlayerDashboardRoute, nil},
		{"player/profile", "player-profile", nil},
		{"/coach?tab=week", CoachDashboardRoute, nil},
		{"/coach/trainings", "coach-trainings", nil},
		{"/coach/trainings/42", "coach-training-detail", map[string]string{"id": "42"}},
		{"/coach/drills-catalog", "coach-drills-catalog", nil},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			m, ok := routes.Match(tt.path)
			require.True(t, ok)
			assert.Equal(t, tt.name, m.Route.Name)
			assert.Equal(t, tt.params, m.Params)
		})
	}

	_, ok := routes.Match("/coach/unknown")
	assert.False(t, ok)
}

func TestRoutes_Lookup(t *testing.T) {
	routes := DefaultRoutes()

	r, ok := routes.Lookup(CoachDashboardRoute)
	require.True(t, ok)
	assert.Equal(t, "/coach", r.Path)
	assert.True(t, r.RequiresAuth)
	assert.True(t, r.Allows(sdk.RoleAdmin))
	assert.False(t, r.Allows(sdk.RolePlayer))

	login, ok := routes.Lookup(LoginRoute)
	require.True(t, ok)
	assert.False(t, login.RequiresAuth)
	assert.True(t, login.Allows(""))

	_, ok = routes.Lookup("nope")
	assert.False(t, ok)
}

func TestNewRoutes_Validation(t *testing.T) {
	base := func() []Route { return DefaultRouteTable() }

	tests := []struct {
		name    string
		mutate  func([]Route) []Route
		wantErr string
	}{
		{"duplicate name", func(r []Route) []Route { return append(r, Route{Name: LoginRoute, Path: "/other"}) }, "duplicate name"},
		{"duplicate path", func(r []Route) []Route { return append(r, Route{Name: "again", Path: "/login"}) }, "duplicate path"},
		{"relative path", func(r []Route) []Route { return append(r, Route{Name: "x", Path: "x"}) }, "must start with /"},
		{"unknown role", func(r []Route) []Route {
			return append(r, Route{Name: "x", Path: "/x", Roles: []sdk.Role{"QB"}})
		}, "unknown role"},
		{"missing login", func(r []Route) []Route { return r[1:] }, `no "login" route`},
		{"unnamed", func(r []Route) []Route { return append(r, Route{Path: "/x"}) }, "name is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRoutes(tt.mutate(base()))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestRoutes_Filter(t *testing.T) {
	routes := DefaultRoutes()

	public, err := routes.Filter("requires_auth == false")
	require.NoError(t, err)
	assert.Equal(t, []string{LoginRoute, "home"}, names(public))

	coach, err := routes.Filter(`name matches "^coach-"`)
	require.NoError(t, err)
	assert.Len(t, coach, 5)

	all, err := routes.Filter("  ")
	require.NoError(t, err)
	assert.Len(t, all, len(DefaultRouteTable()))

	_, err = routes.Filter("requires_auth ==")
	assert.ErrorContains(t, err, "invalid route filter")
}

func TestRoutes_AllIsACopy(t *testing.T) {
	routes := DefaultRoutes()
	all := routes.All()
	all[0].Name = "changed"

	_, ok := routes.Lookup(LoginRoute)
	assert.True(t, ok)
	assert.Equal(t, LoginRoute, routes.All()[0].Name)
}

func names(routes []Route) []string {
	out := make([]string, len(routes))
	for i, r := range routes {
		out[i] = r.Name
	}
	return out
}
