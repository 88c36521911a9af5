package nav

import (
	"testing"

	"github.com/EmanuelAngelo/mamutes-fa/pkg/sdk/navigation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedirected(t *testing.T) {
	routes := navigation.DefaultRoutes()
	coach, ok := routes.Match("/coach")
	require.True(t, ok)
	landed := navigation.Location{Route: coach.Route, Path: coach.Path}

	tests := []struct {
		requested string
		want      bool
	}{
		{"/coach", false},
		{"/coach/", false},
		{"/coach?week=3", false},
		{"/coach#drills", false},
		{"/player", true},
		{"/", true},
		{"/nowhere", true},
	}
	for _, tt := range tests {
		t.Run(tt.requested, func(t *testing.T) {
			assert.Equal(t, tt.want, redirected(routes, tt.requested, landed))
		})
	}
}
