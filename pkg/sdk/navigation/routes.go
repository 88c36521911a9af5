// Package navigation gates transitions between the application's views.
//
// Views are named routes with a path pattern, an authentication requirement and an
// optional set of roles. A Guard decides each transition against the shared session;
// a Navigator resolves paths, runs the guard and follows its redirects.
package navigation

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/EmanuelAngelo/mamutes-fa/pkg/sdk"
	"github.com/go-chi/chi/v5"
	"github.com/hashicorp/go-bexpr"
)

// Route names the guard depends on.
const (
	LoginRoute           = "login"
	PlayerDashboardRoute = "player-dashboard"
	CoachDashboardRoute  = "coach-dashboard"
)

// ErrRouteNotFound is returned when no route matches a path.
var ErrRouteNotFound = errors.New("route not found")

// Route describes a navigable view.
type Route struct {
	Name         string     `yaml:"name"`
	Path         string     `yaml:"path"`
	RequiresAuth bool       `yaml:"requires_auth"`
	Roles        []sdk.Role `yaml:"roles,omitempty"`
	// Redirect makes the route an alias: navigating to it continues at this path.
	Redirect string `yaml:"redirect,omitempty"`
}

// Allows reports whether role may enter the route. An empty role set admits everyone.
func (r Route) Allows(role sdk.Role) bool {
	if len(r.Roles) == 0 {
		return true
	}
	for _, allowed := range r.Roles {
		if allowed == role {
			return true
		}
	}
	return false
}

func (r Route) fields() map[string]any {
	roles := make([]string, len(r.Roles))
	for i, role := range r.Roles {
		roles[i] = string(role)
	}
	return map[string]any{
		"name":          r.Name,
		"path":          r.Path,
		"requires_auth": r.RequiresAuth,
		"roles":         roles,
		"redirect":      r.Redirect,
	}
}

var staff = []sdk.Role{sdk.RoleCoach, sdk.RoleAdmin}

// DefaultRouteTable is the application's route table.
func DefaultRouteTable() []Route {
	return []Route{
		{Name: LoginRoute, Path: "/login"},
		{Name: "home", Path: "/", Redirect: "/player"},
		{Name: PlayerDashboardRoute, Path: "/player", RequiresAuth: true, Roles: []sdk.Role{sdk.RolePlayer}},
		{Name: "player-profile", Path: "/player/profile", RequiresAuth: true, Roles: []sdk.Role{sdk.RolePlayer}},
		{Name: CoachDashboardRoute, Path: "/coach", RequiresAuth: true, Roles: staff},
		{Name: "coach-trainings", Path: "/coach/trainings", RequiresAuth: true, Roles: staff},
		{Name: "coach-training-detail", Path: "/coach/trainings/{id}", RequiresAuth: true, Roles: staff},
		{Name: "coach-athletes", Path: "/coach/athletes", RequiresAuth: true, Roles: staff},
		{Name: "coach-drills-catalog", Path: "/coach/drills-catalog", RequiresAuth: true, Roles: staff},
	}
}

// Routes is an immutable, validated route table.
type Routes struct {
	routes    []Route
	byName    map[string]int
	byPattern map[string]int
	mux       *chi.Mux
}

// DefaultRoutes returns the validated default table.
func DefaultRoutes() *Routes {
	routes, err := NewRoutes(DefaultRouteTable())
	if err != nil {
		panic(err)
	}
	return routes
}

// NewRoutes validates table and indexes it for matching. Paths use chi patterns
// ("/coach/trainings/{id}"). The login and both dashboard routes must be present.
func NewRoutes(table []Route) (*Routes, error) {
	rs := &Routes{
		routes:    make([]Route, len(table)),
		byName:    make(map[string]int, len(table)),
		byPattern: make(map[string]int, len(table)),
		mux:       chi.NewRouter(),
	}
	copy(rs.routes, table)

	noop := func(http.ResponseWriter, *http.Request) {}
	for i, r := range rs.routes {
		if r.Name == "" {
			return nil, fmt.Errorf("route %d: name is required", i)
		}
		if !strings.HasPrefix(r.Path, "/") {
			return nil, fmt.Errorf("route %q: path must start with /", r.Name)
		}
		if _, dup := rs.byName[r.Name]; dup {
			return nil, fmt.Errorf("route %q: duplicate name", r.Name)
		}
		if _, dup := rs.byPattern[r.Path]; dup {
			return nil, fmt.Errorf("route %q: duplicate path %s", r.Name, r.Path)
		}
		for _, role := range r.Roles {
			if !role.IsValid() {
				return nil, fmt.Errorf("route %q: unknown role %q", r.Name, role)
			}
		}
		if r.Redirect != "" && !strings.HasPrefix(r.Redirect, "/") {
			return nil, fmt.Errorf("route %q: redirect must be a path", r.Name)
		}
		rs.byName[r.Name] = i
		rs.byPattern[r.Path] = i
		rs.mux.Get(r.Path, noop)
	}

	for _, name := range []string{LoginRoute, PlayerDashboardRoute, CoachDashboardRoute} {
		if _, ok := rs.byName[name]; !ok {
			return nil, fmt.Errorf("route table has no %q route", name)
		}
	}
	return rs, nil
}

// All returns a copy of the table in declaration order.
func (rs *Routes) All() []Route {
	out := make([]Route, len(rs.routes))
	copy(out, rs.routes)
	return out
}

// Lookup returns the route called name.
func (rs *Routes) Lookup(name string) (Route, bool) {
	i, ok := rs.byName[name]
	if !ok {
		return Route{}, false
	}
	return rs.routes[i], true
}

// Match is a route resolved from a concrete path.
type Match struct {
	Route  Route
	Path   string
	Params map[string]string
}

// Match resolves path (query and trailing slash ignored) to a route.
func (rs *Routes) Match(path string) (Match, bool) {
	path = cleanPath(path)

	rctx := chi.NewRouteContext()
	if !rs.mux.Match(rctx, http.MethodGet, path) {
		return Match{}, false
	}
	i, ok := rs.byPattern[rctx.RoutePattern()]
	if !ok {
		return Match{}, false
	}

	m := Match{Route: rs.routes[i], Path: path}
	if n := len(rctx.URLParams.Keys); n > 0 {
		m.Params = make(map[string]string, n)
		for k, key := range rctx.URLParams.Keys {
			m.Params[key] = rctx.URLParams.Values[k]
		}
	}
	return m, true
}

// Filter returns the routes matching a boolean expression over the fields
// name, path, requires_auth, roles and redirect, e.g. `requires_auth == false`
// or `"COACH" in roles`. An empty expression returns every route.
func (rs *Routes) Filter(expr string) ([]Route, error) {
	if strings.TrimSpace(expr) == "" {
		return rs.All(), nil
	}

	evaluator, err := bexpr.CreateEvaluator(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid route filter: %w", err)
	}

	var out []Route
	for _, r := range rs.routes {
		ok, err := evaluator.Evaluate(r.fields())
		if err != nil {
			return nil, fmt.Errorf("evaluate route filter on %q: %w", r.Name, err)
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func cleanPath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return p
}
