package navigation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// MaxRedirects bounds the redirects followed by a single navigation.
const MaxRedirects = 8

// ErrTooManyRedirects is returned when a navigation does not settle within MaxRedirects.
var ErrTooManyRedirects = errors.New("too many redirects")

// Location is where the navigator currently is.
type Location struct {
	Route  Route
	Path   string
	Params map[string]string
}

// Navigator resolves paths, runs the guard and follows its redirects. It keeps the
// current location and is safe for concurrent use.
type Navigator struct {
	routes *Routes
	guard  *Guard
	logger *slog.Logger

	mu       sync.Mutex
	current  *Location
	onChange func(Location)
}

// NavigatorOption configures a Navigator.
type NavigatorOption func(*Navigator)

// WithNavigatorLogger sets the structured logger.
func WithNavigatorLogger(logger *slog.Logger) NavigatorOption {
	return func(n *Navigator) {
		n.logger = logger
	}
}

// OnLocationChange registers fn to run after every completed navigation.
func OnLocationChange(fn func(Location)) NavigatorOption {
	return func(n *Navigator) {
		n.onChange = fn
	}
}

// NewNavigator returns a navigator over routes guarded by auth.
func NewNavigator(routes *Routes, auth AuthState, opts ...NavigatorOption) *Navigator {
	n := &Navigator{routes: routes, logger: slog.Default()}
	for _, opt := range opts {
		opt(n)
	}
	n.guard = NewGuard(auth, n.logger)
	return n
}

// Routes returns the table the navigator resolves against.
func (n *Navigator) Routes() *Routes {
	return n.routes
}

// Navigate moves to path. Route aliases and guard redirects are followed until a route is
// allowed; the final location is returned and recorded as current.
func (n *Navigator) Navigate(ctx context.Context, path string) (Location, error) {
	requested := path
	for hop := 0; hop <= MaxRedirects; hop++ {
		m, ok := n.routes.Match(path)
		if !ok {
			return Location{}, fmt.Errorf("%w: %s", ErrRouteNotFound, path)
		}
		if m.Route.Redirect != "" {
			path = m.Route.Redirect
			continue
		}

		decision, err := n.guard.Decide(ctx, m.Route)
		if err != nil {
			return Location{}, err
		}
		if decision.Allowed() {
			loc := Location{Route: m.Route, Path: m.Path, Params: m.Params}
			n.setCurrent(loc)
			if m.Path != cleanPath(requested) {
				n.logger.Debug("navigation redirected", "from", requested, "to", m.Path)
			}
			return loc, nil
		}

		next, ok := n.routes.Lookup(decision.Redirect)
		if !ok {
			return Location{}, fmt.Errorf("%w: redirect target %q", ErrRouteNotFound, decision.Redirect)
		}
		path = next.Path
	}
	return Location{}, fmt.Errorf("%w navigating to %s", ErrTooManyRedirects, requested)
}

// NavigateTo moves to the route called name. Path parameters are not filled in, so the
// route's pattern must be parameterless.
func (n *Navigator) NavigateTo(ctx context.Context, name string) (Location, error) {
	r, ok := n.routes.Lookup(name)
	if !ok {
		return Location{}, fmt.Errorf("%w: %q", ErrRouteNotFound, name)
	}
	return n.Navigate(ctx, r.Path)
}

// RedirectToLogin sends the navigator to the login view. It is meant to be passed to
// sdk.WithLoginRedirect, which calls it once the session has been dropped.
func (n *Navigator) RedirectToLogin() {
	if _, err := n.NavigateTo(context.Background(), LoginRoute); err != nil {
		n.logger.Error("redirect to login failed", "error", err)
	}
}

// Current returns the current location, if any navigation has completed.
func (n *Navigator) Current() (Location, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return Location{}, false
	}
	return *n.current, true
}

func (n *Navigator) setCurrent(loc Location) {
	n.mu.Lock()
	n.current = &loc
	fn := n.onChange
	n.mu.Unlock()

	if fn != nil {
		fn(loc)
	}
}
