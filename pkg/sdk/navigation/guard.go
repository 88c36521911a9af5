package navigation

import (
	"context"
	"log/slog"

	"github.com/EmanuelAngelo/mamutes-fa/pkg/sdk"
)

// AuthState is the part of the session the guard reads and drives.
// *sdk.Session implements it.
type AuthState interface {
	AccessToken() string
	Identity() *sdk.Identity
	IsLoadingIdentity() bool
	LoadIdentity(ctx context.Context) (*sdk.Identity, error)
	Logout()
}

var _ AuthState = (*sdk.Session)(nil)

// Decision is the outcome of a guard check: allow the transition, or redirect to a named
// route. A role mismatch is a redirect, never an error.
type Decision struct {
	Redirect string
}

// Allow lets the navigation proceed.
func Allow() Decision { return Decision{} }

// RedirectTo sends the navigation to the route called name.
func RedirectTo(name string) Decision { return Decision{Redirect: name} }

func (d Decision) Allowed() bool { return d.Redirect == "" }

func (d Decision) String() string {
	if d.Allowed() {
		return "allow"
	}
	return "redirect(" + d.Redirect + ")"
}

// Guard decides each transition from the current session state.
type Guard struct {
	auth   AuthState
	logger *slog.Logger
}

// NewGuard returns a guard over auth. A nil logger uses slog.Default().
func NewGuard(auth AuthState, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{auth: auth, logger: logger}
}

// Decide evaluates a transition to target. The identity is fetched lazily, once, when a
// protected route is entered with a token but no cached identity; a fetch already in
// flight is joined rather than skipped. A failed fetch ends the session.
//
// The only error returned is ctx's, when the caller gives up while the identity loads.
func (g *Guard) Decide(ctx context.Context, target Route) (Decision, error) {
	logger := g.logger.With("route", target.Name)

	if target.RequiresAuth {
		if g.auth.AccessToken() == "" {
			logger.Debug("not authenticated; redirecting to login")
			return RedirectTo(LoginRoute), nil
		}

		identity, err := g.resolveIdentity(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Decision{}, ctxErr
			}
			logger.Warn("identity fetch failed; ending session", "error", err)
			g.auth.Logout()
			return RedirectTo(LoginRoute), nil
		}

		if !target.Allows(identity.Role) {
			landing := landingRoute(identity.Role)
			logger.Debug("role not allowed", "role", identity.Role, "redirect", landing)
			return RedirectTo(landing), nil
		}
	}

	if target.Name == LoginRoute && g.auth.AccessToken() != "" {
		identity, err := g.resolveIdentity(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Decision{}, ctxErr
			}
			// Stale credentials: drop them and show the login view.
			logger.Warn("identity fetch failed on login view; ending session", "error", err)
			g.auth.Logout()
			return Allow(), nil
		}
		return RedirectTo(landingRoute(identity.Role)), nil
	}

	return Allow(), nil
}

func (g *Guard) resolveIdentity(ctx context.Context) (*sdk.Identity, error) {
	if identity := g.auth.Identity(); identity != nil {
		return identity, nil
	}
	if g.auth.IsLoadingIdentity() {
		g.logger.Debug("joining in-flight identity fetch")
	}
	return g.auth.LoadIdentity(ctx)
}

// landingRoute is the default view for a role.
func landingRoute(role sdk.Role) string {
	if role == sdk.RolePlayer {
		return PlayerDashboardRoute
	}
	return CoachDashboardRoute
}
