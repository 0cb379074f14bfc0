// Package guard contains the pure navigation and render gates consulted on
// every route change. Guards never mutate session state and never fail:
// every input maps to a render, pending or redirect decision.
package guard

import "casaro.io/internal/auth"

// Canonical navigation targets.
const (
	LandingPath = "/"
	LoginPath   = "/login"
)

// dashboardPaths is total over the role enumeration; every role routes to
// exactly one dashboard root.
var dashboardPaths = map[auth.Role]string{
	auth.RoleAdmin:  "/admin/dashboard",
	auth.RoleAgent:  "/agent/dashboard",
	auth.RoleClient: "/client/dashboard",
}

// DashboardPath returns the dashboard root for a role. Values outside the
// enumeration fall back to the public landing path.
func DashboardPath(role auth.Role) string {
	if p, ok := dashboardPaths[role]; ok {
		return p
	}
	return LandingPath
}

// Session is the guard-visible view of the session context. Ready is false
// until initialization finished reading persisted state; treating that
// window as unauthenticated would cause a redirect flash on reload.
type Session struct {
	Ready         bool
	Authenticated bool
	Role          auth.Role
}

// Policy declares a route's access requirement. An empty role set marks a
// public route; one role is an exact requirement; several mean any-of.
type Policy struct {
	Roles []auth.Role
}

// Public declares a route with no role requirement.
func Public() Policy { return Policy{} }

// RequireRole declares an exact role requirement.
func RequireRole(role auth.Role) Policy {
	return Policy{Roles: []auth.Role{role}}
}

// RequireAnyRole declares a set-membership requirement.
func RequireAnyRole(roles ...auth.Role) Policy {
	return Policy{Roles: roles}
}

// Action is the outcome kind of a route guard evaluation.
type Action int

const (
	// ActionRender lets the route content through.
	ActionRender Action = iota
	// ActionPending asks for a neutral loading state while the session
	// context is still initializing.
	ActionPending
	// ActionRedirect sends the caller elsewhere.
	ActionRedirect
)

// Decision is the total outcome of a guard evaluation. ReturnTo carries the
// originally requested path when redirecting to login, so a post-login
// redirect can return the caller there.
type Decision struct {
	Action   Action
	Target   string
	ReturnTo string
}

// Evaluate decides whether the requested route renders. It is a pure
// function of its inputs: evaluating twice without a state change yields
// the same decision.
func Evaluate(s Session, p Policy, requestedPath string) Decision {
	if !s.Ready {
		return Decision{Action: ActionPending}
	}

	if len(p.Roles) == 0 {
		// Public surface: signed-in callers skip straight to their dashboard.
		if s.Authenticated {
			return Decision{Action: ActionRedirect, Target: DashboardPath(s.Role)}
		}
		return Decision{Action: ActionRender}
	}

	if !s.Authenticated {
		return Decision{Action: ActionRedirect, Target: LoginPath, ReturnTo: requestedPath}
	}

	for _, role := range p.Roles {
		if role == s.Role {
			return Decision{Action: ActionRender}
		}
	}
	// Role mismatch reroutes silently to the caller's own dashboard; there
	// is no forbidden page in this design.
	return Decision{Action: ActionRedirect, Target: DashboardPath(s.Role)}
}
