package guard

import "casaro.io/internal/auth"

// PermissionChecker is the slice of the session context the permission
// guards consume. false answers for unauthenticated callers keep the
// guards total.
type PermissionChecker interface {
	HasPermission(auth.Permission) bool
}

// Mode selects how a multi-permission requirement combines.
type Mode int

const (
	// RequireAny passes when at least one listed permission is held.
	RequireAny Mode = iota
	// RequireAll passes only when every listed permission is held.
	RequireAll
)

// Allow reports whether content gated on a single permission may render.
func Allow(c PermissionChecker, perm auth.Permission) bool {
	return c.HasPermission(perm)
}

// AllowSet reports whether content gated on a permission set may render.
// An empty set requires nothing and passes.
func AllowSet(c PermissionChecker, mode Mode, perms ...auth.Permission) bool {
	if len(perms) == 0 {
		return true
	}
	switch mode {
	case RequireAll:
		for _, p := range perms {
			if !c.HasPermission(p) {
				return false
			}
		}
		return true
	default:
		for _, p := range perms {
			if c.HasPermission(p) {
				return true
			}
		}
		return false
	}
}
