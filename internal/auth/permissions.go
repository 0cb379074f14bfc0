package auth

// Permission is a fine-grained capability key.
type Permission string

const (
	PermManageUsers     Permission = "users.manage"
	PermReadProperties  Permission = "properties.read"
	PermManageListings  Permission = "properties.manage"
	PermManageMarketing Permission = "marketing.manage"
	PermReadDocuments   Permission = "documents.read"
	PermManageDocuments Permission = "documents.manage"
	PermReadReports     Permission = "reports.read"
	PermManageSettings  Permission = "settings.manage"
)

// rolePermissions is the fixed role catalog. It is loaded once at process
// start and never mutated; callers always receive copies.
var rolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermManageUsers,
		PermReadProperties,
		PermManageListings,
		PermManageMarketing,
		PermReadDocuments,
		PermManageDocuments,
		PermReadReports,
		PermManageSettings,
	},
	RoleAgent: {
		PermReadProperties,
		PermManageListings,
		PermManageMarketing,
		PermReadDocuments,
		PermManageDocuments,
		PermReadReports,
	},
	RoleClient: {
		PermReadProperties,
		PermReadDocuments,
	},
}

// PermissionsForRole returns a fresh permission set for the role. Unknown
// roles yield an empty set, never nil lookups downstream.
func PermissionsForRole(role Role) map[Permission]struct{} {
	perms := rolePermissions[role]
	set := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// CatalogPermissions returns the deduplicated union of all catalogued
// permissions, for admin surfaces that enumerate capabilities.
func CatalogPermissions() []Permission {
	seen := make(map[Permission]struct{})
	var out []Permission
	for _, role := range Roles() {
		for _, p := range rolePermissions[role] {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}
