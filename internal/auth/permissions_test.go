package auth

import "testing"

func TestPermissionsForRoleMatchesCatalog(t *testing.T) {
	for _, role := range Roles() {
		set := PermissionsForRole(role)
		if len(set) != len(rolePermissions[role]) {
			t.Fatalf("role %s: expected %d permissions, got %d", role, len(rolePermissions[role]), len(set))
		}
		for _, p := range rolePermissions[role] {
			if _, ok := set[p]; !ok {
				t.Fatalf("role %s missing permission %s", role, p)
			}
		}
	}
}

func TestPermissionsForRoleReturnsCopies(t *testing.T) {
	first := PermissionsForRole(RoleClient)
	delete(first, PermReadProperties)

	second := PermissionsForRole(RoleClient)
	if _, ok := second[PermReadProperties]; !ok {
		t.Fatal("catalog leaked a mutable set")
	}
}

func TestPermissionsForUnknownRole(t *testing.T) {
	set := PermissionsForRole(Role("landlord"))
	if len(set) != 0 {
		t.Fatalf("expected empty set, got %v", set)
	}
}

func TestIdentityHasPermission(t *testing.T) {
	u := User{ID: "u1", Email: "agent@demo.com", Role: RoleAgent}
	id := u.Identity(u.CreatedAt)

	if !id.HasPermission(PermManageListings) {
		t.Fatal("agent should manage listings")
	}
	if id.HasPermission(PermManageUsers) {
		t.Fatal("agent must not manage users")
	}
}

func TestParseRole(t *testing.T) {
	role, ok := ParseRole("  Admin ")
	if !ok || role != RoleAdmin {
		t.Fatalf("unexpected parse result: %s ok=%v", role, ok)
	}
	if _, ok := ParseRole("superuser"); ok {
		t.Fatal("expected unknown role to be rejected")
	}
}
