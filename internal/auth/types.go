package auth

import (
	"strings"
	"time"
)

// Role is the closed set of account roles served by the platform.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleAgent  Role = "agent"
	RoleClient Role = "client"
)

// Roles lists every valid role in a stable order.
func Roles() []Role {
	return []Role{RoleAdmin, RoleAgent, RoleClient}
}

// ParseRole normalizes raw input into a Role.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.TrimSpace(strings.ToLower(raw))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleAgent:
		return RoleAgent, true
	case RoleClient:
		return RoleClient, true
	default:
		return "", false
	}
}

// Valid reports whether the role is one of the enumerated values.
func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// User is a stored account record. It mirrors the users table and carries
// the password hash, so it never crosses the service boundary directly.
type User struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	Role         Role
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity represents the authenticated principal handed to the rest of the
// application. Permissions are a snapshot taken from the role catalog at
// assignment time, not re-derived per check.
type Identity struct {
	ID          string
	Email       string
	FirstName   string
	LastName    string
	Role        Role
	Permissions map[Permission]struct{}
	LastActive  time.Time
}

// Identity converts the stored user into a principal with role-derived
// permissions snapshotted at this instant.
func (u *User) Identity(now time.Time) Identity {
	return Identity{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Role:        u.Role,
		Permissions: PermissionsForRole(u.Role),
		LastActive:  now,
	}
}

// HasPermission reports whether the identity holds the given permission.
func (id Identity) HasPermission(p Permission) bool {
	_, ok := id.Permissions[p]
	return ok
}

// DisplayName renders the name parts for UI surfaces.
func (id Identity) DisplayName() string {
	name := strings.TrimSpace(id.FirstName + " " + id.LastName)
	if name == "" {
		return id.Email
	}
	return name
}

// Session wraps an Identity in its credential envelope. A session is valid
// iff the current time is strictly before ExpiresAt.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Identity  Identity
}

// ValidAt reports whether the session is still live at the given instant.
// An expired session must never be treated as authenticated.
func (s *Session) ValidAt(now time.Time) bool {
	if s == nil || s.Token == "" {
		return false
	}
	return now.Before(s.ExpiresAt)
}

// NormalizeEmail lower-cases and trims an address for case-insensitive
// comparison and storage.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
