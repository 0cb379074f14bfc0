// Package session owns the client-side session lifecycle: restoring
// persisted credentials at startup, tracking the signed-in identity, and
// expiring or refreshing it over time. All state transitions funnel
// through the Manager so storage and in-memory state never disagree.
package session

import (
	"context"
	"errors"
	"time"

	"casaro.io/internal/auth"
)

var (
	// ErrNoSession signals that storage holds no persisted session.
	ErrNoSession = errors.New("session: no stored session")
	// ErrCorrupt signals a partial or unreadable persisted session. Callers
	// treat it like ErrNoSession after clearing the remnants.
	ErrCorrupt = errors.New("session: stored session is corrupt")
)

// Snapshot is the durable form of a session: the bearer token, the role
// and the expiry instant. The three travel together; a snapshot with any
// field missing is corrupt, never partially usable.
type Snapshot struct {
	Token     string
	Role      auth.Role
	ExpiresAt time.Time
}

// Complete reports whether all three fields are present.
func (s Snapshot) Complete() bool {
	return s.Token != "" && s.Role != "" && !s.ExpiresAt.IsZero()
}

// roleFromStorage maps a raw stored role to the enumeration. Anything
// outside it comes back empty, which fails the Complete check and marks
// the snapshot corrupt.
func roleFromStorage(raw string) auth.Role {
	role, ok := auth.ParseRole(raw)
	if !ok {
		return ""
	}
	return role
}

// Storage persists one session snapshot across process restarts. Save
// replaces whatever was stored before; Clear is idempotent and removes
// all three fields in one step.
type Storage interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
	Clear(ctx context.Context) error
}
