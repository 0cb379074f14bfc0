// Package events fans session transitions out to in-process subscribers
// (SSE activity feeds, metrics, tests).
package events

import (
	"context"
	"sync"
	"time"

	"casaro.io/internal/auth"
)

// Type enumerates session transitions worth broadcasting.
type Type string

const (
	TypeLogin      Type = "session.login"
	TypeRegistered Type = "session.registered"
	TypeRefreshed  Type = "session.refreshed"
	TypeLogout     Type = "session.logout"
	TypeExpired    Type = "session.expired"
)

// Event describes one session transition.
type Event struct {
	Type      Type      `json:"type"`
	UserID    string    `json:"user_id,omitempty"`
	Email     string    `json:"email,omitempty"`
	Role      auth.Role `json:"role,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Bus fan-outs events to all active subscribers.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

// NewBus initialises an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (b *Bus) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 16)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		close(ch)
		b.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers.
func (b *Bus) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}
