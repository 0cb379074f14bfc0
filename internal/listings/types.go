// Package listings holds the property catalog agents work against. It is
// the main permission-gated surface: reads need properties.read, writes
// need properties.manage.
package listings

import (
	"errors"
	"time"

	"casaro.io/internal/ids"
)

// Status tracks a listing through its market lifecycle.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusSold      Status = "sold"
	StatusWithdrawn Status = "withdrawn"
)

// statusTransitions encodes the allowed lifecycle moves. Sold and
// withdrawn are terminal.
var statusTransitions = map[Status][]Status{
	StatusDraft:  {StatusActive, StatusWithdrawn},
	StatusActive: {StatusSold, StatusWithdrawn},
}

// CanTransition reports whether a listing may move from one status to
// another.
func CanTransition(from, to Status) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Listing is one property on the books. Price is in minor units, no
// floats.
type Listing struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Address    string    `json:"address"`
	City       string    `json:"city"`
	PriceCents int64     `json:"price_cents"`
	Currency   string    `json:"currency"`
	Status     Status    `json:"status"`
	AgentID    string    `json:"agent_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

var (
	ErrNotFound          = errors.New("listings: not found")
	ErrInvalidInput      = errors.New("listings: invalid input")
	ErrInvalidTransition = errors.New("listings: invalid status transition")
)

func newID() string {
	return ids.New()
}
