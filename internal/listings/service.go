package listings

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Status  Status
	AgentID string
	City    string
}

// Service defines catalog operations.
type Service interface {
	Create(ctx context.Context, draft Listing) (Listing, error)
	Get(ctx context.Context, id string) (Listing, error)
	List(ctx context.Context, f Filter) ([]Listing, error)
	UpdateDetails(ctx context.Context, id string, title, address, city string, priceCents int64) (Listing, error)
	Transition(ctx context.Context, id string, to Status) (Listing, error)
}

// InMemory implements Service with in-process concurrency safety.
// NOTE: Replace with durable storage once the catalog outgrows a demo.
type InMemory struct {
	mu    sync.RWMutex
	items map[string]*Listing
	now   func() time.Time
}

// NewInMemory creates an empty catalog.
func NewInMemory() *InMemory {
	return &InMemory{items: make(map[string]*Listing), now: time.Now}
}

func validateDraft(l Listing) error {
	if strings.TrimSpace(l.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if strings.TrimSpace(l.Address) == "" {
		return fmt.Errorf("%w: address is required", ErrInvalidInput)
	}
	if l.PriceCents <= 0 {
		return fmt.Errorf("%w: price must be positive", ErrInvalidInput)
	}
	if l.AgentID == "" {
		return fmt.Errorf("%w: agent is required", ErrInvalidInput)
	}
	return nil
}

func (s *InMemory) Create(ctx context.Context, draft Listing) (Listing, error) {
	if err := validateDraft(draft); err != nil {
		return Listing{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	item := &Listing{
		ID:         newID(),
		Title:      strings.TrimSpace(draft.Title),
		Address:    strings.TrimSpace(draft.Address),
		City:       strings.TrimSpace(draft.City),
		PriceCents: draft.PriceCents,
		Currency:   draft.Currency,
		Status:     StatusDraft,
		AgentID:    draft.AgentID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if item.Currency == "" {
		item.Currency = "EUR"
	}
	s.items[item.ID] = item
	return *item, nil
}

func (s *InMemory) Get(ctx context.Context, id string) (Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return Listing{}, ErrNotFound
	}
	return *item, nil
}

func (s *InMemory) List(ctx context.Context, f Filter) ([]Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Listing
	for _, item := range s.items {
		if f.Status != "" && item.Status != f.Status {
			continue
		}
		if f.AgentID != "" && item.AgentID != f.AgentID {
			continue
		}
		if f.City != "" && !strings.EqualFold(item.City, f.City) {
			continue
		}
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemory) UpdateDetails(ctx context.Context, id string, title, address, city string, priceCents int64) (Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return Listing{}, ErrNotFound
	}
	if strings.TrimSpace(title) == "" {
		return Listing{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if priceCents <= 0 {
		return Listing{}, fmt.Errorf("%w: price must be positive", ErrInvalidInput)
	}
	item.Title = strings.TrimSpace(title)
	item.Address = strings.TrimSpace(address)
	item.City = strings.TrimSpace(city)
	item.PriceCents = priceCents
	item.UpdatedAt = s.now().UTC()
	return *item, nil
}

func (s *InMemory) Transition(ctx context.Context, id string, to Status) (Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return Listing{}, ErrNotFound
	}
	if !CanTransition(item.Status, to) {
		return Listing{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, item.Status, to)
	}
	item.Status = to
	item.UpdatedAt = s.now().UTC()
	return *item, nil
}
