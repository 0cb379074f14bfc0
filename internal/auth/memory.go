package auth

import (
	"context"
	"sync"
	"time"

	"casaro.io/internal/ids"
)

var _ UserStore = (*MemoryStore)(nil)

// MemoryStore implements UserStore in process memory. It backs the demo
// deployment and tests; production uses PGStore.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*User
	byEmail map[string]string // normalized email -> id
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory user directory.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]*User),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, u *User) error {
	email := NormalizeEmail(u.Email)
	if email == "" || !u.Role.Valid() {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[email]; ok {
		return ErrAlreadyExists
	}
	if u.ID == "" {
		u.ID = ids.New()
	}
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	now := s.now().UTC()
	u.Email = email
	u.CreatedAt = now
	u.UpdatedAt = now
	cp := *u
	s.byID[u.ID] = &cp
	s.byEmail[email] = u.ID
	return nil
}

func (s *MemoryStore) Find(ctx context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*User, 0, len(s.byID))
	for _, u := range s.byID {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) UpdateRole(ctx context.Context, id string, role Role) error {
	if !role.Valid() {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	u.Role = role
	u.UpdatedAt = s.now().UTC()
	return nil
}

func (s *MemoryStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = s.now().UTC()
	return nil
}

// SeedDemoUsers installs the demo accounts used by dev environments and the
// smoke binary. Existing accounts are left untouched.
func SeedDemoUsers(ctx context.Context, store UserStore, password string) error {
	demo := []User{
		{Email: "admin@demo.com", FirstName: "Dana", LastName: "Reyes", Role: RoleAdmin},
		{Email: "agent@demo.com", FirstName: "Marco", LastName: "Lindqvist", Role: RoleAgent},
		{Email: "client@demo.com", FirstName: "Priya", LastName: "Nandakumar", Role: RoleClient},
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	for i := range demo {
		demo[i].PasswordHash = hash
		demo[i].Status = UserStatusActive
		if err := store.Create(ctx, &demo[i]); err != nil && err != ErrAlreadyExists {
			return err
		}
	}
	return nil
}
