package session

import (
	"context"
	"sync"
)

// MemoryStorage keeps the snapshot in process memory. Used by tests and
// by ephemeral tooling that should not leave credentials on disk.
type MemoryStorage struct {
	mu   sync.Mutex
	snap Snapshot
	set  bool
}

// NewMemoryStorage returns an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (m *MemoryStorage) Load(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.set {
		return Snapshot{}, ErrNoSession
	}
	if !m.snap.Complete() {
		return Snapshot{}, ErrCorrupt
	}
	return m.snap, nil
}

func (m *MemoryStorage) Save(ctx context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = snap
	m.set = true
	return nil
}

func (m *MemoryStorage) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = Snapshot{}
	m.set = false
	return nil
}

// Corrupt overwrites the stored snapshot with a partial one, simulating
// interrupted writes or manual tampering.
func (m *MemoryStorage) Corrupt(partial Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = partial
	m.set = true
}
