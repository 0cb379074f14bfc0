package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// fileSnapshot is the on-disk JSON form. Times are RFC 3339 so the file
// survives inspection and hand edits during debugging.
type fileSnapshot struct {
	Token     string `json:"token"`
	Role      string `json:"role"`
	ExpiresAt string `json:"expires_at"`
}

// FileStorage persists the snapshot as a mode 0600 JSON file. Writes go
// through a temp file and rename so a crash mid-write leaves either the
// old snapshot or the new one, never a torn mix.
type FileStorage struct {
	path string
}

// NewFileStorage returns storage rooted at path. The parent directory is
// created on first Save.
func NewFileStorage(path string) (*FileStorage, error) {
	if path == "" {
		return nil, errors.New("session: storage path is required")
	}
	return &FileStorage{path: path}, nil
}

func (f *FileStorage) Load(ctx context.Context) (Snapshot, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Snapshot{}, ErrNoSession
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("session: read %s: %w", f.path, err)
	}

	var stored fileSnapshot
	if err := json.Unmarshal(raw, &stored); err != nil {
		return Snapshot{}, ErrCorrupt
	}
	expires, err := time.Parse(time.RFC3339Nano, stored.ExpiresAt)
	if err != nil {
		return Snapshot{}, ErrCorrupt
	}
	snap := Snapshot{Token: stored.Token, Role: roleFromStorage(stored.Role), ExpiresAt: expires}
	if !snap.Complete() {
		return Snapshot{}, ErrCorrupt
	}
	return snap, nil
}

func (f *FileStorage) Save(ctx context.Context, snap Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("session: create storage dir: %w", err)
	}
	raw, err := json.Marshal(fileSnapshot{
		Token:     snap.Token,
		Role:      string(snap.Role),
		ExpiresAt: snap.ExpiresAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("session: encode snapshot: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("session: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("session: commit %s: %w", f.path, err)
	}
	return nil
}

func (f *FileStorage) Clear(ctx context.Context) error {
	err := os.Remove(f.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("session: clear %s: %w", f.path, err)
	}
	return nil
}
