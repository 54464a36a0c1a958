package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	atlaserrors "github.com/hpungsan/atlas/internal/errors"
)

// LegacyFileName is the legacy store's file inside the base directory.
const LegacyFileName = "legacy.json"

// DefaultLegacyCapacity is the legacy store's capacity in bytes.
const DefaultLegacyCapacity = 5 * 1024 * 1024

// LegacyStore is a small synchronous key-value store kept in a single JSON file.
// Its total size (keys plus values) is capped; a Set beyond the cap fails with
// QUOTA_EXCEEDED and leaves the file unchanged.
//
// Atlas only reads it through Migrating, as the source of the one-time move
// into the primary store.
type LegacyStore struct {
	mu       sync.Mutex
	path     string
	capacity int
}

// NewLegacyStore returns a legacy store backed by path.
// capacity <= 0 selects DefaultLegacyCapacity.
func NewLegacyStore(path string, capacity int) *LegacyStore {
	if capacity <= 0 {
		capacity = DefaultLegacyCapacity
	}
	return &LegacyStore{path: path, capacity: capacity}
}

func (s *LegacyStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return "", false, err
	}
	v, ok := data[key]
	return v, ok, nil
}

func (s *LegacyStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return err
	}
	data[key] = value
	if size := usage(data); size > s.capacity {
		return atlaserrors.NewQuotaExceeded(s.capacity, size)
	}
	return s.write(data)
}

func (s *LegacyStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := data[key]; !ok {
		return nil
	}
	delete(data, key)
	return s.write(data)
}

// Usage returns the bytes currently used (keys plus values).
func (s *LegacyStore) Usage() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.read()
	if err != nil {
		return 0, err
	}
	return usage(data), nil
}

func (s *LegacyStore) read() (map[string]string, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("legacy store: read: %w", err)
	}
	data := make(map[string]string)
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("legacy store: parse %s: %w", s.path, err)
	}
	return data, nil
}

// write replaces the file via temp file + rename.
func (s *LegacyStore) write(data map[string]string) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("legacy store: encode: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("legacy store: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".legacy-*.tmp")
	if err != nil {
		return fmt.Errorf("legacy store: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("legacy store: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("legacy store: close: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("legacy store: rename: %w", err)
	}
	return nil
}

func usage(data map[string]string) int {
	n := 0
	for k, v := range data {
		n += len(k) + len(v)
	}
	return n
}
