package repository

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Snapshot is a JSON array file that is always replaced wholesale, used for
// the device catalog mirror and the user configuration rules.
type Snapshot[T any] struct {
	path string
	mu   sync.Mutex
}

func NewSnapshot[T any](dir, name string) (*Snapshot[T], error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir %q: %w", dir, err)
	}
	return &Snapshot[T]{path: filepath.Join(dir, name+".json")}, nil
}

// Load returns the last saved items; a missing file yields an empty slice.
func (s *Snapshot[T]) Load() ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := readFileIfExists(s.path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return []T{}, nil
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", s.path, err)
	}
	return items, nil
}

// Save replaces the snapshot atomically.
func (s *Snapshot[T]) Save(items []T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSONArrayAtomic(s.path, items)
}
