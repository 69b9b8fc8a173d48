package jsonstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Makepad-fr/tada/internal/store/memstore"
	"github.com/Makepad-fr/tada/internal/todo"
)

// JSON-backed storage. Single file, human-readable, portable.
// Every unit of work loads the file, applies the work to the in-memory state
// and rewrites the file through a temp file + rename. Single process only:
// the mutex does not guard against other writers.

const DataFileName = "todos.json"

// DataPath returns todos.json in the working directory.
func DataPath() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getwd: %w", err)
	}
	return filepath.Join(wd, DataFileName), nil
}

type Store struct {
	mu   sync.Mutex
	path string
}

var _ todo.Store = (*Store)(nil)

// Open returns a store persisting to path. An empty path means DataPath().
func Open(path string) (*Store, error) {
	if path == "" {
		p, err := DataPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	return &Store{path: path}, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Do(ctx context.Context, fn func(tx todo.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.load()
	if err != nil {
		return err
	}
	st := memstore.StateFromSnapshot(snap)
	before := st.Snapshot()
	if err := fn(st); err != nil {
		return err
	}
	after := st.Snapshot()
	if sameSnapshot(before, after) {
		return nil
	}
	return s.save(after)
}

func (s *Store) load() (memstore.Snapshot, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return memstore.Snapshot{}, nil
		}
		return memstore.Snapshot{}, fmt.Errorf("read file: %w", err)
	}
	var snap memstore.Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return memstore.Snapshot{}, fmt.Errorf("json unmarshal: %w", err)
	}
	return snap, nil
}

func (s *Store) save(snap memstore.Snapshot) error {
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".todos-*.json")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// reads skip the rewrite
func sameSnapshot(a, b memstore.Snapshot) bool {
	if a.NextItemID != b.NextItemID || a.NextEventID != b.NextEventID || len(a.Items) != len(b.Items) {
		return false
	}
	for i := range a.Items {
		x, y := a.Items[i], b.Items[i]
		if x.ID != y.ID || x.Description != y.Description || len(x.History) != len(y.History) {
			return false
		}
	}
	return true
}
