package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// RiskState is the persisted risk manager state.
type RiskState struct {
	SmartBaseline *float64 `json:"smart_baseline"`
}

// Baseline returns the persisted baseline, if any.
func (s RiskState) Baseline() (float64, bool) {
	if s.SmartBaseline == nil || *s.SmartBaseline <= 0 {
		return 0, false
	}
	return *s.SmartBaseline, true
}

// Store keeps RiskState in a JSON file. Writes replace the file atomically.
type Store struct {
	mu     sync.Mutex
	path   string
	state  RiskState
	closed bool
}

// Open loads path if it exists. A missing file yields an empty state; a
// corrupt file is reported so the caller can decide to start fresh.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s, nil
	case err != nil:
		return s, fmt.Errorf("read state file: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.state); err != nil {
		return s, fmt.Errorf("decode state file %s: %w", path, err)
	}
	return s, nil
}

func (s *Store) Path() string { return s.path }

// Load returns the current state.
func (s *Store) Load() RiskState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SaveBaseline records a new baseline and flushes it to disk.
func (s *Store) SaveBaseline(v float64) error {
	return s.Save(RiskState{SmartBaseline: &v})
}

// Save writes state to disk. Repeated identical saves leave identical files.
func (s *Store) Save(state RiskState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("state store is closed")
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	if err := writeFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	s.state = state
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// writeFileAtomic writes to a temp file in the same directory, syncs it and
// renames it over path.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}

	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
