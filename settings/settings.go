// Package settings provides small persistent key/value storage for
// process-wide state that must survive restarts, most importantly the
// name of the currently committed bundle root.
//
// State is stored as a flat JSON object in a single file. The default
// location follows the XDG convention:
//
//	$XDG_DATA_HOME/langtab/state.json  (default: ~/.local/share/langtab/)
//
// but any path can be injected, which is what the bundle store and the
// tests do. File permissions are 0600 (owner read/write only).
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	json "github.com/goccy/go-json"
)

const (
	dataDirName = "langtab"
	fileName    = "state.json"
)

// Slot is a named persistent string slot. Get returns the empty string
// (and no error) when the name has never been set.
type Slot interface {
	Get(name string) (string, error)
	Set(name, value string) error
}

// ---------------------------------------------------------------------------
// File-backed store
// ---------------------------------------------------------------------------

// FileStore is a Slot backed by a JSON file on disk. Safe for concurrent
// use within one process; the whole file is rewritten on every Set.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a FileStore persisting to path. The file and its
// parent directory are created lazily on the first Set.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath returns the XDG data-directory location of the state file.
func DefaultPath() (string, error) {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, dataDirName, fileName), nil
}

// Get returns the value stored under name, or "" if absent.
func (s *FileStore) Get(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return "", err
	}
	return values[name], nil
}

// Set stores value under name and rewrites the state file.
func (s *FileStore) Set(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return err
	}
	values[name] = value

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("writing %s: %w", s.path, err)
	}
	return nil
}

// read loads the state file, returning an empty map when it does not
// exist yet.
func (s *FileStore) read() (map[string]string, error) {
	values := make(map[string]string)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return values, nil
		}
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.path, err)
	}
	return values, nil
}

// ---------------------------------------------------------------------------
// In-memory store
// ---------------------------------------------------------------------------

// MemStore is a Slot that lives only for the process lifetime.
// Useful for tests and for callers that opt out of persistence.
type MemStore struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemStore returns an empty in-memory slot store.
func NewMemStore() *MemStore {
	return &MemStore{values: make(map[string]string)}
}

// Get returns the value stored under name, or "" if absent.
func (s *MemStore) Get(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[name], nil
}

// Set stores value under name.
func (s *MemStore) Set(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = value
	return nil
}
