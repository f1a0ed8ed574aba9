package tools

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/user/secreport/pkg/engine"
)

// Store persists registrations to a JSON file. Writes go through a temp
// file and rename so concurrent readers never see a partial registry.
type Store struct {
	mu    sync.RWMutex
	Tools map[string]Registration `json:"tools"`
	path  string
}

func NewStore(path string) *Store {
	return &Store{
		Tools: make(map[string]Registration),
		path:  path,
	}
}

// Load replaces the in-memory state with the file contents. A missing file
// leaves the store empty. Symlinks are rejected.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.rejectSymlink(); err != nil {
		return err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.Tools = make(map[string]Registration)
			return nil
		}
		return err
	}

	var onDisk struct {
		Tools map[string]Registration `json:"tools"`
	}
	if err := json.Unmarshal(data, &onDisk); err != nil {
		return fmt.Errorf("decode registry %s: %w", s.path, err)
	}
	if onDisk.Tools == nil {
		onDisk.Tools = make(map[string]Registration)
	}
	s.Tools = onDisk.Tools
	return nil
}

// Save writes the registry with 0o600 permissions.
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.rejectSymlink(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return engine.WriteFileAtomic(s.path, append(data, '\n'), 0o600)
}

// Close releases the store. The file is already flushed by Save.
func (s *Store) Close() error { return nil }

func (s *Store) rejectSymlink() error {
	info, err := os.Lstat(s.path)
	if err != nil {
		return nil
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("registry file is a symlink (rejected): %s", s.path)
	}
	return nil
}

func (s *Store) Get(name string) (Registration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.Tools[name]
	return r, ok
}

func (s *Store) Set(r Registration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Tools[r.Name] = r
}

func (s *Store) Delete(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Tools, name)
}

// Snapshot returns a copy of all registrations.
func (s *Store) Snapshot() map[string]Registration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Registration, len(s.Tools))
	for k, v := range s.Tools {
		out[k] = v
	}
	return out
}

func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.Tools))
	for k := range s.Tools {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (s *Store) Path() string {
	return s.path
}
