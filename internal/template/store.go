package template

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned for unknown template ids.
var ErrNotFound = errors.New("template not found")

// Store holds the definitions of one templates directory.
type Store struct {
	mu      sync.RWMutex
	defs    map[string]*Definition
	touched map[string]time.Time
}

func NewStore() *Store {
	return &Store{defs: make(map[string]*Definition), touched: make(map[string]time.Time)}
}

// LoadDir reads every *.yaml and *.yml file in dir, replacing the store's
// contents. Any invalid file fails the whole load and leaves the store as
// it was.
func (s *Store) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read templates directory: %w", err)
	}

	defs := make(map[string]*Definition)
	touched := make(map[string]time.Time)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !(strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")) {
			continue
		}
		path := filepath.Join(dir, name)
		def, err := Read(path)
		if err != nil {
			return 0, err
		}
		if _, dup := defs[def.ID]; dup {
			return 0, fmt.Errorf("%s: duplicate template id %q", path, def.ID)
		}
		info, err := entry.Info()
		if err != nil {
			return 0, err
		}
		defs[def.ID] = def
		touched[def.ID] = info.ModTime()
	}

	s.mu.Lock()
	s.defs, s.touched = defs, touched
	s.mu.Unlock()
	return len(defs), nil
}

// Put adds or replaces a definition.
func (s *Store) Put(def *Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defs[def.ID] = def
	s.touched[def.ID] = time.Now()
	return nil
}

func (s *Store) Get(id string) (*Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.defs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return def, nil
}

// List returns all definitions ordered by id.
func (s *Store) List() []*Definition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Definition, 0, len(s.defs))
	for _, d := range s.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Latest returns the most recently modified definition.
func (s *Store) Latest() (*Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		latest *Definition
		when   time.Time
	)
	for id, d := range s.defs {
		if t := s.touched[id]; latest == nil || t.After(when) || (t.Equal(when) && id > latest.ID) {
			latest, when = d, t
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}
