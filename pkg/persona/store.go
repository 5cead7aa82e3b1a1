package persona

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store loads persona prompt files from a directory: one <name>.md per
// persona. Files are cached after first read.
type Store struct {
	dir   string
	mu    sync.RWMutex
	cache map[string]string
}

func NewStore(dir string) *Store {
	return &Store{
		dir:   dir,
		cache: make(map[string]string),
	}
}

// Load returns the persona's base prompt.
func (s *Store) Load(name string) (string, error) {
	s.mu.RLock()
	cached, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	// Persona names come from requests; keep them inside the dir.
	if name != filepath.Base(name) || strings.ContainsAny(name, "/\\") {
		return "", fmt.Errorf("unknown persona %q", name)
	}

	path := filepath.Join(s.dir, name+".md")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("unknown persona %q: %w", name, err)
	}

	prompt := strings.TrimSpace(string(data))
	s.mu.Lock()
	s.cache[name] = prompt
	s.mu.Unlock()
	return prompt, nil
}

// List names every persona with a prompt file.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read persona dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".md"))
	}
	return names, nil
}
