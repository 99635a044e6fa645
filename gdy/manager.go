package gdy

import (
	"fmt"
	"path/filepath"
	"sync"
)

// Manager caches compiled descriptions by name, so repeatedly creating
// sessions from the same declaration does not re-read and re-compile its
// YAML file every time. Uses double-checked locking: an RLock fast path
// for the common cache hit, falling back to a full Lock only on a miss.
type Manager struct {
	dir string

	mu    sync.RWMutex
	cache map[string]*Compiled
}

// NewManager returns a manager that resolves description names to
// "<dir>/<name>.yaml" files.
func NewManager(dir string) *Manager {
	return &Manager{dir: dir, cache: make(map[string]*Compiled)}
}

// Load returns the compiled description for name, compiling and caching it
// on first use.
func (m *Manager) Load(name string) (*Compiled, error) {
	m.mu.RLock()
	if c, ok := m.cache[name]; ok {
		m.mu.RUnlock()
		return c, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.cache[name]; ok {
		return c, nil
	}

	path := filepath.Join(m.dir, name+".yaml")
	compiled, err := LoadAndCompile(path)
	if err != nil {
		return nil, fmt.Errorf("gdy: loading %q: %w", name, err)
	}
	m.cache[name] = compiled
	return compiled, nil
}

// Invalidate drops a cached compiled description, forcing the next Load to
// re-read and re-compile its file.
func (m *Manager) Invalidate(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, name)
}

// Names lists every description currently cached.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.cache))
	for name := range m.cache {
		out = append(out, name)
	}
	return out
}
