package layer

import (
	"fmt"
	"sort"
)

// Manager holds the named layers of one analysis context. Scan regions and
// object locations refer to layers by name, so every layer a client hands
// to the framework must be registered here first.
type Manager struct {
	layers map[string]Layer
}

// NewManager returns an empty manager.
func NewManager() *Manager {
	return &Manager{layers: make(map[string]Layer)}
}

// Add registers a layer under its own name. Re-registering a name replaces
// the previous layer; derived per-process layers reuse names freely across
// analyses.
func (m *Manager) Add(l Layer) {
	m.layers[l.Name()] = l
}

// Get resolves a layer by name.
func (m *Manager) Get(name string) (Layer, error) {
	l, ok := m.layers[name]
	if !ok {
		return nil, fmt.Errorf("no layer named %q", name)
	}
	return l, nil
}

// Names returns the registered layer names in sorted order.
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.layers))
	for name := range m.layers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
