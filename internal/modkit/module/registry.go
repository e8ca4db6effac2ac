package module

import (
	"slices"
	"sync"
)

// Registry keeps mounted modules by name for cross module lookups
type Registry struct {
	mu   sync.RWMutex
	mods map[string]Module
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{mods: map[string]Module{}}
}

// Register adds m under its name; a second module with the same name panics
func (r *Registry) Register(m Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.mods[m.Name()]; dup {
		panic("module " + m.Name() + " registered twice")
	}
	r.mods[m.Name()] = m
}

// Get returns the module registered under name
func (r *Registry) Get(name string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.mods[name]
	return m, ok
}

// Names lists registered modules in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.mods))
	for n := range r.mods {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// Lookup finds a T among the ports of the module registered under name
func Lookup[T any](r *Registry, name string) (T, bool) {
	m, ok := r.Get(name)
	if !ok {
		var zero T
		return zero, false
	}
	return PortsOf[T](m)
}
