package loader

import (
	"sort"
	"sync"
)

// Registry records loaded resource keys. Entries are never removed.
type Registry struct {
	mu     sync.RWMutex
	loaded map[string]struct{}
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{loaded: make(map[string]struct{})}
}

// Has reports whether key was loaded
func (r *Registry) Has(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.loaded[key]
	return ok
}

// Mark records key as loaded
func (r *Registry) Mark(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded[key] = struct{}{}
}

// Keys returns the loaded keys in sorted order
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.loaded))
	for k := range r.loaded {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of loaded keys
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.loaded)
}
