package store

import (
	"context"
	"fmt"
	"sync"
)

// Options configures how a Store is opened from a path entry.
type Options struct {
	ReadOnly bool
}

// BackendFactory creates a Store for a single parsed path entry.
type BackendFactory func(ctx context.Context, entry Entry, opts Options) (Store, error)

// Registry holds backend factories keyed by scheme: stores self-register a
// constructor under a scheme name, and path discovery looks the scheme up
// rather than switching on a closed set of concrete types.
type Registry struct {
	mu    sync.RWMutex
	byKey map[string]BackendFactory
}

// NewRegistry creates an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{byKey: make(map[string]BackendFactory)}
}

// Register associates scheme (e.g. "kv", "mysql", "postgres", "ws") with a
// factory. Re-registering the same scheme overwrites the prior factory.
func (r *Registry) Register(scheme string, factory BackendFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKey[scheme] = factory
}

// Open builds a Store for entry using the factory registered under its
// Scheme.
func (r *Registry) Open(ctx context.Context, entry Entry, opts Options) (Store, error) {
	r.mu.RLock()
	factory, ok := r.byKey[entry.Scheme]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("store: no backend registered for scheme %q (entry %q)", entry.Scheme, entry.Raw)
	}
	return factory(ctx, entry, opts)
}
