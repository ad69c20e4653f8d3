package kv

import (
	"context"
	"fmt"

	"github.com/basepair/resourcereg/internal/store"
)

// NewBackendFactory returns a store.BackendFactory that opens a Local KV
// Store rooted at entry.Target, to be registered under the "kv" scheme.
func NewBackendFactory() store.BackendFactory {
	return func(_ context.Context, entry store.Entry, opts store.Options) (store.Store, error) {
		s, err := Open(entry.Target, entry.DefaultLayer, opts.ReadOnly)
		if err != nil {
			return nil, fmt.Errorf("kv: open entry %q: %w", entry.Raw, err)
		}
		return s, nil
	}
}
