package remote

import (
	"context"
	"fmt"

	"github.com/basepair/resourcereg/internal/store"
)

// NewBackendFactory returns a store.BackendFactory that dials a Remote RPC
// Store, to be registered under the "ws" scheme. opts.ReadOnly is ignored:
// Remote RPC Stores are always read-only.
func NewBackendFactory() store.BackendFactory {
	return func(ctx context.Context, entry store.Entry, _ store.Options) (store.Store, error) {
		s, err := Open(ctx, entry.Target, entry.DefaultLayer)
		if err != nil {
			return nil, fmt.Errorf("remote: open entry %q: %w", entry.Raw, err)
		}
		return s, nil
	}
}
