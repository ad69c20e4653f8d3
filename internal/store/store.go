// Package store defines the Store contract: the back-end operations any
// pluggable resource database must implement, independent of whether it is
// a local key-value file, a SQL table, or a remote RPC endpoint.
package store

import (
	"context"

	"github.com/basepair/resourcereg/internal/types"
)

// Record is a resource as returned by Get: its opaque payload plus the
// metadata a Store tracks alongside it.
type Record struct {
	Payload []byte
	Meta    types.Meta
}

// Store is any back-end for a single logical resource database. All
// mutating methods fail with types.ErrImmutableStore on a read-only Store.
type Store interface {
	// Get returns the first-hit payload for id across known location keys.
	// ok is false (err nil) when the id is simply absent; err is non-nil on
	// I/O failure.
	Get(ctx context.Context, id string) (rec Record, ok bool, err error)

	// Put replaces any prior (id, locationKey) row.
	Put(ctx context.Context, id string, payload []byte, meta types.Meta) error

	// Delete removes the resource; ok is false if it was already absent.
	Delete(ctx context.Context, id string) (ok bool, err error)

	// ListPrefix lists ids with the given lexical prefix. If withMeta is
	// true, metas is populated parallel to ids; otherwise it is nil.
	ListPrefix(ctx context.Context, prefix string, withMeta bool) (ids []string, metas []types.Meta, err error)

	// GetSchema returns the attribute -> descriptor mapping for id, or
	// ok == false if id has no schema entry.
	GetSchema(ctx context.Context, id string) (entry types.SchemaEntry, ok bool, err error)

	// PutSchema sets a single attribute's descriptor on id's schema entry.
	// Stores write descriptor as given and do not check that a non-"-"
	// attribute's descriptor carries a targetID; schema.Encode performs that
	// check when a descriptor is serialized.
	PutSchema(ctx context.Context, id, attr string, descriptor types.RawDescriptor) error

	// DelSchema removes a single attribute from id's schema entry.
	DelSchema(ctx context.Context, id, attr string) error

	// RegisterServices bulk-registers resources served remotely under
	// locationKey, without requiring each to be Put individually.
	RegisterServices(ctx context.Context, locationKey string, services map[string]Record) error

	// Roots returns the set of known root prefixes recorded for this
	// Store. Root tracking is append-only: deleting the last id under a
	// root does not remove it from this set.
	Roots(ctx context.Context) ([]string, error)

	// LayerName returns the layer name this Store would like to be
	// auto-registered under, or "" if it has none.
	LayerName() string

	// ReadOnly reports whether mutating calls on this Store always fail.
	ReadOnly() bool

	// Version returns the version stamped into this Store on creation.
	Version(ctx context.Context) (types.Version, error)

	// Close releases any held resources (file handles, connections).
	Close() error
}
