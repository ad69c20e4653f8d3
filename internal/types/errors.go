// Package types defines the core data model shared across the registry:
// the Resource contract external objects must satisfy, resource metadata,
// and the sentinel error kinds every component reports through.
package types

import "errors"

// Sentinel error kinds. Components wrap these with context via fmt.Errorf's
// %w verb; callers distinguish kinds with errors.Is.
var (
	// ErrMissingResource means an ID was not found in any consulted store.
	ErrMissingResource = errors.New("resourcereg: not found in path")

	// ErrMissingDependency means the codec hit a reference whose target
	// could not be resolved. The Resolver then tries the next Store in the
	// path; a Store's Get returns a single record, so its other
	// locationKeys are not tried.
	ErrMissingDependency = errors.New("resourcereg: missing dependency")

	// ErrStoreIO means a connection- or file-level failure occurred talking
	// to a store. During initial path discovery this is logged and the
	// store is dropped; otherwise it propagates to the caller.
	ErrStoreIO = errors.New("resourcereg: store I/O error")

	// ErrImmutableStore means a mutating call was made against a read-only
	// store (always true of the Remote RPC Store).
	ErrImmutableStore = errors.New("resourcereg: immutable store; give a user-editable store as the first entry in the path")

	// ErrMissingDocstring means Put was attempted on an object with no
	// docstring.
	ErrMissingDocstring = errors.New("resourcereg: object must describe the resource (empty docstring)")

	// ErrSchemaMissing means a schema lookup or shadow-attribute access
	// found no corresponding relation.
	ErrSchemaMissing = errors.New("resourcereg: no schema relation for attribute")

	// ErrDuplicateBinding means a shadow attribute name was rebound to a
	// different descriptor than the one already bound.
	ErrDuplicateBinding = errors.New("resourcereg: attribute already bound to a different relation")
)
