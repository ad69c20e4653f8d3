package resolver

import (
	"context"
	"fmt"

	"github.com/basepair/resourcereg/internal/schema"
	"github.com/basepair/resourcereg/internal/types"
)

// DeclareRelation writes every binding in bindings through layer's Store (or
// the first writable store, if layer is "") and records each in the
// Resolver's in-memory schema graph, so a just-declared relation is
// immediately resolvable the same way Put makes a just-saved resource
// immediately visible without a reload.
func (r *Resolver) DeclareRelation(ctx context.Context, layer string, bindings []schema.Binding) error {
	backend, err := r.writableStore(layer)
	if err != nil {
		return err
	}
	for _, b := range bindings {
		raw, err := schema.Encode(b.Descriptor)
		if err != nil {
			return fmt.Errorf("resolver: declare relation %s.%s: %w", b.ID, b.Attr, err)
		}
		if err := backend.PutSchema(ctx, b.ID, b.Attr, types.RawDescriptor(raw)); err != nil {
			return fmt.Errorf("resolver: declare relation %s.%s: %w", b.ID, b.Attr, err)
		}
		if types.IsStructuralAttr(b.Attr) {
			continue
		}
		if err := r.graph.Bind(b.ID, b.Attr, b.Descriptor); err != nil {
			return fmt.Errorf("resolver: declare relation %s.%s: %w", b.ID, b.Attr, err)
		}
	}
	return nil
}

// DeclareInverse is schema.DeclareInverse followed by DeclareRelation: the
// common case of declaring a symmetric inverse relation between two
// already-resolvable IDs.
func (r *Resolver) DeclareInverse(ctx context.Context, layer, sourceID, targetID string) error {
	return r.DeclareRelation(ctx, layer, schema.DeclareInverse(sourceID, targetID))
}

// DeclareMany is schema.ManyRelation.Declare followed by DeclareRelation:
// the common case of declaring a OneToMany/ManyToMany relation, keyed at
// edgeNodeID.
func (r *Resolver) DeclareMany(ctx context.Context, layer, edgeNodeID string, rel schema.ManyRelation) error {
	return r.DeclareRelation(ctx, layer, rel.Declare(edgeNodeID))
}
