// Package schema implements the SchemaGraph: a directed graph of resource
// IDs whose edges are typed RelationDescriptor variants, plus the logic to
// serialize a descriptor to and from the opaque bytes a Store keeps in its
// schema table.
package schema

import (
	"encoding/json"
	"fmt"
)

// Kind discriminates the five RelationDescriptor variants. The set is
// closed, mirroring beads' closed dependency-type vocabulary
// (blocks/tracks/parent-child/...): a shadow attribute or structural edge
// is always exactly one of these.
type Kind string

const (
	KindDirect     Kind = "Direct"
	KindItem       Kind = "Item"
	KindInverse    Kind = "Inverse"
	KindOneToMany  Kind = "OneToMany"
	KindManyToMany Kind = "ManyToMany"
)

// Descriptor is a single schema-table entry: a relation from the owning
// resource's attribute name to one or more target resource IDs, tagged by
// Kind so the resolver knows how to bind it.
type Descriptor struct {
	Kind Kind `json:"kind"`

	// TargetID is the resource ID this attribute resolves to. Validate
	// requires it for every Kind; OneToMany/ManyToMany shadow attributes do
	// not read it, finding their members lazily through InverseOf.
	TargetID string `json:"targetID,omitempty"`

	// ItemRule names the sub-attribute path used to project a container's
	// items when Kind == Item (e.g. "row" for a tabular alignment).
	ItemRule string `json:"itemRule,omitempty"`

	// InverseOf names the attribute on TargetID whose Direct/Item binding
	// this descriptor inverts. Required for Inverse, OneToMany, and
	// ManyToMany.
	InverseOf string `json:"inverseOf,omitempty"`

	// Many is a cardinality annotation carried by OneToMany/ManyToMany
	// descriptors. Resolver.Attr does not read it: those relations always
	// yield a slice of members.
	Many bool `json:"many,omitempty"`

	// Invert, when Kind == Item, addresses TargetID's reverse mapping
	// (types.Invertible) instead of its forward one - the target-side
	// binding a ManyToMany/OneToMany relation's bindAttrs installs.
	Invert bool `json:"invert,omitempty"`

	// GetEdges, when Kind == Item, addresses TargetID's edge facet
	// (types.EdgeContainer) instead of its item facet - the edge-side
	// binding a ManyToMany/OneToMany relation's bindAttrs installs.
	// Mutually exclusive with Invert.
	GetEdges bool `json:"getEdges,omitempty"`

	// MapAttr, when Kind == Item, names a field on the accessing resource
	// to use as the container lookup key instead of the resource itself.
	MapAttr string `json:"mapAttr,omitempty"`

	// TargetAttr, when Kind == Item, projects a single field off the item
	// the container lookup returns, applied after ItemRule.
	TargetAttr string `json:"targetAttr,omitempty"`
}

// Validate checks that a Descriptor carries the fields its Kind requires.
func (d Descriptor) Validate() error {
	switch d.Kind {
	case KindDirect:
		if d.TargetID == "" {
			return fmt.Errorf("schema: %s descriptor requires targetID", d.Kind)
		}
	case KindItem:
		if d.TargetID == "" {
			return fmt.Errorf("schema: %s descriptor requires targetID", d.Kind)
		}
		if d.Invert && d.GetEdges {
			return fmt.Errorf("schema: %s descriptor cannot set both invert and getEdges", d.Kind)
		}
	case KindInverse, KindOneToMany, KindManyToMany:
		if d.TargetID == "" || d.InverseOf == "" {
			return fmt.Errorf("schema: %s descriptor requires targetID and inverseOf", d.Kind)
		}
	default:
		return fmt.Errorf("schema: unknown descriptor kind %q", d.Kind)
	}
	return nil
}

// Encode serializes d to the opaque bytes a Store keeps in its schema
// table (types.RawDescriptor's underlying representation).
func Encode(d Descriptor) ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(d)
}

// Decode parses a schema-table entry back into a Descriptor.
func Decode(raw []byte) (Descriptor, error) {
	var d Descriptor
	if err := json.Unmarshal(raw, &d); err != nil {
		return Descriptor{}, fmt.Errorf("schema: decode descriptor: %w", err)
	}
	if err := d.Validate(); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}
