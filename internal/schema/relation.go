package schema

import "github.com/basepair/resourcereg/internal/types"

// Binding is a single (id, attr, Descriptor) schema-table row - the unit a
// relation's declaration writes through Store.PutSchema. A single declared
// relation can fan out into several of these across several IDs, since
// registering one relation installs a row on each side it touches rather
// than a single row in one place.
type Binding struct {
	ID         string
	Attr       string
	Descriptor Descriptor
}

// DeclareInverse derives the two bindings a symmetric inverse relation
// writes: sourceID and targetID each get an "inverseDB" attribute pointing
// back at the other, so resolving either side exposes the other under that
// name and a Resolver's Invert operation can walk from one to the other.
// The pair is a direct symmetric binding between the two resources
// themselves, with no intermediate edge record (see DESIGN.md).
func DeclareInverse(sourceID, targetID string) []Binding {
	return []Binding{
		{ID: sourceID, Attr: "inverseDB", Descriptor: Descriptor{
			Kind: KindInverse, TargetID: targetID, InverseOf: "inverseDB",
		}},
		{ID: targetID, Attr: "inverseDB", Descriptor: Descriptor{
			Kind: KindInverse, TargetID: sourceID, InverseOf: "inverseDB",
		}},
	}
}

// ManyRelation declares a graph-shaped OneToMany or ManyToMany relation:
// SourceID's members map to TargetID's, optionally through an EdgeID
// resource carrying per-pair data (e.g. an alignment's edge weights).
// BindAttrs names the Item attribute installed on the source, target, and
// edge resources respectively; "" skips that slot.
type ManyRelation struct {
	Kind      Kind
	SourceID  string
	TargetID  string
	EdgeID    string
	BindAttrs [3]string
}

// Declare derives every binding this relation's registration writes, keyed
// at edgeNodeID - the dotted path a caller builds for the attribute under
// which the relation itself is declared (e.g. "Bio.seq.Swissprot.aligned").
// edgeNodeID gets a structural record of the relation plus Direct pointers
// back to SourceID/TargetID/EdgeID; each non-empty BindAttrs slot installs
// an Item binding on the corresponding resource pointing at edgeNodeID, with
// Invert set on the target slot and GetEdges set on the edge slot so each
// side resolves the relation through the lookup appropriate to its role.
func (m ManyRelation) Declare(edgeNodeID string) []Binding {
	out := []Binding{
		{ID: edgeNodeID, Attr: types.SchemaEdgeAttr, Descriptor: Descriptor{
			Kind: m.Kind, TargetID: m.TargetID, InverseOf: "sourceDB", Many: true,
		}},
		{ID: edgeNodeID, Attr: "sourceDB", Descriptor: Descriptor{Kind: KindDirect, TargetID: m.SourceID}},
		{ID: edgeNodeID, Attr: "targetDB", Descriptor: Descriptor{Kind: KindDirect, TargetID: m.TargetID}},
	}
	if m.EdgeID != "" {
		out = append(out, Binding{ID: edgeNodeID, Attr: "edgeDB", Descriptor: Descriptor{Kind: KindDirect, TargetID: m.EdgeID}})
	}

	bindObj := [3]string{m.SourceID, m.TargetID, m.EdgeID}
	for i, attr := range m.BindAttrs {
		if attr == "" || bindObj[i] == "" {
			continue
		}
		out = append(out, Binding{
			ID:   bindObj[i],
			Attr: attr,
			Descriptor: Descriptor{
				Kind:     KindItem,
				TargetID: edgeNodeID,
				Invert:   i == 1,
				GetEdges: i == 2,
			},
		})
	}
	return out
}
