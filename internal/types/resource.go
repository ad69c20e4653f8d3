package types

import "time"

// Resource is the contract an object must satisfy to be stored in and
// reconstructed by the registry. It is intentionally minimal: the registry
// never interprets a resource's payload, only its identity and docstring.
type Resource interface {
	// Doc returns the resource's docstring. Put refuses to write a resource
	// whose Doc is empty (ErrMissingDocstring).
	Doc() string

	// PersistentID returns the dotted ID last assigned to this object by the
	// registry, or "" if it has never been saved or loaded.
	PersistentID() string

	// SetPersistentID is called by the Resolver when Put saves the object and
	// when Resolve loads it from a Store, binding the object to the ID it was
	// stored/loaded under. A Resolve served from the cache does not call it.
	SetPersistentID(id string)
}

// ShadowIgnorer is implemented by resources that want to opt specific
// attribute names out of shadow-attribute binding even though a Store
// declares a schema entry for them.
type ShadowIgnorer interface {
	IgnoreShadowAttr() map[string]bool
}

// ItemContainer is implemented by container resources (e.g. an aligned set
// of sequences) whose items carry their own shadow attributes, bound via
// Item relation descriptors rather than Direct ones. ItemAt must return a
// stable identity (a pointer, or any comparable value) usable as a shadow
// binding target so the Resolver can cache the shadow value on first access.
type ItemContainer interface {
	ItemAt(key any) (any, bool)
}

// Invertible is implemented by an ItemContainer whose item mapping has a
// natural reverse side (e.g. a sequence-to-alignment map and its
// alignment-to-sequence counterpart). A Item descriptor with Invert set
// looks the key up through Invert()'s container instead of the container
// itself.
type Invertible interface {
	Invert() ItemContainer
}

// EdgeContainer is implemented by a container resource that additionally
// exposes a per-item edge facet (e.g. the edgeDB row backing one pair of a
// many-to-many relation). A Item descriptor with GetEdges set addresses
// this facet instead of ItemAt.
type EdgeContainer interface {
	EdgeAt(key any) (any, bool)
}

// Meta is the per-(ID, locationKey) metadata a Store records alongside a
// resource's opaque payload.
type Meta struct {
	Doc          string
	CreatedBy    string
	CreatedAt    time.Time
	PayloadSize  int
	LocationKey  string
}

// Version is the (major, minor, patch) triple stamped into every store on
// creation.
type Version [3]int

// CurrentVersion is the version stamped into newly created stores.
var CurrentVersion = Version{0, 1, 0}

// SchemaEntry is the decoded form of a SCHEMA.<id> record: attribute name to
// relation descriptor payload, stored as opaque JSON bytes (the descriptor
// shape is owned by package schema; types only knows it is a byte blob plus
// the structural attribute-name rule below).
type SchemaEntry map[string]RawDescriptor

// RawDescriptor is a relation descriptor in its wire form: opaque JSON bytes
// that package schema knows how to decode into a concrete descriptor kind.
// IsStructuralAttr reports whether the attribute name (not carried here) begins
// with "-", i.e. names a graph-structural entry rather than a client-visible
// shadow attribute.
type RawDescriptor []byte

// IsStructuralAttr reports whether attr names a graph-structural schema
// entry (reserved, begins with "-") rather than a client-visible shadow
// attribute.
func IsStructuralAttr(attr string) bool {
	return len(attr) > 0 && attr[0] == '-'
}

// Reserved ID prefixes and keys that are opaque to Stores except for this
// recognition rule.
const (
	SchemaPrefix    = "SCHEMA."
	VersionKey      = "0version"
	RootSetKey      = "0root"
	LayerNameKey    = "PYGRLAYERNAME"
	RefTokenPrefix  = "PYGR_ID:"
	SchemaEdgeAttr  = "-schemaEdge"
)
