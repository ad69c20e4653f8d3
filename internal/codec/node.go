package codec

import "encoding/json"

// node is the self-delimiting wire representation of one value in the
// object graph. Exactly one of its payload fields is populated, selected by
// Kind.
type node struct {
	Kind string `json:"k"`

	// Kind == "ref"
	ID string `json:"id,omitempty"`

	// Kind == "struct", "ptr" or "iface": the Go type name
	// (reflect.Type.String). It is looked up in the Registry only at the
	// root node and inside "iface" wrappers; nested concrete-typed fields
	// are decoded using the static Go field type instead.
	Type string `json:"type,omitempty"`

	// Kind == "struct"
	Fields map[string]*node `json:"fields,omitempty"`

	// Kind == "ptr" or "iface"
	Elem *node `json:"elem,omitempty"`

	// Kind == "slice"
	Elems []*node `json:"elems,omitempty"`

	// Kind == "map"
	Entries []mapEntry `json:"entries,omitempty"`

	// Kind == "scalar"
	Scalar json.RawMessage `json:"scalar,omitempty"`
}

type mapEntry struct {
	K *node `json:"k"`
	V *node `json:"v"`
}

const (
	kindNil    = "nil"
	kindRef    = "ref"
	kindScalar = "scalar"
	kindStruct = "struct"
	kindPtr    = "ptr"
	kindIface  = "iface"
	kindSlice  = "slice"
	kindMap    = "map"
)
