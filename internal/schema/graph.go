package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Graph is a directed graph over resource IDs: each node is an ID, each
// edge an attribute name carrying a Descriptor. It is the in-memory
// counterpart of the per-ID schema entries a Store persists.
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]map[string]Descriptor // id -> attr -> descriptor
}

// NewGraph creates an empty SchemaGraph.
func NewGraph() *Graph {
	return &Graph{nodes: make(map[string]map[string]Descriptor)}
}

// Bind records that id.attr resolves via descriptor. A Direct/Item
// descriptor's TargetID becomes an edge; callers add the corresponding
// Inverse/OneToMany/ManyToMany descriptor on the target side separately
// when that relation is bidirectional.
func (g *Graph) Bind(id, attr string, descriptor Descriptor) error {
	if err := descriptor.Validate(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	attrs, ok := g.nodes[id]
	if !ok {
		attrs = make(map[string]Descriptor)
		g.nodes[id] = attrs
	}
	attrs[attr] = descriptor
	return nil
}

// Unbind removes id.attr's descriptor, if any.
func (g *Graph) Unbind(id, attr string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	attrs, ok := g.nodes[id]
	if !ok {
		return
	}
	delete(attrs, attr)
	if len(attrs) == 0 {
		delete(g.nodes, id)
	}
}

// Descriptor returns id.attr's binding, if any.
func (g *Graph) Descriptor(id, attr string) (Descriptor, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	attrs, ok := g.nodes[id]
	if !ok {
		return Descriptor{}, false
	}
	d, ok := attrs[attr]
	return d, ok
}

// Attrs returns the sorted attribute names bound on id.
func (g *Graph) Attrs(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	attrs, ok := g.nodes[id]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IDs returns every node ID currently bound in the graph, sorted.
func (g *Graph) IDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Edges returns every (id, attr, descriptor) triple reachable from id via
// a Direct or Item binding, i.e. the outgoing structural edges.
func (g *Graph) Edges(id string) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	attrs := g.nodes[id]
	var edges []Edge
	for attr, d := range attrs {
		if d.Kind == KindDirect || d.Kind == KindItem {
			edges = append(edges, Edge{From: id, Attr: attr, To: d.TargetID, Descriptor: d})
		}
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].Attr < edges[j].Attr })
	return edges
}

// ReverseEdges returns the sorted IDs of every node whose attr binding
// targets targetID, i.e. the "many" side of a OneToMany/ManyToMany
// relation declared as InverseOf attr on targetID.
func (g *Graph) ReverseEdges(attr, targetID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var ids []string
	for id, attrs := range g.nodes {
		if d, ok := attrs[attr]; ok && d.TargetID == targetID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Edge is one outgoing structural binding in the graph.
type Edge struct {
	From       string
	Attr       string
	To         string
	Descriptor Descriptor
}

// yamlEntry is the export/import wire shape for one node's bindings.
type yamlEntry struct {
	ID    string                `yaml:"id"`
	Attrs map[string]Descriptor `yaml:"attrs"`
}

// ExportYAML serializes the whole graph to YAML, sorted by ID for stable
// diffs.
func (g *Graph) ExportYAML() ([]byte, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	entries := make([]yamlEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, yamlEntry{ID: id, Attrs: g.nodes[id]})
	}
	return yaml.Marshal(entries)
}

// ImportYAML replaces the graph's contents with the bindings in data.
func (g *Graph) ImportYAML(data []byte) error {
	var entries []yamlEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("schema: parse yaml: %w", err)
	}

	nodes := make(map[string]map[string]Descriptor, len(entries))
	for _, e := range entries {
		attrs := make(map[string]Descriptor, len(e.Attrs))
		for attr, d := range e.Attrs {
			if err := d.Validate(); err != nil {
				return fmt.Errorf("schema: %s.%s: %w", e.ID, attr, err)
			}
			attrs[attr] = d
		}
		nodes[e.ID] = attrs
	}

	g.mu.Lock()
	g.nodes = nodes
	g.mu.Unlock()
	return nil
}

// bootstrapManifest is the jsonc-commented bootstrap schema format read by
// ImportBootstrapJSONC: a flat list of bindings rather than the grouped
// export/import YAML shape, intended to be hand-edited with comments.
type bootstrapManifest struct {
	Bindings []struct {
		ID   string     `json:"id"`
		Attr string     `json:"attr"`
		Kind Kind       `json:"kind"`
		Desc Descriptor `json:"descriptor"`
	} `json:"bindings"`
}

// ImportBootstrapJSONC merges the bindings declared in a commented-JSON
// bootstrap manifest (schema.jsonc) into the graph, preprocessing comments
// and trailing commas the same way simon-lentz/yammm's JSON adapter does
// before handing the result to encoding/json.
func (g *Graph) ImportBootstrapJSONC(data []byte) error {
	clean := jsonc.ToJSON(data)

	dec := json.NewDecoder(bytes.NewReader(clean))
	dec.DisallowUnknownFields()
	var manifest bootstrapManifest
	if err := dec.Decode(&manifest); err != nil {
		return fmt.Errorf("schema: parse bootstrap manifest: %w", err)
	}

	for _, b := range manifest.Bindings {
		d := b.Desc
		d.Kind = b.Kind
		if err := g.Bind(b.ID, b.Attr, d); err != nil {
			return fmt.Errorf("schema: bootstrap %s.%s: %w", b.ID, b.Attr, err)
		}
	}
	return nil
}
