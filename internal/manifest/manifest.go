// Package manifest loads two optional static manifests as an alternative
// to parsing PYGRDATAPATH and schema bindings from scratch every run: a
// stores.toml pre-declaring named layers, and a schema.jsonc pre-seeding
// relation descriptors into a fresh SchemaGraph.
package manifest

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/basepair/resourcereg/internal/schema"
	"github.com/basepair/resourcereg/internal/store"
)

// LayerSpec is one named store declared in stores.toml.
type LayerSpec struct {
	// Name is the layer name later used as resolver.Options layer lookups
	// and regctl's --layer flag. It overrides whatever default layer name
	// store.ParsePath would have assigned the target's scheme.
	Name string `toml:"name"`

	// Target is the same scheme-prefixed path/DSN/URL accepted as a
	// PYGRDATAPATH component, e.g. "/srv/registry", "mysql:bio.seqdb",
	// "ws://registry.example.org/rpc".
	Target string `toml:"target"`
}

// StoresManifest is stores.toml's root shape.
type StoresManifest struct {
	Layer []LayerSpec `toml:"layer"`
}

// LoadStores parses path as a stores.toml manifest and returns one
// store.Entry per declared layer, each classified the same way a
// PYGRDATAPATH component would be but with DefaultLayer overridden by the
// manifest's explicit name.
func LoadStores(path string) ([]store.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", path, err)
	}

	var m StoresManifest
	if _, err := toml.Decode(string(data), &m); err != nil {
		return nil, fmt.Errorf("manifest: parse %s: %w", path, err)
	}

	entries := make([]store.Entry, 0, len(m.Layer))
	for _, l := range m.Layer {
		if l.Name == "" {
			return nil, fmt.Errorf("manifest: %s: layer with target %q is missing a name", path, l.Target)
		}
		parsed, err := store.ParsePath(l.Target, "\x00")
		if err != nil {
			return nil, fmt.Errorf("manifest: %s: layer %q: %w", path, l.Name, err)
		}
		if len(parsed) != 1 {
			return nil, fmt.Errorf("manifest: %s: layer %q: target %q must classify as exactly one store", path, l.Name, l.Target)
		}
		e := parsed[0]
		e.DefaultLayer = l.Name
		entries = append(entries, e)
	}
	return entries, nil
}

// LoadSchemaBootstrap parses path as a schema.jsonc bootstrap manifest and
// merges its bindings into g.
func LoadSchemaBootstrap(path string, g *schema.Graph) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("manifest: read %s: %w", path, err)
	}
	if err := g.ImportBootstrapJSONC(data); err != nil {
		return fmt.Errorf("manifest: %s: %w", path, err)
	}
	return nil
}
