package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/basepair/resourcereg/internal/manifest"
	"github.com/basepair/resourcereg/internal/schema"
	"github.com/basepair/resourcereg/internal/types"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Inspect and seed the relation graph declared across a path",
	Long: `Every resource's schema entry (attribute name -> relation descriptor) is
assembled in memory into a *schema.Graph exactly the way internal/resolver
does it internally, so these subcommands see the same graph a live
Resolver would build from the same path.`,
}

var schemaExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export the whole path's relation graph as YAML",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stores, err := openAllStores(cmd.Context())
		if err != nil {
			return err
		}
		defer closeAll(stores)

		g := schema.NewGraph()
		for _, s := range stores {
			ids, _, err := s.ListPrefix(cmd.Context(), "", false)
			if err != nil {
				return fmt.Errorf("regctl: schema export: list %v: %w", s.LayerName(), err)
			}
			for _, id := range ids {
				entry, ok, err := s.GetSchema(cmd.Context(), id)
				if err != nil || !ok {
					continue
				}
				for attr, raw := range entry {
					d, err := schema.Decode(raw)
					if err != nil {
						fmt.Fprintf(os.Stderr, "regctl: schema export: skipping %s.%s: %v\n", id, attr, err)
						continue
					}
					if err := g.Bind(id, attr, d); err != nil {
						fmt.Fprintf(os.Stderr, "regctl: schema export: skipping %s.%s: %v\n", id, attr, err)
					}
				}
			}
		}

		out, err := g.ExportYAML()
		if err != nil {
			return fmt.Errorf("regctl: schema export: %w", err)
		}
		if len(args) == 1 {
			return os.WriteFile(args[0], out, 0o644)
		}
		_, err = os.Stdout.Write(out)
		return err
	},
}

var schemaImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a YAML relation graph, writing every binding to the writable store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("regctl: schema import: %w", err)
		}
		g := schema.NewGraph()
		if err := g.ImportYAML(data); err != nil {
			return fmt.Errorf("regctl: schema import: %w", err)
		}
		return writeGraph(cmd, g)
	},
}

var schemaRelateInverseCmd = &cobra.Command{
	Use:   "relate-inverse <sourceID> <targetID>",
	Short: "Declare a symmetric inverse relation between two resources",
	Long: `Writes the dual inverseDB binding schema.DeclareInverse derives: sourceID and
targetID each get an "inverseDB" attribute pointing back at the other, so
resolving either side exposes the other and Resolver.Invert walks between
them.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeBindings(cmd, schema.DeclareInverse(args[0], args[1]))
	},
}

var schemaBootstrapCmd = &cobra.Command{
	Use:   "bootstrap <file.jsonc>",
	Short: "Seed a fresh store's relation graph from a commented schema.jsonc manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g := schema.NewGraph()
		if err := manifest.LoadSchemaBootstrap(args[0], g); err != nil {
			return err
		}
		return writeGraph(cmd, g)
	},
}

// writeGraph persists every binding in g to the path's writable store via
// Store.PutSchema, one attribute at a time.
func writeGraph(cmd *cobra.Command, g *schema.Graph) error {
	backend, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer backend.Close()

	for _, id := range g.IDs() {
		for _, attr := range g.Attrs(id) {
			d, _ := g.Descriptor(id, attr)
			raw, err := schema.Encode(d)
			if err != nil {
				return fmt.Errorf("regctl: schema: encode %s.%s: %w", id, attr, err)
			}
			if err := backend.PutSchema(cmd.Context(), id, attr, types.RawDescriptor(raw)); err != nil {
				return fmt.Errorf("regctl: schema: put %s.%s: %w", id, attr, err)
			}
		}
	}
	return nil
}

// writeBindings persists every binding to the path's writable store via
// Store.PutSchema, the same flat per-attribute write writeGraph does, but
// taking the already-derived []schema.Binding a relation's declaration
// produces instead of a whole *schema.Graph.
func writeBindings(cmd *cobra.Command, bindings []schema.Binding) error {
	backend, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer backend.Close()

	for _, b := range bindings {
		raw, err := schema.Encode(b.Descriptor)
		if err != nil {
			return fmt.Errorf("regctl: schema: encode %s.%s: %w", b.ID, b.Attr, err)
		}
		if err := backend.PutSchema(cmd.Context(), b.ID, b.Attr, types.RawDescriptor(raw)); err != nil {
			return fmt.Errorf("regctl: schema: put %s.%s: %w", b.ID, b.Attr, err)
		}
	}
	return nil
}

func init() {
	schemaCmd.AddCommand(schemaExportCmd)
	schemaCmd.AddCommand(schemaImportCmd)
	schemaCmd.AddCommand(schemaBootstrapCmd)
	schemaCmd.AddCommand(schemaRelateInverseCmd)
	rootCmd.AddCommand(schemaCmd)
}
