// Command regctl is the reference CLI for the federated resource
// registry: a thin shell around the Store layer for inspecting and
// seeding a PYGRDATAPATH-style path without writing Go code, structured
// the way cmd/bd is structured - one file per command group, a
// persistent flag set at the root.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/basepair/resourcereg/internal/config"
	"github.com/basepair/resourcereg/internal/observability"
	"github.com/basepair/resourcereg/internal/resolver"
	"github.com/basepair/resourcereg/internal/store"
)

var (
	pathFlag  string
	layerFlag string
	jsonOut   bool
	traceFlag bool

	reg *store.Registry
	obs *observability.Provider
)

var rootCmd = &cobra.Command{
	Use:   "regctl",
	Short: "regctl - inspect and seed a federated resource registry path",
	Long: `regctl operates directly on the Store layer of a PYGRDATAPATH-style
path: it has no compile-time knowledge of any application's resource
types, so get/put/ls/rm move opaque JSON payloads rather than reconstructed
Go object graphs (that reconstruction is what internal/resolver is for,
and lives in application code that registers its own types with it).

Caution: regctl's view of a store is a point-in-time snapshot. Concurrent
writers to the same store from another process are not coordinated with
and will be observed inconsistently.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("regctl: load config: %w", err)
		}
		if pathFlag != "" {
			cfg.Path = pathFlag
		}

		obs, err = observability.NewProvider(cmd.Context(), observability.Config{
			ServiceName: "regctl",
			Level:       cfg.LogLevel,
			Trace:       traceFlag,
		})
		if err != nil {
			return fmt.Errorf("regctl: init observability: %w", err)
		}

		reg = resolver.NewRegistry()
		cmd.SetContext(withPath(cmd.Context(), cfg.Path))
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
		if obs != nil {
			return obs.Shutdown(cmd.Context())
		}
		return nil
	},
}

type pathKey struct{}

func withPath(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, pathKey{}, path)
}

func pathFrom(ctx context.Context) string {
	p, _ := ctx.Value(pathKey{}).(string)
	return p
}

// openStore opens the single Store backing layerFlag (or, with no --layer
// set, the first writable entry of --path) for the duration of one
// command invocation.
func openStore(ctx context.Context) (store.Store, error) {
	entries, err := store.ParsePath(pathFrom(ctx), "")
	if err != nil {
		return nil, err
	}
	if layerFlag == "" {
		for _, e := range entries {
			s, err := reg.Open(ctx, e, store.Options{})
			if err != nil {
				continue
			}
			if !s.ReadOnly() {
				return s, nil
			}
			s.Close()
		}
		return nil, fmt.Errorf("regctl: no writable store found in %q; pass --layer or --path", pathFrom(ctx))
	}
	for _, e := range entries {
		if e.DefaultLayer != layerFlag {
			continue
		}
		return reg.Open(ctx, e, store.Options{})
	}
	return nil, fmt.Errorf("regctl: no entry for layer %q in %q", layerFlag, pathFrom(ctx))
}

// openStoreAllowReadOnly opens the entry named by --layer, or the first
// entry of --path if --layer is unset, with no requirement that it be
// writable. Used by serve, which only ever issues reads.
func openStoreAllowReadOnly(ctx context.Context) (store.Store, error) {
	entries, err := store.ParsePath(pathFrom(ctx), "")
	if err != nil {
		return nil, err
	}
	if layerFlag == "" {
		return reg.Open(ctx, entries[0], store.Options{})
	}
	for _, e := range entries {
		if e.DefaultLayer == layerFlag {
			return reg.Open(ctx, e, store.Options{})
		}
	}
	return nil, fmt.Errorf("regctl: no entry for layer %q in %q", layerFlag, pathFrom(ctx))
}

// openAllStores opens every entry in --path, in order, for commands that
// need to search the whole path (get, ls, schema export).
func openAllStores(ctx context.Context) ([]store.Store, error) {
	entries, err := store.ParsePath(pathFrom(ctx), "")
	if err != nil {
		return nil, err
	}
	var stores []store.Store
	for _, e := range entries {
		s, err := reg.Open(ctx, e, store.Options{})
		if err != nil {
			fmt.Fprintf(os.Stderr, "regctl: skipping %q: %v\n", e.Raw, err)
			continue
		}
		stores = append(stores, s)
	}
	if len(stores) == 0 {
		return nil, fmt.Errorf("regctl: no store in %q could be opened", pathFrom(ctx))
	}
	return stores, nil
}

func closeAll(stores []store.Store) {
	for _, s := range stores {
		s.Close()
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&pathFlag, "path", "", "PYGRDATAPATH-style store list (overrides PYGRDATAPATH and project config)")
	rootCmd.PersistentFlags().StringVar(&layerFlag, "layer", "", "restrict the operation to a single named layer")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "emit machine-readable JSON output")
	rootCmd.PersistentFlags().BoolVar(&traceFlag, "trace", false, "print OpenTelemetry spans to stderr as they complete")
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "regctl:", err)
		os.Exit(1)
	}
}
