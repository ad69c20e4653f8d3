// Package resolver implements the Resolver: the orchestrator that turns a
// PYGRDATAPATH-style ordered list of Stores into a single lookup surface,
// caching resolved objects, binding schema-declared shadow attributes, and
// reconstructing object graphs through the Codec.
package resolver

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/basepair/resourcereg/internal/codec"
	"github.com/basepair/resourcereg/internal/observability"
	"github.com/basepair/resourcereg/internal/schema"
	"github.com/basepair/resourcereg/internal/store"
)

// namedStore is one entry in the Resolver's ordered path.
type namedStore struct {
	layer   string
	backend store.Store
}

// Options configures a new Resolver.
type Options struct {
	// PathSource is the PYGRDATAPATH-style path string.
	PathSource string

	// Separator splits PathSource into entries; defaults to ",".
	Separator string

	// Registry supplies the BackendFactory for each path entry's scheme.
	Registry *store.Registry

	// Types is the codec.Registry of concrete resource types the Codec may
	// allocate while loading.
	Types *codec.Registry

	// Log receives path-discovery and schema-binding diagnostics. Defaults
	// to a disabled logger.
	Log zerolog.Logger

	// Tracer opens spans around Resolve/Put/Delete. Defaults to the no-op
	// tracer.
	Tracer trace.Tracer

	// Metrics records cache-hit/miss counters. Optional. Its StoreLatency
	// histogram is not recorded by the Resolver.
	Metrics *observability.Metrics
}

// Resolver is the process-wide orchestrator that opens every store layer on
// a path, resolves resources by ID through them in order, and binds schema
// attributes across whatever it resolves. It is safe for concurrent use.
type Resolver struct {
	path    []namedStore
	byLayer map[string]store.Store
	types   *codec.Registry
	log     zerolog.Logger
	tracer  trace.Tracer
	metrics *observability.Metrics

	cacheMu sync.RWMutex
	cache   map[string]any

	group singleflight.Group

	graph *schema.Graph

	extMu sync.Mutex
	ext   map[uintptr]map[string]any

	hintsMu sync.Mutex
	hints   map[uintptr]string
}

// New parses opts.PathSource, opens every entry's Store concurrently via
// opts.Registry (errors are logged and the entry dropped during this
// initial discovery), and returns a ready Resolver. Returns an error if
// opts.Registry is nil, if opts.PathSource cannot be parsed, or if no Store
// could be opened at all.
func New(ctx context.Context, opts Options) (*Resolver, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("resolver: Options.Registry is required")
	}
	if opts.Types == nil {
		opts.Types = codec.NewRegistry()
	}
	if opts.Tracer == nil {
		opts.Tracer = noop.NewTracerProvider().Tracer("resolver")
	}
	if reflect.DeepEqual(opts.Log, zerolog.Logger{}) {
		opts.Log = zerolog.Nop()
	}

	entries, err := store.ParsePath(opts.PathSource, opts.Separator)
	if err != nil {
		return nil, err
	}

	opened := make([]*namedStore, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	for i, e := range entries {
		i, e := i, e
		g.Go(func() error {
			backend, err := opts.Registry.Open(gctx, e, store.Options{})
			if err != nil {
				opts.Log.Warn().Err(err).Str("entry", e.Raw).Msg("resolver: dropping store that failed to open")
				return nil
			}
			opened[i] = &namedStore{layer: e.DefaultLayer, backend: backend}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r := &Resolver{
		byLayer: make(map[string]store.Store),
		types:   opts.Types,
		log:     opts.Log,
		tracer:  opts.Tracer,
		metrics: opts.Metrics,
		cache:   make(map[string]any),
		graph:   schema.NewGraph(),
		ext:     make(map[uintptr]map[string]any),
	}
	for _, ns := range opened {
		if ns == nil {
			continue
		}
		r.path = append(r.path, *ns)
		if ns.layer != "" {
			if _, taken := r.byLayer[ns.layer]; !taken {
				r.byLayer[ns.layer] = ns.backend
			} else {
				r.log.Warn().Str("layer", ns.layer).Msg("resolver: duplicate layer name ignored")
			}
		}
	}
	if len(r.path) == 0 {
		return nil, fmt.Errorf("resolver: no stores could be opened from path %q", opts.PathSource)
	}
	return r, nil
}

// Close closes every Store in the path, returning the first error hit.
func (r *Resolver) Close() error {
	var first error
	for _, ns := range r.path {
		if err := ns.backend.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Layers returns the names of every auto-registered layer, in path order.
func (r *Resolver) Layers() []string {
	names := make([]string, 0, len(r.path))
	for _, ns := range r.path {
		if ns.layer != "" {
			names = append(names, ns.layer)
		}
	}
	return names
}

func (r *Resolver) storesFor(layer string) ([]namedStore, error) {
	if layer == "" {
		return r.path, nil
	}
	backend, ok := r.byLayer[layer]
	if !ok {
		return nil, fmt.Errorf("resolver: no store registered for layer %q", layer)
	}
	return []namedStore{{layer: layer, backend: backend}}, nil
}

// writableStore returns the first writable Store in the path, the one new
// Puts land in when no layer is specified.
func (r *Resolver) writableStore(layer string) (store.Store, error) {
	if layer != "" {
		backend, ok := r.byLayer[layer]
		if !ok {
			return nil, fmt.Errorf("resolver: no store registered for layer %q", layer)
		}
		if backend.ReadOnly() {
			return nil, fmt.Errorf("resolver: layer %q is read-only", layer)
		}
		return backend, nil
	}
	for _, ns := range r.path {
		if !ns.backend.ReadOnly() {
			return ns.backend, nil
		}
	}
	return nil, fmt.Errorf("resolver: no writable store in path; give a user-editable store as the first PYGRDATAPATH entry")
}
