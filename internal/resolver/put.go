package resolver

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/basepair/resourcereg/internal/codec"
	"github.com/basepair/resourcereg/internal/schema"
	"github.com/basepair/resourcereg/internal/store"
	"github.com/basepair/resourcereg/internal/types"
)

// Put serializes obj and writes it under id to the first writable store in
// the path (PutIn names a layer instead). obj must implement types.Resource
// and carry a non-empty docstring.
func (r *Resolver) Put(ctx context.Context, id string, obj any) error {
	return r.putIn(ctx, "", id, obj)
}

// PutIn is Put restricted to writing into a single named layer.
func (r *Resolver) PutIn(ctx context.Context, layer, id string, obj any) error {
	return r.putIn(ctx, layer, id, obj)
}

func (r *Resolver) putIn(ctx context.Context, layer, id string, obj any) error {
	ctx, span := r.tracer.Start(ctx, "resolver.put", traceAttrPut(id, layer))
	defer span.End()

	res, ok := obj.(types.Resource)
	if !ok {
		return fmt.Errorf("resolver: Put requires a types.Resource")
	}
	if res.Doc() == "" {
		return types.ErrMissingDocstring
	}

	backend, err := r.writableStore(layer)
	if err != nil {
		return err
	}

	payload, err := codec.Dump(obj, r.currentHints())
	if err != nil {
		return fmt.Errorf("resolver: dump %s: %w", id, err)
	}

	meta := types.Meta{
		Doc:         res.Doc(),
		CreatedAt:   time.Now(),
		PayloadSize: len(payload),
	}
	if err := backend.Put(ctx, id, payload, meta); err != nil {
		return fmt.Errorf("resolver: put %s: %w", id, err)
	}

	res.SetPersistentID(id)
	r.cachePut(id, obj)
	return nil
}

// PutAll batch-saves objs: every object's address is pre-registered in the
// hint map so that intra-batch cross-references serialize as persistent-ID
// tokens rather than embedded copies, then each entry is saved in turn.
// Hints are cleared on completion, even on error.
func (r *Resolver) PutAll(ctx context.Context, layer string, objs map[string]any) error {
	hints := make(map[uintptr]string, len(objs))
	for id, obj := range objs {
		if addr, ok := codec.AddrHint(obj); ok {
			hints[addr] = id
		}
	}

	r.hintsMu.Lock()
	r.hints = hints
	r.hintsMu.Unlock()
	defer func() {
		r.hintsMu.Lock()
		r.hints = nil
		r.hintsMu.Unlock()
	}()

	for id, obj := range objs {
		if err := r.putIn(ctx, layer, id, obj); err != nil {
			return fmt.Errorf("resolver: PutAll at %s: %w", id, err)
		}
	}
	return nil
}

func (r *Resolver) currentHints() map[uintptr]string {
	r.hintsMu.Lock()
	defer r.hintsMu.Unlock()
	return r.hints
}

// Delete removes id from layer (or, if layer is "", from the first writable
// store). ok is false if id was already absent.
func (r *Resolver) Delete(ctx context.Context, layer, id string) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "resolver.delete", traceAttrPut(id, layer))
	defer span.End()

	backend, err := r.writableStore(layer)
	if err != nil {
		return false, err
	}
	ok, err := backend.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("resolver: delete %s: %w", id, err)
	}

	if err := r.cascadeDeleteSchema(ctx, backend, id); err != nil {
		r.log.Warn().Err(err).Str("id", id).Msg("resolver: schema cascade failed")
	}

	r.cacheDelete(id)
	return ok, nil
}

// cascadeDeleteSchema removes id's own schema entries - the node plus its
// incident (outgoing) edges - and, for each Inverse descriptor found, undoes
// only the reverse pointer it installed on the other side. It is a
// deliberately partial cascade: it does not walk every descriptor a wider
// relation could have touched, only the side each descriptor owns.
func (r *Resolver) cascadeDeleteSchema(ctx context.Context, backend store.Store, id string) error {
	descs := make(map[string]schema.Descriptor)
	for _, attr := range r.graph.Attrs(id) {
		if d, ok := r.graph.Descriptor(id, attr); ok {
			descs[attr] = d
		}
	}
	var firstErr error
	entry, _, err := backend.GetSchema(ctx, id)
	if err != nil {
		firstErr = fmt.Errorf("resolver: getschema %s: %w", id, err)
	}
	for attr, raw := range entry {
		if _, ok := descs[attr]; !ok {
			d, _ := schema.Decode(raw)
			descs[attr] = d
		}
	}
	for attr, d := range descs {
		if err := backend.DelSchema(ctx, id, attr); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("resolver: delschema %s.%s: %w", id, attr, err)
		}
		if d.Kind == schema.KindInverse {
			if err := backend.DelSchema(ctx, d.TargetID, d.InverseOf); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("resolver: delschema %s.%s: %w", d.TargetID, d.InverseOf, err)
			}
			r.graph.Unbind(d.TargetID, d.InverseOf)
		}
	}
	for attr := range descs {
		r.graph.Unbind(id, attr)
	}
	return firstErr
}

func traceAttrPut(id, layer string) trace.SpanStartOption {
	return trace.WithAttributes(
		attribute.String("resource_id", id),
		attribute.String("layer", layer),
	)
}
