package resolver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/basepair/resourcereg/internal/codec"
	"github.com/basepair/resourcereg/internal/store"
	"github.com/basepair/resourcereg/internal/types"
)

// Resolve looks up id across the whole path, in order. Resolved objects are
// cached for the lifetime of the Resolver.
func (r *Resolver) Resolve(ctx context.Context, id string) (any, error) {
	return r.resolveLayer(ctx, "", id)
}

// ResolveIn is Resolve restricted to a single named layer.
func (r *Resolver) ResolveIn(ctx context.Context, layer, id string) (any, error) {
	return r.resolveLayer(ctx, layer, id)
}

func (r *Resolver) resolveLayer(ctx context.Context, layer, id string) (any, error) {
	if obj, ok := r.cacheGet(id); ok {
		r.recordCacheHit(ctx)
		return obj, nil
	}

	ctx, span := r.tracer.Start(ctx, "resolver.resolve", traceAttrPut(id, layer))
	defer span.End()

	v, err, _ := r.group.Do(layer+"\x00"+id, func() (any, error) {
		if obj, ok := r.cacheGet(id); ok {
			return obj, nil
		}
		return r.doResolve(ctx, layer, id)
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (r *Resolver) doResolve(ctx context.Context, layer, id string) (any, error) {
	stores, err := r.storesFor(layer)
	if err != nil {
		return nil, err
	}

	r.recordCacheMiss(ctx)

	var lastErr error
	for _, ns := range stores {
		rec, ok, err := ns.backend.Get(ctx, id)
		if err != nil {
			r.log.Warn().Err(err).Str("store", ns.layer).Str("id", id).Msg("resolver: store Get failed, trying next")
			lastErr = err
			continue
		}
		if !ok {
			continue
		}

		obj, err := r.decode(ctx, id, rec, ns.backend)
		if err != nil {
			r.log.Warn().Err(err).Str("store", ns.layer).Str("id", id).Msg("resolver: reference resolution failed, trying next store")
			lastErr = err
			continue
		}
		return obj, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %s: last error: %v", types.ErrMissingResource, id, lastErr)
	}
	return nil, fmt.Errorf("%w: %s", types.ErrMissingResource, id)
}

// rootTypeName peeks at a dump's root node just far enough to learn the
// registered type name, without fully decoding the payload.
func rootTypeName(payload []byte) (string, error) {
	var peek struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &peek); err != nil {
		return "", fmt.Errorf("resolver: peek root type: %w", err)
	}
	if peek.Type == "" {
		return "", fmt.Errorf("resolver: payload missing registered root type")
	}
	return peek.Type, nil
}

// decode allocates the object for id's registered type, registers it in the
// cache before populating it (closing any reference cycle back to id), then
// decodes the payload into it and applies the schema bindings every Store in
// the path holds for id, in path order.
func (r *Resolver) decode(ctx context.Context, id string, rec store.Record, backend store.Store) (any, error) {
	typeName, err := rootTypeName(rec.Payload)
	if err != nil {
		return nil, err
	}
	t, err := r.types.Lookup(typeName)
	if err != nil {
		return nil, err
	}

	destVal := newPointer(t)
	dest := destVal.Interface()

	// Pre-register under id before decoding so a reference cycle back to
	// this same id resolves to this exact pointer.
	r.cachePut(id, dest)

	resolveRef := func(refID string) (any, error) {
		return r.Resolve(ctx, refID)
	}
	if err := codec.LoadInto(rec.Payload, dest, resolveRef, r.types); err != nil {
		r.cacheDelete(id)
		return nil, err
	}

	if res, ok := dest.(types.Resource); ok {
		res.SetPersistentID(id)
	}

	for _, ns := range r.path {
		if err := r.bindSchema(ctx, id, ns.backend); err != nil {
			r.log.Warn().Err(err).Str("store", ns.layer).Str("id", id).Msg("resolver: schema binding failed")
		}
	}

	return dest, nil
}

func (r *Resolver) cacheGet(id string) (any, bool) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	v, ok := r.cache[id]
	return v, ok
}

func (r *Resolver) cachePut(id string, v any) {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	r.cache[id] = v
}

func (r *Resolver) cacheDelete(id string) {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	delete(r.cache, id)
}

func (r *Resolver) recordCacheHit(ctx context.Context) {
	if r.metrics != nil {
		r.metrics.CacheHits.Add(ctx, 1)
	}
}

func (r *Resolver) recordCacheMiss(ctx context.Context) {
	if r.metrics != nil {
		r.metrics.CacheMisses.Add(ctx, 1)
	}
}
