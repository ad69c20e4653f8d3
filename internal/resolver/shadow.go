package resolver

import (
	"context"
	"fmt"
	"reflect"

	"github.com/basepair/resourcereg/internal/codec"
	"github.com/basepair/resourcereg/internal/schema"
	"github.com/basepair/resourcereg/internal/store"
	"github.com/basepair/resourcereg/internal/types"
)

// bindSchema reads id's schema entry from backend, if any, and records each
// non-structural attribute's descriptor in the Resolver's schema graph so
// later Attr calls can resolve it. Re-binding the same (id, attr) to an
// identical descriptor is a no-op; to a different one fails with
// types.ErrDuplicateBinding.
func (r *Resolver) bindSchema(ctx context.Context, id string, backend store.Store) error {
	entry, ok, err := backend.GetSchema(ctx, id)
	if err != nil {
		return fmt.Errorf("resolver: get schema for %s: %w", id, err)
	}
	if !ok {
		return nil
	}

	for attr, raw := range entry {
		if types.IsStructuralAttr(attr) {
			continue
		}
		d, err := schema.Decode(raw)
		if err != nil {
			r.log.Warn().Err(err).Str("id", id).Str("attr", attr).Msg("resolver: skipping malformed schema descriptor")
			continue
		}
		if existing, ok := r.graph.Descriptor(id, attr); ok && existing != d {
			return fmt.Errorf("%w: %s.%s", types.ErrDuplicateBinding, id, attr)
		}
		if err := r.graph.Bind(id, attr, d); err != nil {
			return fmt.Errorf("resolver: bind %s.%s: %w", id, attr, err)
		}
	}
	return nil
}

// Attr resolves resource's shadow attribute name, consulting the extension
// map first, then the schema graph. Names in resource's IgnoreShadowAttr
// set (types.ShadowIgnorer) are never bound and always report
// types.ErrSchemaMissing.
func (r *Resolver) Attr(ctx context.Context, resource any, name string) (any, error) {
	addr, ok := codec.AddrHint(resource)
	if !ok {
		return nil, fmt.Errorf("resolver: Attr requires a non-nil pointer resource")
	}

	if v, ok := r.extGet(addr, name); ok {
		return v, nil
	}

	if ignorer, ok := resource.(types.ShadowIgnorer); ok {
		if ignorer.IgnoreShadowAttr()[name] {
			return nil, types.ErrSchemaMissing
		}
	}

	res, ok := resource.(types.Resource)
	if !ok {
		return nil, fmt.Errorf("resolver: Attr requires a types.Resource")
	}
	id := res.PersistentID()
	if id == "" {
		return nil, types.ErrSchemaMissing
	}

	d, ok := r.graph.Descriptor(id, name)
	if !ok {
		return nil, types.ErrSchemaMissing
	}

	val, err := r.computeShadow(ctx, resource, id, d)
	if err != nil {
		return nil, err
	}

	r.extPut(addr, name, val)
	return val, nil
}

// Invert returns the other side of resource's declared inverse relation -
// the object its "inverseDB" shadow attribute resolves to. Declaring
// A.inverseDB=B and B.inverseDB=A (schema.DeclareInverse) makes
// r.Invert(ctx, a) return b and r.Invert(ctx, b) return a.
func (r *Resolver) Invert(ctx context.Context, resource any) (any, error) {
	return r.Attr(ctx, resource, "inverseDB")
}

func (r *Resolver) computeShadow(ctx context.Context, resource any, id string, d schema.Descriptor) (any, error) {
	switch d.Kind {
	case schema.KindDirect, schema.KindInverse:
		return r.Resolve(ctx, d.TargetID)

	case schema.KindItem:
		container, err := r.Resolve(ctx, d.TargetID)
		if err != nil {
			return nil, err
		}

		key := resource
		if d.MapAttr != "" {
			if key, err = projectField(resource, d.MapAttr); err != nil {
				return nil, err
			}
		}

		var item any
		var found bool
		switch {
		case d.GetEdges:
			ec, ok := container.(types.EdgeContainer)
			if !ok {
				return nil, fmt.Errorf("resolver: item descriptor target %s is not an EdgeContainer", d.TargetID)
			}
			item, found = ec.EdgeAt(key)

		case d.Invert:
			inv, ok := container.(types.Invertible)
			if !ok {
				return nil, fmt.Errorf("resolver: item descriptor target %s is not Invertible", d.TargetID)
			}
			item, found = inv.Invert().ItemAt(key)

		default:
			ic, ok := container.(types.ItemContainer)
			if !ok {
				return nil, fmt.Errorf("resolver: item descriptor target %s is not an ItemContainer", d.TargetID)
			}
			item, found = ic.ItemAt(key)
		}
		if !found {
			return nil, types.ErrSchemaMissing
		}

		if d.ItemRule != "" {
			if item, err = projectField(item, d.ItemRule); err != nil {
				return nil, err
			}
		}
		if d.TargetAttr != "" {
			if item, err = projectField(item, d.TargetAttr); err != nil {
				return nil, err
			}
		}
		return item, nil

	case schema.KindOneToMany, schema.KindManyToMany:
		ids := r.graph.ReverseEdges(d.InverseOf, id)
		out := make([]any, 0, len(ids))
		for _, rid := range ids {
			obj, err := r.Resolve(ctx, rid)
			if err != nil {
				r.log.Warn().Err(err).Str("id", rid).Msg("resolver: skipping unresolved member of many-relation")
				continue
			}
			out = append(out, obj)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("resolver: unknown descriptor kind %q", d.Kind)
	}
}

// projectField returns obj's field named path, dereferencing a leading
// pointer first. It implements a descriptor's ItemRule: a single-level
// attribute projection on a resolved item.
func projectField(obj any, path string) (any, error) {
	rv := reflect.ValueOf(obj)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, fmt.Errorf("resolver: item rule %q: nil pointer", path)
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("resolver: item rule %q: %s is not a struct", path, rv.Kind())
	}
	fv := rv.FieldByName(path)
	if !fv.IsValid() {
		return nil, fmt.Errorf("resolver: item rule %q not found on %s", path, rv.Type())
	}
	return fv.Interface(), nil
}

func (r *Resolver) extGet(addr uintptr, name string) (any, bool) {
	r.extMu.Lock()
	defer r.extMu.Unlock()
	m, ok := r.ext[addr]
	if !ok {
		return nil, false
	}
	v, ok := m[name]
	return v, ok
}

func (r *Resolver) extPut(addr uintptr, name string, v any) {
	r.extMu.Lock()
	defer r.extMu.Unlock()
	m, ok := r.ext[addr]
	if !ok {
		m = make(map[string]any)
		r.ext[addr] = m
	}
	m[name] = v
}
