package codec

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/basepair/resourcereg/internal/types"
)

// RefToken is the "PYGR_ID:" prefix of the textual PYGR_ID:<id> form of a
// resource reference. The Codec's own wire format never embeds this string:
// Dump writes a reference as a structured {"k":"ref","id":...} node holding
// the bare ID, and Load reads it back from that node. Nothing else in this
// module reads RefToken.
const RefToken = types.RefTokenPrefix

// ResolveFunc is called by Load whenever it encounters a reference token; it
// must return the object previously stored (or already cached) under id.
type ResolveFunc func(id string) (any, error)

// Dump serializes root and its transitive references. Embedded values that
// carry a persistent ID - either pre-assigned via hints (address -> id, used
// during batch save so intra-batch cross-references collapse to references)
// or already set on the value itself via PersistentID - are replaced by a
// reference node instead of their contents. The root is always emitted in
// full, even if it has a persistent ID, since serialization is the act of
// assigning one.
func Dump(root any, hints map[uintptr]string) ([]byte, error) {
	rv := reflect.ValueOf(root)
	n, err := encodeValue(rv, true, hints)
	if err != nil {
		return nil, err
	}
	return json.Marshal(n)
}

// Load deserializes data, splicing in the result of resolve(id) wherever a
// reference node is found. reg must have the root's concrete type (and any
// concrete type that appears behind an interface field) registered.
func Load(data []byte, resolve ResolveFunc, reg *Registry) (any, error) {
	var n node
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("codec: decode envelope: %w", err)
	}
	if n.Kind != kindStruct && n.Kind != kindPtr {
		return nil, fmt.Errorf("codec: root node has unsupported kind %q", n.Kind)
	}
	if n.Type == "" {
		return nil, fmt.Errorf("codec: root node missing registered type name")
	}
	t, err := reg.Lookup(n.Type)
	if err != nil {
		return nil, err
	}
	rv, err := decodeValue(&n, t, resolve, reg)
	if err != nil {
		return nil, err
	}
	return rv.Interface(), nil
}

// LoadInto decodes data the same way Load does, but populates the struct
// dest already points to instead of allocating a fresh one. Resolve's
// cycle-breaking relies on this: the caller pre-allocates dest, registers
// it in its cache under the resource's ID, and only then calls LoadInto -
// so a reference cycle back to that same ID resolves to the very pointer
// being populated, closing the cycle instead of recursing forever.
func LoadInto(data []byte, dest any, resolve ResolveFunc, reg *Registry) error {
	destVal := reflect.ValueOf(dest)
	if destVal.Kind() != reflect.Ptr || destVal.IsNil() {
		return fmt.Errorf("codec: LoadInto requires a non-nil pointer destination")
	}

	var n node
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("codec: decode envelope: %w", err)
	}

	structNode := &n
	if n.Kind == kindPtr {
		structNode = n.Elem
	}
	if structNode == nil || structNode.Kind != kindStruct {
		return fmt.Errorf("codec: LoadInto root node has unsupported kind %q", n.Kind)
	}

	elemType := destVal.Elem().Type()
	fv, err := decodeValue(structNode, elemType, resolve, reg)
	if err != nil {
		return err
	}
	destVal.Elem().Set(fv)
	return nil
}

func addrHint(v reflect.Value, hints map[uintptr]string) (string, bool) {
	if hints == nil || v.Kind() != reflect.Ptr || v.IsNil() {
		return "", false
	}
	id, ok := hints[v.Pointer()]
	return id, ok
}

func encodeValue(v reflect.Value, isRoot bool, hints map[uintptr]string) (*node, error) {
	if !v.IsValid() {
		return &node{Kind: kindNil}, nil
	}

	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return &node{Kind: kindNil}, nil
		}
		concrete := v.Elem()
		elem, err := encodeValue(concrete, isRoot, hints)
		if err != nil {
			return nil, err
		}
		return &node{Kind: kindIface, Type: concrete.Type().String(), Elem: elem}, nil

	case reflect.Ptr:
		if v.IsNil() {
			return &node{Kind: kindNil}, nil
		}
		if v.CanInterface() {
			if res, ok := v.Interface().(types.Resource); ok {
				id := res.PersistentID()
				if hid, ok2 := addrHint(v, hints); ok2 {
					id = hid
				}
				if id != "" && !isRoot {
					return &node{Kind: kindRef, ID: id}, nil
				}
			}
		}
		elem, err := encodeValue(v.Elem(), false, hints)
		if err != nil {
			return nil, err
		}
		return &node{Kind: kindPtr, Type: v.Type().String(), Elem: elem}, nil

	case reflect.Struct:
		fields := make(map[string]*node)
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			if sf.PkgPath != "" { // unexported
				continue
			}
			fn, err := encodeValue(v.Field(i), false, hints)
			if err != nil {
				return nil, fmt.Errorf("codec: field %s.%s: %w", t.Name(), sf.Name, err)
			}
			fields[sf.Name] = fn
		}
		return &node{Kind: kindStruct, Type: t.String(), Fields: fields}, nil

	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return &node{Kind: kindNil}, nil
		}
		elems := make([]*node, v.Len())
		for i := 0; i < v.Len(); i++ {
			en, err := encodeValue(v.Index(i), false, hints)
			if err != nil {
				return nil, err
			}
			elems[i] = en
		}
		return &node{Kind: kindSlice, Elems: elems}, nil

	case reflect.Map:
		if v.IsNil() {
			return &node{Kind: kindNil}, nil
		}
		entries := make([]mapEntry, 0, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			kn, err := encodeValue(iter.Key(), false, hints)
			if err != nil {
				return nil, err
			}
			vn, err := encodeValue(iter.Value(), false, hints)
			if err != nil {
				return nil, err
			}
			entries = append(entries, mapEntry{K: kn, V: vn})
		}
		return &node{Kind: kindMap, Entries: entries}, nil

	default:
		raw, err := json.Marshal(v.Interface())
		if err != nil {
			return nil, fmt.Errorf("codec: scalar %s: %w", v.Type(), err)
		}
		return &node{Kind: kindScalar, Scalar: raw}, nil
	}
}

func decodeValue(n *node, target reflect.Type, resolve ResolveFunc, reg *Registry) (reflect.Value, error) {
	if n == nil || n.Kind == kindNil {
		return reflect.Zero(target), nil
	}

	switch n.Kind {
	case kindRef:
		obj, err := resolve(n.ID)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("%w: %s: %w", types.ErrMissingDependency, n.ID, err)
		}
		rv := reflect.ValueOf(obj)
		if !rv.IsValid() {
			return reflect.Zero(target), nil
		}
		if !rv.Type().AssignableTo(target) {
			return reflect.Value{}, fmt.Errorf("codec: resolved %s for id %s not assignable to %s", rv.Type(), n.ID, target)
		}
		return rv, nil

	case kindScalar:
		ptr := reflect.New(target)
		if err := json.Unmarshal(n.Scalar, ptr.Interface()); err != nil {
			return reflect.Value{}, fmt.Errorf("codec: scalar into %s: %w", target, err)
		}
		return ptr.Elem(), nil

	case kindIface:
		concreteType, err := reg.Lookup(n.Type)
		if err != nil {
			return reflect.Value{}, err
		}
		inner, err := decodeValue(n.Elem, concreteType, resolve, reg)
		if err != nil {
			return reflect.Value{}, err
		}
		if !inner.Type().AssignableTo(target) {
			return reflect.Value{}, fmt.Errorf("codec: %s does not implement %s", inner.Type(), target)
		}
		return inner, nil

	case kindPtr:
		elemType := target
		if target.Kind() == reflect.Ptr {
			elemType = target.Elem()
		}
		inner, err := decodeValue(n.Elem, elemType, resolve, reg)
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.New(elemType)
		out.Elem().Set(inner)
		if target.Kind() != reflect.Ptr {
			return out.Elem(), nil
		}
		return out, nil

	case kindStruct:
		structType := target
		if structType == nil || structType.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("codec: struct node decoded against non-struct type %s", target)
		}
		out := reflect.New(structType).Elem()
		for i := 0; i < structType.NumField(); i++ {
			sf := structType.Field(i)
			if sf.PkgPath != "" {
				continue
			}
			fn, ok := n.Fields[sf.Name]
			if !ok {
				continue
			}
			fv, err := decodeValue(fn, sf.Type, resolve, reg)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("codec: field %s.%s: %w", structType.Name(), sf.Name, err)
			}
			out.Field(i).Set(fv)
		}
		return out, nil

	case kindSlice:
		elemType := target.Elem()
		out := reflect.MakeSlice(target, len(n.Elems), len(n.Elems))
		for i, en := range n.Elems {
			ev, err := decodeValue(en, elemType, resolve, reg)
			if err != nil {
				return reflect.Value{}, err
			}
			out.Index(i).Set(ev)
		}
		return out, nil

	case kindMap:
		keyType, valType := target.Key(), target.Elem()
		out := reflect.MakeMapWithSize(target, len(n.Entries))
		for _, e := range n.Entries {
			kv, err := decodeValue(e.K, keyType, resolve, reg)
			if err != nil {
				return reflect.Value{}, err
			}
			vv, err := decodeValue(e.V, valType, resolve, reg)
			if err != nil {
				return reflect.Value{}, err
			}
			out.SetMapIndex(kv, vv)
		}
		return out, nil

	default:
		return reflect.Value{}, fmt.Errorf("codec: unknown node kind %q", n.Kind)
	}
}

// AddrHint returns the pointer address of v, suitable as a key in the hints
// map passed to Dump, and whether v is a non-nil pointer at all.
func AddrHint(v any) (uintptr, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return 0, false
	}
	return rv.Pointer(), true
}
