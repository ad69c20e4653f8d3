// Package codec implements the persistent-ID serialization protocol: dumping
// an object graph to a self-delimiting byte stream in which any node
// carrying (or pre-assigned) a persistent resource ID is replaced by a
// reference node holding that ID (the literal PYGR_ID: prefix is not
// written), and loading that stream back by splicing in objects obtained
// from a resolver callback.
package codec

import (
	"fmt"
	"reflect"
	"sync"
)

// Registry maps a registered type's name (as produced by reflect.Type.String)
// to its reflect.Type, so Load can allocate the correct concrete type for a
// dump's root value and for any interface-typed field. This plays the role
// gob.Register plays for encoding/gob: callers must register every concrete
// type that can appear as a root or as the dynamic value of an interface
// field before calling Load.
type Registry struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

// NewRegistry creates an empty type registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]reflect.Type)}
}

// Register records zero's concrete type under its reflect.Type.String()
// name. zero is typically a pointer to a zero-value struct, e.g. &Foo{}.
func (r *Registry) Register(zero any) {
	t := reflect.TypeOf(zero)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[t.String()] = t
}

// Lookup returns the reflect.Type registered under name, or an error if
// nothing was registered under that name.
func (r *Registry) Lookup(name string) (reflect.Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	if !ok {
		return nil, fmt.Errorf("codec: type %q is not registered", name)
	}
	return t, nil
}
