package resolver

import "reflect"

// newPointer allocates a zero value of t and returns it as a reflect.Value
// of type t itself. t is expected to be a pointer type (every type
// registered with codec.Registry is, since callers register &Foo{}), so
// this yields a fresh *Foo rather than a Foo.
func newPointer(t reflect.Type) reflect.Value {
	if t.Kind() != reflect.Ptr {
		return reflect.New(t)
	}
	return reflect.New(t.Elem())
}
