package kiln

import (
	"context"
	"fmt"
	"reflect"
)

// Accessor is handed to factory functions to resolve their dependencies.
// Every Get call is recorded as a dependency edge of the factory being
// resolved, so the dependency graph always reflects the keys a factory
// actually read on its latest run.
type Accessor interface {
	Get(key string) (any, error)
}

// FactoryFunc produces a value from an accessor.
type FactoryFunc func(Accessor) (any, error)

// Factory wraps a FactoryFunc together with its resolution scope. Build one
// with Provide or Value; plain values and bare functions in a Factories map
// are wrapped automatically.
type Factory struct {
	fn        FactoryFunc
	transient bool
}

// FactoryOption configures a Factory at construction time.
type FactoryOption func(*Factory)

// AsTransient marks the factory as transient: a fresh instance is produced
// on every resolution and the result is never cached.
func AsTransient() FactoryOption {
	return func(f *Factory) {
		f.transient = true
	}
}

// Provide builds a Factory from a function.
func Provide(fn FactoryFunc, opts ...FactoryOption) Factory {
	f := Factory{fn: fn}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// Value builds a Factory that always yields the given value.
func Value(v any, opts ...FactoryOption) Factory {
	return Provide(func(Accessor) (any, error) { return v, nil }, opts...)
}

// Transient reports whether the factory is transient.
func (f Factory) Transient() bool {
	return f.transient
}

// Factories maps keys to anything wrappable as a Factory: a Factory, a
// FactoryFunc (or bare func(Accessor) (any, error)), or an eager plain
// value.
type Factories map[string]any

// wrapFactory normalizes a registration value into a Factory. A nil
// function is rejected by the registry validation, not here.
func wrapFactory(v any) Factory {
	switch fv := v.(type) {
	case Factory:
		return fv
	case FactoryFunc:
		return Provide(fv)
	case func(Accessor) (any, error):
		return Provide(fv)
	default:
		return Value(v)
	}
}

// isNilResult reports whether a factory produced no usable value: a nil
// interface, or a typed nil pointer, map, slice, channel or function
// hiding inside a non-nil interface.
func isNilResult(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return rv.IsNil()
	}
	return false
}

// Initializer is the optional initialization capability. After a value is
// resolved and cached, the container invokes Init exactly once per key:
// asynchronously on the ordinary resolve path, or synchronously during
// Preload and CallOnInit.
type Initializer interface {
	Init(ctx context.Context) error
}

// Disposer is the optional teardown capability, invoked by
// Container.Dispose in reverse resolution order.
type Disposer interface {
	Dispose(ctx context.Context) error
}

// Get resolves a dependency through an accessor and asserts its type:
//
//	db, err := kiln.Get[*Database](acc, "db")
func Get[T any](acc Accessor, key string) (T, error) {
	var zero T

	v, err := acc.Get(key)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}

	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("key %q: expected %T, got %T", key, zero, v)
	}
	return typed, nil
}
