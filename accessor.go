// Copyright 2024-2025 George Steel
// SPDX-License-Identifier: MIT

package sqldal

import "reflect"

// An Accessor translates between a semantic Go type and the value
// representation the underlying engine accepts for parameters and reports
// for columns. Both directions pass nil through unchanged.
type Accessor struct {
	// Encode converts a semantic value to an engine-level parameter value.
	Encode func(value any) (any, error)
	// Decode converts an engine-level column value to the semantic type.
	Decode func(raw any) (any, error)
}

// A Registry resolves accessors by semantic type. Drivers supply a registry
// populated with the types their engine supports; callers may register
// additional types before opening a database.
type Registry struct {
	accessors map[reflect.Type]Accessor
}

func NewRegistry() *Registry {
	return &Registry{accessors: make(map[reflect.Type]Accessor)}
}

// Register binds an accessor to a semantic type, replacing any previous one.
func (r *Registry) Register(t reflect.Type, a Accessor) {
	r.accessors[t] = a
}

// Lookup returns the accessor registered for t.
func (r *Registry) Lookup(t reflect.Type) (Accessor, bool) {
	a, ok := r.accessors[t]
	return a, ok
}

// RegisterFor registers an accessor for T with typed conversion functions.
// Nil values bypass the conversions in both directions.
func RegisterFor[T any](r *Registry, encode func(T) (any, error), decode func(any) (T, error)) {
	r.Register(reflect.TypeFor[T](), Accessor{
		Encode: func(value any) (any, error) {
			if value == nil {
				return nil, nil
			}
			v, ok := value.(T)
			if !ok {
				return nil, typeMismatch[T](value)
			}
			return encode(v)
		},
		Decode: func(raw any) (any, error) {
			if raw == nil {
				return nil, nil
			}
			return decode(raw)
		},
	})
}

func typeMismatch[T any](value any) error {
	return &valueTypeError{want: reflect.TypeFor[T](), got: reflect.TypeOf(value)}
}

type valueTypeError struct {
	want reflect.Type
	got  reflect.Type
}

func (e *valueTypeError) Error() string {
	return "value of type " + e.got.String() + " bound where " + e.want.String() + " was declared"
}
