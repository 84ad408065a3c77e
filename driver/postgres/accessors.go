// Copyright 2024-2025 George Steel
// SPDX-License-Identifier: MIT

package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/george-steel/sqldal"
)

// pgx decodes columns to Go values by OID, so integer columns arrive as
// int16/int32/int64 depending on width; these accessors widen them to the
// declared type. UUIDs travel as canonical text parameters and decode from
// pgx's raw 16-byte form.
func newAccessors() *sqldal.Registry {
	r := sqldal.NewRegistry()

	sqldal.RegisterFor(r,
		func(v int64) (any, error) { return v, nil },
		func(raw any) (int64, error) {
			n, ok := widenInt(raw)
			if !ok {
				return 0, decodeError[int64](raw)
			}
			return n, nil
		})

	sqldal.RegisterFor(r,
		func(v int) (any, error) { return int64(v), nil },
		func(raw any) (int, error) {
			n, ok := widenInt(raw)
			if !ok {
				return 0, decodeError[int](raw)
			}
			return int(n), nil
		})

	sqldal.RegisterFor(r,
		func(v string) (any, error) { return v, nil },
		func(raw any) (string, error) {
			switch s := raw.(type) {
			case string:
				return s, nil
			case []byte:
				return string(s), nil
			}
			return "", decodeError[string](raw)
		})

	sqldal.RegisterFor(r,
		func(v float64) (any, error) { return v, nil },
		func(raw any) (float64, error) {
			switch n := raw.(type) {
			case float64:
				return n, nil
			case float32:
				return float64(n), nil
			}
			if n, ok := widenInt(raw); ok {
				return float64(n), nil
			}
			return 0, decodeError[float64](raw)
		})

	sqldal.RegisterFor(r,
		func(v bool) (any, error) { return v, nil },
		func(raw any) (bool, error) {
			b, ok := raw.(bool)
			if !ok {
				return false, decodeError[bool](raw)
			}
			return b, nil
		})

	sqldal.RegisterFor(r,
		func(v []byte) (any, error) { return v, nil },
		func(raw any) ([]byte, error) {
			b, ok := raw.([]byte)
			if !ok {
				return nil, decodeError[[]byte](raw)
			}
			return b, nil
		})

	sqldal.RegisterFor(r,
		func(v time.Time) (any, error) { return v, nil },
		func(raw any) (time.Time, error) {
			t, ok := raw.(time.Time)
			if !ok {
				return time.Time{}, decodeError[time.Time](raw)
			}
			return t, nil
		})

	sqldal.RegisterFor(r,
		func(v uuid.UUID) (any, error) { return v.String(), nil },
		func(raw any) (uuid.UUID, error) {
			switch u := raw.(type) {
			case [16]byte:
				return uuid.UUID(u), nil
			case string:
				return uuid.Parse(u)
			case []byte:
				if len(u) == 16 {
					return uuid.FromBytes(u)
				}
				return uuid.ParseBytes(u)
			}
			return uuid.Nil, decodeError[uuid.UUID](raw)
		})

	return r
}

func widenInt(raw any) (int64, bool) {
	switch n := raw.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int16:
		return int64(n), true
	case int8:
		return int64(n), true
	case int:
		return int64(n), true
	}
	return 0, false
}

func decodeError[T any](raw any) error {
	var zero T
	return fmt.Errorf("postgres returned %T where %T was declared", raw, zero)
}
