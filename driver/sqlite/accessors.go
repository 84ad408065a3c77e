// Copyright 2024-2025 George Steel
// SPDX-License-Identifier: MIT

package sqlite

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/george-steel/sqldal"
)

// sqlite stores everything as INTEGER, REAL, TEXT or BLOB; these accessors
// translate the usual Go types to and from that model. Timestamps are stored
// as RFC 3339 text in UTC and UUIDs as their canonical text form.
func newAccessors() *sqldal.Registry {
	r := sqldal.NewRegistry()

	sqldal.RegisterFor(r,
		func(v int64) (any, error) { return v, nil },
		func(raw any) (int64, error) {
			n, ok := raw.(int64)
			if !ok {
				return 0, decodeError[int64](raw)
			}
			return n, nil
		})

	sqldal.RegisterFor(r,
		func(v int) (any, error) { return int64(v), nil },
		func(raw any) (int, error) {
			n, ok := raw.(int64)
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
			case int64:
				return float64(n), nil
			}
			return 0, decodeError[float64](raw)
		})

	sqldal.RegisterFor(r,
		func(v bool) (any, error) {
			if v {
				return int64(1), nil
			}
			return int64(0), nil
		},
		func(raw any) (bool, error) {
			switch b := raw.(type) {
			case bool:
				return b, nil
			case int64:
				return b != 0, nil
			}
			return false, decodeError[bool](raw)
		})

	sqldal.RegisterFor(r,
		func(v []byte) (any, error) { return v, nil },
		func(raw any) ([]byte, error) {
			switch b := raw.(type) {
			case []byte:
				return b, nil
			case string:
				return []byte(b), nil
			}
			return nil, decodeError[[]byte](raw)
		})

	sqldal.RegisterFor(r,
		func(v time.Time) (any, error) { return v.UTC().Format(time.RFC3339Nano), nil },
		func(raw any) (time.Time, error) {
			switch t := raw.(type) {
			case time.Time:
				return t, nil
			case string:
				return time.Parse(time.RFC3339Nano, t)
			case []byte:
				return time.Parse(time.RFC3339Nano, string(t))
			}
			return time.Time{}, decodeError[time.Time](raw)
		})

	sqldal.RegisterFor(r,
		func(v uuid.UUID) (any, error) { return v.String(), nil },
		func(raw any) (uuid.UUID, error) {
			switch u := raw.(type) {
			case string:
				return uuid.Parse(u)
			case []byte:
				return uuid.ParseBytes(u)
			}
			return uuid.Nil, decodeError[uuid.UUID](raw)
		})

	return r
}

func decodeError[T any](raw any) error {
	var zero T
	return fmt.Errorf("sqlite returned %T where %T was declared", raw, zero)
}
