// Copyright 2024-2025 George Steel
// SPDX-License-Identifier: MIT

package sqldal

import (
	"fmt"
	"reflect"
	"strings"
)

// getter reads one typed column from the cursor's current row.
type getter struct {
	accessor Accessor
	index    int
}

// A Cursor iterates the rows of a query result with named, typed column
// access. It starts positioned before the first row, so a call to [Cursor.Next]
// or an equivalent seek must succeed before any column can be read:
//
//	cursor, err := stmt.Query(ctx)
//	if err != nil { ... }
//	defer cursor.Close()
//	for cursor.Next() {
//		name, err := sqldal.GetAs[string](cursor, "name")
//		...
//	}
//	if err := cursor.Err(); err != nil { ... }
type Cursor struct {
	rows    Rows
	getters map[string]getter
	row     []any
	onRow   bool
	closed  bool
	err     error
	onClose func(*Cursor)
}

// newCursor builds the column accessor map once from the columns the engine
// reports. Each declared column registers under both its raw and mapped
// lower-cased spellings; undeclared columns are skipped.
func newCursor(rows Rows, q Query, db *Database) (*Cursor, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading result columns: %w", err)
	}
	getters := make(map[string]getter)
	for i, raw := range columns {
		name := unquoteColumn(raw)
		rawName := strings.ToLower(name)
		mapped := strings.ToLower(db.mapper(name))

		var t reflect.Type
		for _, candidate := range []string{name, rawName, db.mapper(name), mapped} {
			ct, err := q.typeOf(candidate)
			if err != nil {
				return nil, err
			}
			if ct != nil {
				t = ct
				break
			}
		}
		if t == nil {
			continue
		}
		accessor, ok := db.accessors.Lookup(t)
		if !ok {
			return nil, fmt.Errorf("%w %s (column %q)", ErrNoAccessor, t, raw)
		}
		g := getter{accessor: accessor, index: i}
		getters[rawName] = g
		getters[mapped] = g
	}
	return &Cursor{rows: rows, getters: getters, row: make([]any, len(columns))}, nil
}

// unquoteColumn strips the surrounding quotes of a quoted raw column name
// and collapses doubled quote escapes.
func unquoteColumn(name string) string {
	if len(name) >= 2 && name[0] == '"' && name[len(name)-1] == '"' {
		return strings.ReplaceAll(name[1:len(name)-1], `""`, `"`)
	}
	return name
}

// Get reads the value of a named column on the current row. The raw and the
// mapped column spellings both resolve, case-insensitively. Reading before a
// successful seek, after close, or for an unmapped column is an error.
func (c *Cursor) Get(column string) (any, error) {
	if c == nil || c.closed {
		return nil, fmt.Errorf("cursor: %w", ErrClosed)
	}
	if !c.onRow {
		return nil, ErrNoRow
	}
	g, ok := c.getters[strings.ToLower(column)]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrNoColumn, column)
	}
	return g.accessor.Decode(c.row[g.index])
}

// GetAs reads a named column as a concrete type. A SQL null yields the zero
// value.
func GetAs[T any](c *Cursor, column string) (T, error) {
	var zero T
	v, err := c.Get(column)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("column %q holds %T, not %T", column, v, zero)
	}
	return t, nil
}

// Seek moves the cursor n rows relative to its position and reports whether
// the destination is a row. Moving past either bound returns false and
// closes the cursor; the engine row stream is forward-only, so any backward
// seek moves out of bounds. Seek(0) reports whether the cursor is on a row.
func (c *Cursor) Seek(n int) bool {
	if c == nil || c.closed {
		return false
	}
	if n == 0 {
		return c.onRow
	}
	if n < 0 {
		c.invalidate()
		return false
	}
	for ; n > 0; n-- {
		if !c.rows.Next() {
			c.err = c.rows.Err()
			c.invalidate()
			return false
		}
	}
	if err := c.scanRow(); err != nil {
		c.err = err
		c.invalidate()
		return false
	}
	c.onRow = true
	return true
}

// Next is Seek(1).
func (c *Cursor) Next() bool {
	return c.Seek(1)
}

// Previous is Seek(-1).
func (c *Cursor) Previous() bool {
	return c.Seek(-1)
}

// Err reports the engine error that ended iteration, if any.
func (c *Cursor) Err() error {
	if c == nil {
		return nil
	}
	return c.err
}

// Close releases the cursor's row resources, making it unusable. It is a
// no-op on a nil or already-closed cursor.
func (c *Cursor) Close() error {
	if c == nil || c.closed {
		return nil
	}
	c.closed = true
	c.onRow = false
	if c.onClose != nil {
		c.onClose(c)
	}
	if err := c.rows.Close(); err != nil {
		return fmt.Errorf("closing cursor: %w", err)
	}
	return nil
}

func (c *Cursor) invalidate() {
	_ = c.Close()
}

func (c *Cursor) scanRow() error {
	ptrs := make([]any, len(c.row))
	for i := range c.row {
		c.row[i] = nil
		ptrs[i] = &c.row[i]
	}
	return c.rows.Scan(ptrs...)
}
