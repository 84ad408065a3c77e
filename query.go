// Copyright 2024-2025 George Steel
// SPDX-License-Identifier: MIT

package sqldal

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// Types declares the semantic Go types of a query's named parameters and
// result columns. Declared types are never inferred from SQL text. Column
// names are matched case-insensitively when a cursor opens.
type Types map[string]reflect.Type

// A Query is an immutable source of SQL text with declared parameter and
// column types. Build one with [NewQuery], select between engine variants
// with a [Builder], or compose fragments with [Concat] and [Format].
type Query interface {
	// text selects the raw SQL, named parameters intact, for a database.
	text(info DatabaseInfo) (string, error)

	// typeOf reports the declared type of a parameter or column name, nil
	// if undeclared, or an error when composed fragments declare more than
	// one distinct type for the name.
	typeOf(name string) (reflect.Type, error)

	// listSizes reports the declared list parameters by repetition count.
	listSizes() (map[string]int, error)

	// keyColumns reports the generated key columns of an insert query.
	keyColumns() []string
}

// decls carries the caller-supplied declarations shared by the literal and
// built query kinds.
type decls struct {
	types Types
	lists map[string]int
	keys  []string
}

// A QueryOption adds declarations to a query under construction.
type QueryOption func(*decls)

// WithList declares name as a list parameter of exactly size elements. The
// name must also carry a declared element type in the query's Types. In the
// rewritten SQL the parameter expands to size comma-separated placeholders.
func WithList(name string, size int) QueryOption {
	return func(d *decls) {
		d.lists[name] = size
	}
}

// WithKeys declares the generated key columns an insert statement reports.
// Each column must carry a declared type in the query's Types.
func WithKeys(columns ...string) QueryOption {
	return func(d *decls) {
		d.keys = append(d.keys, columns...)
	}
}

func newDecls(types Types, opts []QueryOption) (decls, error) {
	d := decls{
		types: make(Types, len(types)),
		lists: make(map[string]int),
	}
	for name, t := range types {
		d.types[name] = t
	}
	for _, opt := range opts {
		opt(&d)
	}
	for name, size := range d.lists {
		if size < 1 {
			return decls{}, fmt.Errorf("list parameter %q declared with size %d", name, size)
		}
		if _, ok := d.types[name]; !ok {
			return decls{}, fmt.Errorf("%w: list parameter %q has no element type", ErrNoType, name)
		}
	}
	for _, key := range d.keys {
		if _, ok := d.types[key]; !ok {
			return decls{}, fmt.Errorf("%w: key column %q", ErrNoType, key)
		}
	}
	return d, nil
}

// listBase splits a synthetic list element name back into its base name.
func listBase(name string) (string, bool) {
	i := strings.LastIndexByte(name, '#')
	if i < 0 {
		return "", false
	}
	return name[:i], true
}

func (d *decls) typeOf(name string) reflect.Type {
	if t, ok := d.types[name]; ok {
		return t
	}
	if base, ok := listBase(name); ok {
		if _, isList := d.lists[base]; isList {
			return d.types[base]
		}
	}
	return nil
}

type simpleQuery struct {
	sql string
	decls
}

// NewQuery creates a query using the same SQL for every database type and
// version. The text is scanned immediately, so malformed parameters fail
// here rather than at prepare or bind time.
func NewQuery(sql string, types Types, opts ...QueryOption) (Query, error) {
	d, err := newDecls(types, opts)
	if err != nil {
		return nil, err
	}
	if _, _, err := ParseNamedQuery(sql, d.lists); err != nil {
		return nil, err
	}
	return &simpleQuery{sql: sql, decls: d}, nil
}

// MustQuery is NewQuery panicking on error, for hardcoded query literals.
func MustQuery(sql string, types Types, opts ...QueryOption) Query {
	q, err := NewQuery(sql, types, opts...)
	if err != nil {
		panic(err)
	}
	return q
}

func (q *simpleQuery) text(DatabaseInfo) (string, error) {
	return q.sql, nil
}

func (q *simpleQuery) typeOf(name string) (reflect.Type, error) {
	return q.decls.typeOf(name), nil
}

func (q *simpleQuery) listSizes() (map[string]int, error) {
	return q.lists, nil
}

func (q *simpleQuery) keyColumns() []string {
	return q.keys
}

// compositeQuery composes the texts of several fragments while merging their
// declarations.
type compositeQuery struct {
	parts   []Query
	compose func(info DatabaseInfo) (string, error)
}

// Concat concatenates queries into a single query carrying the parameter
// and column declarations of all fragments.
func Concat(queries ...Query) Query {
	parts := slices.Clone(queries)
	return &compositeQuery{
		parts: parts,
		compose: func(info DatabaseInfo) (string, error) {
			var sql strings.Builder
			for _, q := range parts {
				t, err := q.text(info)
				if err != nil {
					return "", err
				}
				sql.WriteString(t)
			}
			return sql.String(), nil
		},
	}
}

// Format interpolates the texts of args into query at %s verbs, for
// including fragments in the middle of a larger query.
func Format(query Query, args ...Query) Query {
	parts := append([]Query{query}, args...)
	return &compositeQuery{
		parts: parts,
		compose: func(info DatabaseInfo) (string, error) {
			base, err := query.text(info)
			if err != nil {
				return "", err
			}
			texts := make([]any, len(args))
			for i, arg := range args {
				t, err := arg.text(info)
				if err != nil {
					return "", err
				}
				texts[i] = t
			}
			return fmt.Sprintf(base, texts...), nil
		},
	}
}

func (q *compositeQuery) text(info DatabaseInfo) (string, error) {
	return q.compose(info)
}

// More than one distinct declared type for the same name across fragments is
// an error. A single declaration wins over absence.
func (q *compositeQuery) typeOf(name string) (reflect.Type, error) {
	var found reflect.Type
	for _, part := range q.parts {
		t, err := part.typeOf(name)
		if err != nil {
			return nil, err
		}
		if t == nil {
			continue
		}
		if found != nil && found != t {
			return nil, fmt.Errorf("%w %q: %s and %s", ErrTypeConflict, name, found, t)
		}
		found = t
	}
	return found, nil
}

func (q *compositeQuery) listSizes() (map[string]int, error) {
	merged := make(map[string]int)
	for _, part := range q.parts {
		sizes, err := part.listSizes()
		if err != nil {
			return nil, err
		}
		for name, size := range sizes {
			if prev, ok := merged[name]; ok && prev != size {
				return nil, fmt.Errorf("%w %q: list sizes %d and %d", ErrTypeConflict, name, prev, size)
			}
			merged[name] = size
		}
	}
	return merged, nil
}

func (q *compositeQuery) keyColumns() []string {
	var keys []string
	for _, part := range q.parts {
		for _, key := range part.keyColumns() {
			if !slices.Contains(keys, key) {
				keys = append(keys, key)
			}
		}
	}
	return keys
}

// descriptor is the immutable engine-resolved form of one query: rewritten
// SQL, parameter slot indices, and the declarations backing them.
type descriptor struct {
	query   Query
	sql     string
	indexes map[string][]int
	lists   map[string]int
	slots   int
}

func resolveQuery(q Query, info DatabaseInfo) (*descriptor, error) {
	raw, err := q.text(info)
	if err != nil {
		return nil, err
	}
	lists, err := q.listSizes()
	if err != nil {
		return nil, err
	}
	sql, indexes, err := ParseNamedQuery(raw, lists)
	if err != nil {
		return nil, err
	}
	slots := 0
	for _, occurrences := range indexes {
		slots += len(occurrences)
	}
	return &descriptor{query: q, sql: sql, indexes: indexes, lists: lists, slots: slots}, nil
}
