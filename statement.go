// Copyright 2024-2025 George Steel
// SPDX-License-Identifier: MIT

package sqldal

import (
	"context"
	"fmt"
	"reflect"
)

// A Statement is one prepared execution unit, bound to a resolved query and
// the database or transaction that prepared it. It may run any number of
// bind and execute cycles; it is closed by its owner or explicitly, which
// also force-closes any cursor it produced.
type Statement struct {
	db      *Database
	tx      *Transaction // nil when owned by the database
	desc    *descriptor
	stmt    Stmt
	args    []any
	cursors map[*Cursor]struct{}
	closed  bool
}

func prepare(ctx context.Context, db *Database, tx *Transaction, q Query) (*Statement, error) {
	desc, err := resolveQuery(q, db.info)
	if err != nil {
		return nil, err
	}
	stmt, err := db.conn.Prepare(ctx, desc.sql, q.keyColumns())
	if err != nil {
		return nil, fmt.Errorf("preparing query %q: %w", desc.sql, err)
	}
	s := &Statement{
		db:      db,
		tx:      tx,
		desc:    desc,
		stmt:    stmt,
		args:    make([]any, desc.slots),
		cursors: make(map[*Cursor]struct{}),
	}
	if tx != nil {
		tx.statements[s] = struct{}{}
	} else {
		db.statements[s] = struct{}{}
	}
	return s, nil
}

func (s *Statement) active() error {
	if s.closed {
		return fmt.Errorf("statement: %w", ErrClosed)
	}
	if s.tx != nil {
		return s.tx.active()
	}
	return s.db.active()
}

func (s *Statement) writable() error {
	if err := s.active(); err != nil {
		return err
	}
	if s.tx == nil {
		return ErrNoTransaction
	}
	return nil
}

// A Binder writes one logical value into every positional slot its parameter
// occupies in the query text.
type Binder interface {
	Bind(value any) error
}

type scalarBinder struct {
	accessor Accessor
	indexes  []int
	args     []any
}

func (b *scalarBinder) Bind(value any) error {
	v, err := b.accessor.Encode(value)
	if err != nil {
		return err
	}
	for _, i := range b.indexes {
		b.args[i] = v
	}
	return nil
}

type listBinder struct {
	binders []Binder
}

// Bind accepts a slice or array of exactly the declared list size and binds
// its elements in order to the list's synthetic sub-parameters.
func (b *listBinder) Bind(value any) error {
	v := reflect.ValueOf(value)
	if !v.IsValid() || (v.Kind() != reflect.Slice && v.Kind() != reflect.Array) {
		return fmt.Errorf("%w: expected a sequence of %d values, got %T", ErrListSize, len(b.binders), value)
	}
	if v.Len() != len(b.binders) {
		return fmt.Errorf("%w: got %d values, declared %d", ErrListSize, v.Len(), len(b.binders))
	}
	for i, sb := range b.binders {
		if err := sb.Bind(v.Index(i).Interface()); err != nil {
			return err
		}
	}
	return nil
}

// Binder returns a bind handle for a named parameter. For a list parameter
// the handle expects a slice of exactly the declared size.
func (s *Statement) Binder(name string) (Binder, error) {
	if s.closed {
		return nil, fmt.Errorf("statement: %w", ErrClosed)
	}
	if size, ok := s.desc.lists[name]; ok {
		binders := make([]Binder, size)
		for i := range binders {
			b, err := s.Binder(listElement(name, i))
			if err != nil {
				return nil, err
			}
			binders[i] = b
		}
		return &listBinder{binders: binders}, nil
	}

	t, err := s.desc.query.typeOf(name)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("%w %q", ErrNoType, name)
	}
	indexes, ok := s.desc.indexes[name]
	if !ok {
		return nil, fmt.Errorf("%w %q: not present in query text", ErrNoType, name)
	}
	accessor, ok := s.db.accessors.Lookup(t)
	if !ok {
		return nil, fmt.Errorf("%w %s (parameter %q)", ErrNoAccessor, t, name)
	}
	return &scalarBinder{accessor: accessor, indexes: indexes, args: s.args}, nil
}

// Bind resolves and invokes the binder for name in one step.
func (s *Statement) Bind(name string, value any) error {
	b, err := s.Binder(name)
	if err != nil {
		return err
	}
	return b.Bind(value)
}

// Update executes a write and reports the number of affected rows. Writes
// require the statement to be owned by an open transaction.
func (s *Statement) Update(ctx context.Context) (int64, error) {
	if err := s.writable(); err != nil {
		return 0, err
	}
	n, err := s.stmt.Exec(ctx, s.args)
	if err != nil {
		return 0, fmt.Errorf("executing update: %w", err)
	}
	return n, nil
}

// Exec executes a statement with no result of interest, such as DDL.
func (s *Statement) Exec(ctx context.Context) error {
	if err := s.writable(); err != nil {
		return err
	}
	if _, err := s.stmt.Exec(ctx, s.args); err != nil {
		return fmt.Errorf("executing statement: %w", err)
	}
	return nil
}

// Query executes the statement and returns a cursor over its result rows.
func (s *Statement) Query(ctx context.Context) (*Cursor, error) {
	if err := s.active(); err != nil {
		return nil, err
	}
	rows, err := s.stmt.Query(ctx, s.args)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	return s.openCursor(rows)
}

// Insert executes an insert and returns a cursor over the generated key
// columns declared with [WithKeys].
func (s *Statement) Insert(ctx context.Context) (*Cursor, error) {
	if err := s.writable(); err != nil {
		return nil, err
	}
	if len(s.desc.query.keyColumns()) == 0 {
		return nil, fmt.Errorf("%w: query declares no generated key columns", ErrNoType)
	}
	rows, err := s.stmt.Insert(ctx, s.args)
	if err != nil {
		return nil, fmt.Errorf("executing insert: %w", err)
	}
	return s.openCursor(rows)
}

func (s *Statement) openCursor(rows Rows) (*Cursor, error) {
	c, err := newCursor(rows, s.desc.query, s.db)
	if err != nil {
		rows.Close()
		return nil, err
	}
	s.cursors[c] = struct{}{}
	c.onClose = func(closed *Cursor) {
		delete(s.cursors, closed)
	}
	return c, nil
}

// Close releases the prepared statement, force-closing any cursor it
// produced. It is a no-op on a nil or already-closed statement.
func (s *Statement) Close() error {
	if s == nil || s.closed {
		return nil
	}
	s.closed = true
	var first error
	for c := range s.cursors {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	if s.tx != nil {
		delete(s.tx.statements, s)
	} else {
		delete(s.db.statements, s)
	}
	if err := s.stmt.Close(); err != nil && first == nil {
		first = fmt.Errorf("closing statement: %w", err)
	}
	return first
}
