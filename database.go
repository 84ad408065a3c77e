// Copyright 2024-2025 George Steel
// SPDX-License-Identifier: MIT

package sqldal

import (
	"context"
	"fmt"
)

// A Database owns a single live connection to an engine. It is not safe for
// concurrent use; callers serialize access to a database and everything
// opened from it.
type Database struct {
	conn      Conn
	info      DatabaseInfo
	accessors *Registry
	mapper    ColumnNameMapper
	readOnly  bool

	tx         *Transaction
	statements map[*Statement]struct{}
	savepoints int
	closed     bool
}

// An Option adjusts how a database is opened.
type Option func(*Database)

// WithColumnNameMapper overrides the default snake_case to camelCase
// column name mapping.
func WithColumnNameMapper(m ColumnNameMapper) Option {
	return func(db *Database) {
		db.mapper = m
	}
}

// Open connects through the driver in writable mode and reads the engine's
// type and version for query variant selection.
func Open(ctx context.Context, d Driver, opts ...Option) (*Database, error) {
	return open(ctx, d, false, opts)
}

// OpenReadOnly opens a connection on which writes and transactions are
// rejected.
func OpenReadOnly(ctx context.Context, d Driver, opts ...Option) (*Database, error) {
	return open(ctx, d, true, opts)
}

func open(ctx context.Context, d Driver, readOnly bool, opts []Option) (*Database, error) {
	conn, err := d.Open(ctx, readOnly)
	if err != nil {
		return nil, fmt.Errorf("opening connection: %w", err)
	}
	version, err := conn.Version(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("reading database version: %w", err)
	}
	db := &Database{
		conn:       conn,
		info:       DatabaseInfo{Type: conn.DatabaseType(), Version: version},
		accessors:  d.Accessors(),
		mapper:     SnakeToCamel,
		readOnly:   readOnly,
		statements: make(map[*Statement]struct{}),
	}
	for _, opt := range opts {
		opt(db)
	}
	return db, nil
}

// Info reports the engine type and version the connection identified itself
// with at open.
func (db *Database) Info() DatabaseInfo {
	return db.info
}

// Accessors returns the registry resolving semantic types for this database.
// Additional types may be registered at any time before they are used.
func (db *Database) Accessors() *Registry {
	return db.accessors
}

// active reports whether operations may run directly on the database.
// While a transaction chain is open, operations go through its innermost
// transaction instead.
func (db *Database) active() error {
	if db.closed {
		return fmt.Errorf("database: %w", ErrClosed)
	}
	if db.tx != nil {
		return fmt.Errorf("database: %w", ErrTxOpen)
	}
	return nil
}

// Begin opens the root transaction, enabling writes until it commits or
// rolls back.
func (db *Database) Begin(ctx context.Context) (*Transaction, error) {
	if err := db.active(); err != nil {
		return nil, err
	}
	if db.readOnly {
		return nil, ErrReadOnly
	}
	if err := db.conn.Begin(ctx); err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	tx := newTransaction(db, nil, "")
	db.tx = tx
	return tx, nil
}

// Prepare compiles a query for execution outside a transaction. Statements
// prepared from the database may only run queries; writes require a
// statement prepared from an open transaction.
func (db *Database) Prepare(ctx context.Context, q Query) (*Statement, error) {
	if err := db.active(); err != nil {
		return nil, err
	}
	return prepare(ctx, db, nil, q)
}

// Close releases the connection, force-closing open statements and rolling
// back any open transaction chain. Every owned resource is attempted and the
// first failure is surfaced. Closing an already-closed database is a no-op.
func (db *Database) Close() error {
	if db == nil || db.closed {
		return nil
	}
	var first error
	for stmt := range db.statements {
		if err := stmt.Close(); err != nil && first == nil {
			first = err
		}
	}
	if err := db.tx.Close(context.Background()); err != nil && first == nil {
		first = err
	}
	db.closed = true
	if err := db.conn.Close(); err != nil && first == nil {
		first = fmt.Errorf("closing connection: %w", err)
	}
	return first
}
