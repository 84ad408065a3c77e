// Copyright 2024-2025 George Steel
// SPDX-License-Identifier: MIT

package sqldal

import (
	"context"
	"strings"
)

// A Driver opens connections to a particular database engine and supplies
// the accessors translating Go values to and from that engine.
type Driver interface {
	// Open establishes a single live connection. A read-only connection
	// must reject writes at the engine level.
	Open(ctx context.Context, readOnly bool) (Conn, error)

	// Accessors returns the registry of types the engine supports.
	Accessors() *Registry
}

// Conn is one live connection, exclusively owned by one Database and never
// driven by more than one goroutine at a time.
type Conn interface {
	// DatabaseType identifies the engine, e.g. "sqlite" or "postgresql".
	DatabaseType() string

	// Version reports the engine's version string.
	Version(ctx context.Context) (string, error)

	// Prepare compiles a query using positional ? placeholders. For inserts
	// expected to report generated keys, keys names the key columns and the
	// engine arranges for Stmt.Insert to return them, natively or through a
	// fallback key query.
	Prepare(ctx context.Context, sql string, keys []string) (Stmt, error)

	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	Savepoint(ctx context.Context, name string) error
	Release(ctx context.Context, name string) error
	RollbackTo(ctx context.Context, name string) error

	Close() error
}

// Stmt is one prepared execution unit against a live connection.
type Stmt interface {
	// Exec runs the statement and reports the number of affected rows.
	Exec(ctx context.Context, args []any) (int64, error)

	// Query runs the statement and returns its result rows.
	Query(ctx context.Context, args []any) (Rows, error)

	// Insert runs an insert and returns rows over the generated key columns
	// declared at Prepare.
	Insert(ctx context.Context, args []any) (Rows, error)

	Close() error
}

// Rows is the engine-level result row stream. *sql.Rows satisfies it
// directly; other engines adapt their native rows to it.
type Rows interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// DatabaseInfo identifies a live engine for query variant selection.
type DatabaseInfo struct {
	Type    string
	Version string
}

// ColumnNameMapper maps a raw column name reported by the engine to the
// spelling the application declares columns under. Both spellings resolve
// to the same column on a cursor.
type ColumnNameMapper func(string) string

// SnakeToCamel is the default column name mapper, converting snake_case
// column names to camelCase.
func SnakeToCamel(name string) string {
	var out strings.Builder
	out.Grow(len(name))
	upper := false
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '_' {
			upper = true
			continue
		}
		if upper && c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		upper = false
		out.WriteByte(c)
	}
	return out.String()
}
