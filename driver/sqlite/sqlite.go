// Copyright 2024-2025 George Steel
// SPDX-License-Identifier: MIT

// Package sqlite provides a pure-Go sqlite engine driver for sqldal,
// backed by database/sql and modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/george-steel/sqldal"
)

// Driver opens sqlite connections for a data source name such as a file
// path or ":memory:".
type Driver struct {
	dsn string
}

func New(dsn string) *Driver {
	return &Driver{dsn: dsn}
}

func (d *Driver) Open(ctx context.Context, readOnly bool) (sqldal.Conn, error) {
	pool, err := sql.Open("sqlite", d.dsn)
	if err != nil {
		return nil, err
	}
	// The access layer owns exactly one connection; transactions are driven
	// with explicit BEGIN/SAVEPOINT statements on it.
	c, err := pool.Conn(ctx)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if readOnly {
		if _, err := c.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
			c.Close()
			pool.Close()
			return nil, err
		}
	}
	return &conn{pool: pool, conn: c}, nil
}

func (d *Driver) Accessors() *sqldal.Registry {
	return newAccessors()
}

type conn struct {
	pool *sql.DB
	conn *sql.Conn
}

func (c *conn) DatabaseType() string {
	return "sqlite"
}

func (c *conn) Version(ctx context.Context) (string, error) {
	var version string
	err := c.conn.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&version)
	return version, err
}

func (c *conn) Prepare(ctx context.Context, query string, keys []string) (sqldal.Stmt, error) {
	if len(keys) > 1 {
		return nil, fmt.Errorf("sqlite reports a single generated key column, %d declared", len(keys))
	}
	ps, err := c.conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return &stmt{conn: c, stmt: ps, keys: keys}, nil
}

func (c *conn) Begin(ctx context.Context) error {
	_, err := c.conn.ExecContext(ctx, "BEGIN")
	return err
}

func (c *conn) Commit(ctx context.Context) error {
	_, err := c.conn.ExecContext(ctx, "COMMIT")
	return err
}

func (c *conn) Rollback(ctx context.Context) error {
	_, err := c.conn.ExecContext(ctx, "ROLLBACK")
	return err
}

func (c *conn) Savepoint(ctx context.Context, name string) error {
	_, err := c.conn.ExecContext(ctx, "SAVEPOINT "+quoteIdent(name))
	return err
}

func (c *conn) Release(ctx context.Context, name string) error {
	_, err := c.conn.ExecContext(ctx, "RELEASE SAVEPOINT "+quoteIdent(name))
	return err
}

func (c *conn) RollbackTo(ctx context.Context, name string) error {
	_, err := c.conn.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+quoteIdent(name))
	return err
}

func (c *conn) Close() error {
	err := c.conn.Close()
	if perr := c.pool.Close(); perr != nil && err == nil {
		err = perr
	}
	return err
}

type stmt struct {
	conn *conn
	stmt *sql.Stmt
	keys []string
}

func (s *stmt) Exec(ctx context.Context, args []any) (int64, error) {
	res, err := s.stmt.ExecContext(ctx, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *stmt) Query(ctx context.Context, args []any) (sqldal.Rows, error) {
	return s.stmt.QueryContext(ctx, args...)
}

// Insert executes the statement and selects the row id it generated through
// sqlite's last_insert_rowid(), aliased to the declared key column.
func (s *stmt) Insert(ctx context.Context, args []any) (sqldal.Rows, error) {
	if len(s.keys) != 1 {
		return nil, fmt.Errorf("sqlite insert needs exactly one generated key column, %d declared", len(s.keys))
	}
	if _, err := s.stmt.ExecContext(ctx, args...); err != nil {
		return nil, err
	}
	return s.conn.conn.QueryContext(ctx, "SELECT last_insert_rowid() AS "+quoteIdent(s.keys[0]))
}

func (s *stmt) Close() error {
	return s.stmt.Close()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

var _ sqldal.Driver = (*Driver)(nil)
