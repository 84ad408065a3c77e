// Copyright 2024-2025 George Steel
// SPDX-License-Identifier: MIT

// Package postgres provides a PostgreSQL engine driver for sqldal on top of
// pgx. Generated keys are returned natively through RETURNING.
package postgres

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jmoiron/sqlx"

	"github.com/george-steel/sqldal"
)

// Driver opens pgx connections for a connection string or URL.
type Driver struct {
	connString string
}

func New(connString string) *Driver {
	return &Driver{connString: connString}
}

func (d *Driver) Open(ctx context.Context, readOnly bool) (sqldal.Conn, error) {
	c, err := pgx.Connect(ctx, d.connString)
	if err != nil {
		return nil, err
	}
	if readOnly {
		if _, err := c.Exec(ctx, "SET default_transaction_read_only = on"); err != nil {
			c.Close(ctx)
			return nil, err
		}
	}
	return &conn{conn: c}, nil
}

func (d *Driver) Accessors() *sqldal.Registry {
	return newAccessors()
}

type conn struct {
	conn *pgx.Conn
}

func (c *conn) DatabaseType() string {
	return "postgresql"
}

func (c *conn) Version(ctx context.Context) (string, error) {
	var version string
	err := c.conn.QueryRow(ctx, "SHOW server_version").Scan(&version)
	return version, err
}

// Prepare rebinds the layer's ? placeholders to postgres $n numbering and,
// when generated key columns are declared, appends a RETURNING clause so
// Insert can read them back natively.
func (c *conn) Prepare(ctx context.Context, query string, keys []string) (sqldal.Stmt, error) {
	sql := sqlx.Rebind(sqlx.DOLLAR, query)
	if len(keys) > 0 {
		quoted := make([]string, len(keys))
		for i, key := range keys {
			quoted[i] = quoteIdent(key)
		}
		sql += " RETURNING " + strings.Join(quoted, ", ")
	}
	return &stmt{conn: c, sql: sql, returning: len(keys) > 0}, nil
}

func (c *conn) Begin(ctx context.Context) error {
	_, err := c.conn.Exec(ctx, "BEGIN")
	return err
}

func (c *conn) Commit(ctx context.Context) error {
	_, err := c.conn.Exec(ctx, "COMMIT")
	return err
}

func (c *conn) Rollback(ctx context.Context) error {
	_, err := c.conn.Exec(ctx, "ROLLBACK")
	return err
}

func (c *conn) Savepoint(ctx context.Context, name string) error {
	_, err := c.conn.Exec(ctx, "SAVEPOINT "+quoteIdent(name))
	return err
}

func (c *conn) Release(ctx context.Context, name string) error {
	_, err := c.conn.Exec(ctx, "RELEASE SAVEPOINT "+quoteIdent(name))
	return err
}

func (c *conn) RollbackTo(ctx context.Context, name string) error {
	_, err := c.conn.Exec(ctx, "ROLLBACK TO SAVEPOINT "+quoteIdent(name))
	return err
}

func (c *conn) Close() error {
	return c.conn.Close(context.Background())
}

// pgx prepares and caches statements internally, so a Stmt only carries the
// resolved SQL.
type stmt struct {
	conn      *conn
	sql       string
	returning bool
}

func (s *stmt) Exec(ctx context.Context, args []any) (int64, error) {
	tag, err := s.conn.conn.Exec(ctx, s.sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *stmt) Query(ctx context.Context, args []any) (sqldal.Rows, error) {
	rows, err := s.conn.conn.Query(ctx, s.sql, args...)
	if err != nil {
		return nil, err
	}
	return &rowsAdapter{rows: rows}, nil
}

func (s *stmt) Insert(ctx context.Context, args []any) (sqldal.Rows, error) {
	return s.Query(ctx, args)
}

func (s *stmt) Close() error {
	return nil
}

// rowsAdapter exposes pgx.Rows through the layer's engine-neutral Rows.
type rowsAdapter struct {
	rows pgx.Rows
}

func (r *rowsAdapter) Columns() ([]string, error) {
	fields := r.rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, fd := range fields {
		cols[i] = string(fd.Name)
	}
	return cols, nil
}

func (r *rowsAdapter) Next() bool {
	return r.rows.Next()
}

func (r *rowsAdapter) Scan(dest ...any) error {
	return r.rows.Scan(dest...)
}

func (r *rowsAdapter) Err() error {
	return r.rows.Err()
}

func (r *rowsAdapter) Close() error {
	r.rows.Close()
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

var _ sqldal.Driver = (*Driver)(nil)
