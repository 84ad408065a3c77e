package sqldal

import (
	"context"
	"fmt"
	"slices"
	"testing"
)

// fakeEngine is an in-memory Driver and Conn recording the operations driven
// through it, for exercising the statement and transaction machinery without
// a real engine.
type fakeEngine struct {
	ops          []string
	queued       []*fakeRows
	rowsAffected int64
	lastKeys     []string
	lastArgs     []any
	connClosed   bool

	// injected close failures
	stmtCloseErr error
	connCloseErr error
}

func (e *fakeEngine) op(s string) {
	e.ops = append(e.ops, s)
}

func (e *fakeEngine) Open(ctx context.Context, readOnly bool) (Conn, error) {
	return e, nil
}

func (e *fakeEngine) Accessors() *Registry {
	r := NewRegistry()
	RegisterFor(r, passThrough[int64], rawAs[int64])
	RegisterFor(r, passThrough[string], rawAs[string])
	RegisterFor(r, passThrough[bool], rawAs[bool])
	return r
}

func passThrough[T any](v T) (any, error) { return v, nil }

func rawAs[T any](raw any) (T, error) {
	v, ok := raw.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("raw value %T is not %T", raw, zero)
	}
	return v, nil
}

func (e *fakeEngine) DatabaseType() string { return "fake" }

func (e *fakeEngine) Version(ctx context.Context) (string, error) { return "1.2.3", nil }

func (e *fakeEngine) Prepare(ctx context.Context, sql string, keys []string) (Stmt, error) {
	e.op("PREPARE " + sql)
	e.lastKeys = slices.Clone(keys)
	return &fakeStmt{engine: e, sql: sql}, nil
}

func (e *fakeEngine) Begin(ctx context.Context) error    { e.op("BEGIN"); return nil }
func (e *fakeEngine) Commit(ctx context.Context) error   { e.op("COMMIT"); return nil }
func (e *fakeEngine) Rollback(ctx context.Context) error { e.op("ROLLBACK"); return nil }

func (e *fakeEngine) Savepoint(ctx context.Context, name string) error {
	e.op("SAVEPOINT " + name)
	return nil
}

func (e *fakeEngine) Release(ctx context.Context, name string) error {
	e.op("RELEASE " + name)
	return nil
}

func (e *fakeEngine) RollbackTo(ctx context.Context, name string) error {
	e.op("ROLLBACK TO " + name)
	return nil
}

func (e *fakeEngine) Close() error {
	e.op("CLOSE CONN")
	e.connClosed = true
	return e.connCloseErr
}

// queue arranges for the next Query or Insert to return the given result.
func (e *fakeEngine) queue(cols []string, rows ...[]any) {
	e.queued = append(e.queued, &fakeRows{cols: cols, data: rows})
}

func (e *fakeEngine) popRows() *fakeRows {
	if len(e.queued) == 0 {
		return &fakeRows{}
	}
	r := e.queued[0]
	e.queued = e.queued[1:]
	return r
}

type fakeStmt struct {
	engine *fakeEngine
	sql    string
}

func (s *fakeStmt) Exec(ctx context.Context, args []any) (int64, error) {
	s.engine.op("EXEC " + s.sql)
	s.engine.lastArgs = slices.Clone(args)
	return s.engine.rowsAffected, nil
}

func (s *fakeStmt) Query(ctx context.Context, args []any) (Rows, error) {
	s.engine.op("QUERY " + s.sql)
	s.engine.lastArgs = slices.Clone(args)
	return s.engine.popRows(), nil
}

func (s *fakeStmt) Insert(ctx context.Context, args []any) (Rows, error) {
	s.engine.op("INSERT " + s.sql)
	s.engine.lastArgs = slices.Clone(args)
	return s.engine.popRows(), nil
}

func (s *fakeStmt) Close() error {
	s.engine.op("CLOSE STMT")
	return s.engine.stmtCloseErr
}

type fakeRows struct {
	cols     []string
	data     [][]any
	pos      int
	closed   bool
	closeErr error
}

func (r *fakeRows) Columns() ([]string, error) { return r.cols, nil }

func (r *fakeRows) Next() bool {
	if r.closed || r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.pos-1]
	for i, d := range dest {
		*(d.(*any)) = row[i]
	}
	return nil
}

func (r *fakeRows) Err() error { return nil }

func (r *fakeRows) Close() error {
	r.closed = true
	return r.closeErr
}

func openFake(t *testing.T) (*fakeEngine, *Database) {
	t.Helper()
	engine := &fakeEngine{rowsAffected: 1}
	db, err := Open(context.Background(), engine)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return engine, db
}
