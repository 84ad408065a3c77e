package sqldal

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestOpenReadsInfo(t *testing.T) {
	_, db := openFake(t)
	want := DatabaseInfo{Type: "fake", Version: "1.2.3"}
	if db.Info() != want {
		t.Errorf("Info() = %v, want %v", db.Info(), want)
	}
}

func TestRootTransactionCommit(t *testing.T) {
	ctx := context.Background()
	engine, db := openFake(t)

	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatal(err)
	}
	if want := []string{"BEGIN", "COMMIT"}; !reflect.DeepEqual(engine.ops, want) {
		t.Errorf("ops = %v, want %v", engine.ops, want)
	}

	// The chain is closed, so the database is usable again.
	if _, err := db.Begin(ctx); err != nil {
		t.Errorf("begin after commit: %v", err)
	}
}

func TestTransactionSingleCompletion(t *testing.T) {
	ctx := context.Background()
	_, db := openFake(t)

	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(ctx); !errors.Is(err, ErrTxDone) {
		t.Errorf("second commit: got %v, want ErrTxDone", err)
	}
	if err := tx.Rollback(ctx); !errors.Is(err, ErrTxDone) {
		t.Errorf("rollback after commit: got %v, want ErrTxDone", err)
	}
	if _, err := tx.Begin(ctx); !errors.Is(err, ErrTxDone) {
		t.Errorf("begin on done transaction: got %v, want ErrTxDone", err)
	}
}

func TestNestedTransactionSavepoints(t *testing.T) {
	ctx := context.Background()
	engine, db := openFake(t)

	root, err := db.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}

	committed, err := root.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := committed.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	discarded, err := root.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := discarded.Rollback(ctx); err != nil {
		t.Fatal(err)
	}

	// Rolling a child back leaves the parent usable.
	if err := root.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"BEGIN",
		"SAVEPOINT sqldal_1",
		"RELEASE sqldal_1",
		"SAVEPOINT sqldal_2",
		"ROLLBACK TO sqldal_2",
		"COMMIT",
	}
	if !reflect.DeepEqual(engine.ops, want) {
		t.Errorf("ops = %v, want %v", engine.ops, want)
	}
}

func TestParentBlockedWhileChildOpen(t *testing.T) {
	ctx := context.Background()
	_, db := openFake(t)

	root, err := db.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	child, err := root.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if err := root.Commit(ctx); !errors.Is(err, ErrTxOpen) {
		t.Errorf("parent commit with open child: got %v, want ErrTxOpen", err)
	}
	if _, err := root.Prepare(ctx, MustQuery("SELECT 1", nil)); !errors.Is(err, ErrTxOpen) {
		t.Errorf("parent prepare with open child: got %v, want ErrTxOpen", err)
	}
	if _, err := db.Prepare(ctx, MustQuery("SELECT 1", nil)); !errors.Is(err, ErrTxOpen) {
		t.Errorf("database prepare with open chain: got %v, want ErrTxOpen", err)
	}
	if _, err := db.Begin(ctx); !errors.Is(err, ErrTxOpen) {
		t.Errorf("database begin with open chain: got %v, want ErrTxOpen", err)
	}

	if err := child.Commit(ctx); err != nil {
		t.Fatal(err)
	}
	if err := root.Commit(ctx); err != nil {
		t.Errorf("parent commit after child completed: %v", err)
	}
}

func TestReadOnlyRejectsBegin(t *testing.T) {
	ctx := context.Background()
	engine := &fakeEngine{}
	db, err := OpenReadOnly(ctx, engine)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if _, err := db.Begin(ctx); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("got %v, want ErrReadOnly", err)
	}
}

func TestTransactionCloseCascades(t *testing.T) {
	ctx := context.Background()
	engine, db := openFake(t)

	root, err := db.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	child, err := root.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := child.Begin(ctx); err != nil {
		t.Fatal(err)
	}

	if err := root.Close(ctx); err != nil {
		t.Fatal(err)
	}
	want := []string{
		"BEGIN",
		"SAVEPOINT sqldal_1",
		"SAVEPOINT sqldal_2",
		"ROLLBACK TO sqldal_2",
		"ROLLBACK TO sqldal_1",
		"ROLLBACK",
	}
	if !reflect.DeepEqual(engine.ops, want) {
		t.Errorf("ops = %v, want %v", engine.ops, want)
	}

	// Close after completion and on nil are no-ops.
	if err := root.Close(ctx); err != nil {
		t.Errorf("second close: %v", err)
	}
	var none *Transaction
	if err := none.Close(ctx); err != nil {
		t.Errorf("nil close: %v", err)
	}
}

func TestCommitClosesStatements(t *testing.T) {
	ctx := context.Background()
	_, db := openFake(t)

	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	stmt, err := tx.Prepare(ctx, MustQuery("UPDATE t SET a = 1", nil))
	if err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := stmt.Update(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("statement survived its transaction: got %v, want ErrClosed", err)
	}
}

func TestDatabaseClose(t *testing.T) {
	ctx := context.Background()
	engine := &fakeEngine{}
	db, err := Open(ctx, engine)
	if err != nil {
		t.Fatal(err)
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}
	if !engine.connClosed {
		t.Error("connection left open")
	}
	want := []string{"BEGIN", "ROLLBACK", "CLOSE CONN"}
	if !reflect.DeepEqual(engine.ops, want) {
		t.Errorf("ops = %v, want %v", engine.ops, want)
	}

	if err := tx.Commit(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("commit on closed database: got %v, want ErrClosed", err)
	}
	if _, err := db.Prepare(ctx, MustQuery("SELECT 1", nil)); !errors.Is(err, ErrClosed) {
		t.Errorf("prepare on closed database: got %v, want ErrClosed", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestDatabaseCloseBestEffort(t *testing.T) {
	ctx := context.Background()
	engine := &fakeEngine{
		stmtCloseErr: errors.New("stmt close failed"),
		connCloseErr: errors.New("conn close failed"),
	}
	db, err := Open(ctx, engine)
	if err != nil {
		t.Fatal(err)
	}
	stmt, err := db.Prepare(ctx, MustQuery("SELECT 1", nil))
	if err != nil {
		t.Fatal(err)
	}
	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}

	// Every owned resource is still released: the statement fails first and
	// is the error surfaced, the transaction still rolls back, and the
	// connection still closes.
	err = db.Close()
	if !errors.Is(err, engine.stmtCloseErr) {
		t.Errorf("got %v, want the statement's close failure", err)
	}
	if !engine.connClosed {
		t.Error("connection left open")
	}
	want := []string{"PREPARE SELECT 1", "BEGIN", "CLOSE STMT", "ROLLBACK", "CLOSE CONN"}
	if !reflect.DeepEqual(engine.ops, want) {
		t.Errorf("ops = %v, want %v", engine.ops, want)
	}
	if _, err := stmt.Binder("x"); !errors.Is(err, ErrClosed) {
		t.Errorf("statement left usable: got %v, want ErrClosed", err)
	}
	if err := tx.Commit(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("transaction left usable: got %v, want ErrClosed", err)
	}
}
