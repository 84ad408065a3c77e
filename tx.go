// Copyright 2024-2025 George Steel
// SPDX-License-Identifier: MIT

package sqldal

import (
	"context"
	"fmt"
)

// A Transaction is one node in a strictly nested chain rooted at the
// database's [Database.Begin]. Nested nodes hold an engine savepoint:
// committing one releases the savepoint but only becomes durable when the
// root commits, and rolling one back reverts to the savepoint leaving the
// parent open and usable.
//
// A transaction is active from creation until its single commit or rollback;
// either again, or any use afterward, returns [ErrTxDone]. While a nested
// child is open, the parent rejects operations with [ErrTxOpen].
type Transaction struct {
	db         *Database
	parent     *Transaction
	child      *Transaction
	savepoint  string // empty for the root
	done       bool
	statements map[*Statement]struct{}
}

func newTransaction(db *Database, parent *Transaction, savepoint string) *Transaction {
	return &Transaction{
		db:         db,
		parent:     parent,
		savepoint:  savepoint,
		statements: make(map[*Statement]struct{}),
	}
}

func (tx *Transaction) active() error {
	if tx.db.closed {
		return fmt.Errorf("database: %w", ErrClosed)
	}
	if tx.done {
		return ErrTxDone
	}
	if tx.child != nil {
		return fmt.Errorf("nested: %w", ErrTxOpen)
	}
	return nil
}

// Begin opens a nested transaction through an engine savepoint.
func (tx *Transaction) Begin(ctx context.Context) (*Transaction, error) {
	if err := tx.active(); err != nil {
		return nil, err
	}
	tx.db.savepoints++
	name := fmt.Sprintf("sqldal_%d", tx.db.savepoints)
	if err := tx.db.conn.Savepoint(ctx, name); err != nil {
		return nil, fmt.Errorf("creating savepoint: %w", err)
	}
	child := newTransaction(tx.db, tx, name)
	tx.child = child
	return child, nil
}

// Prepare compiles a query for execution in this transaction.
func (tx *Transaction) Prepare(ctx context.Context, q Query) (*Statement, error) {
	if err := tx.active(); err != nil {
		return nil, err
	}
	return prepare(ctx, tx.db, tx, q)
}

// Commit finalizes the transaction. A root commit makes all changes since
// Begin durable; a nested commit releases its savepoint provisionally, to be
// finalized or discarded with its ancestors. Statements prepared from the
// transaction are force-closed first.
func (tx *Transaction) Commit(ctx context.Context) error {
	if err := tx.active(); err != nil {
		return err
	}
	closeErr := tx.closeStatements()
	if tx.savepoint == "" {
		if err := tx.db.conn.Commit(ctx); err != nil {
			return fmt.Errorf("committing transaction: %w", err)
		}
		tx.db.tx = nil
	} else {
		if err := tx.db.conn.Release(ctx, tx.savepoint); err != nil {
			return fmt.Errorf("releasing savepoint: %w", err)
		}
		tx.parent.child = nil
	}
	tx.done = true
	return closeErr
}

// Rollback discards the transaction's changes. A root rollback discards
// everything since Begin; a nested rollback reverts to its own savepoint,
// leaving the parent's earlier state intact and the parent usable.
func (tx *Transaction) Rollback(ctx context.Context) error {
	if err := tx.active(); err != nil {
		return err
	}
	closeErr := tx.closeStatements()
	if tx.savepoint == "" {
		if err := tx.db.conn.Rollback(ctx); err != nil {
			return fmt.Errorf("rolling back transaction: %w", err)
		}
		tx.db.tx = nil
	} else {
		if err := tx.db.conn.RollbackTo(ctx, tx.savepoint); err != nil {
			return fmt.Errorf("rolling back to savepoint: %w", err)
		}
		tx.parent.child = nil
	}
	tx.done = true
	return closeErr
}

// Close rolls the transaction back unless it already completed, cascading
// through any open descendants innermost-first. It is a no-op on a nil or
// completed transaction, so it is safe to defer unconditionally:
//
//	tx, err := db.Begin(ctx)
//	if err != nil { ... }
//	defer tx.Close(ctx)
func (tx *Transaction) Close(ctx context.Context) error {
	if tx == nil || tx.done {
		return nil
	}
	var first error
	if tx.child != nil {
		first = tx.child.Close(ctx)
	}
	if err := tx.Rollback(ctx); err != nil && first == nil {
		first = err
	}
	return first
}

func (tx *Transaction) closeStatements() error {
	var first error
	for stmt := range tx.statements {
		if err := stmt.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
