// Copyright 2024-2025 George Steel
// SPDX-License-Identifier: MIT

package sqldal

import "errors"

// Failure categories surfaced by this package. All errors returned by
// sqldal match one of these with [errors.Is]; engine failures are wrapped
// with %w and can be recovered with [errors.As].
var (
	// ErrClosed is returned when using a closed database, statement or cursor.
	ErrClosed = errors.New("closed")

	// ErrNoType is returned when binding a parameter with no declared type.
	ErrNoType = errors.New("no type defined for parameter")

	// ErrNoAccessor is returned when no accessor is registered for a declared type.
	ErrNoAccessor = errors.New("no accessor defined for type")

	// ErrNoVariant is returned when no query variant matches the database
	// and no default was supplied.
	ErrNoVariant = errors.New("no applicable query variant")

	// ErrTypeConflict is returned when concatenated query fragments declare
	// different types for the same name.
	ErrTypeConflict = errors.New("conflicting types defined for name")

	// ErrNoColumn is returned when reading a column the cursor does not map.
	ErrNoColumn = errors.New("no such column")

	// ErrNoRow is returned when reading from a cursor not positioned on a row.
	ErrNoRow = errors.New("cursor is not positioned on a row")

	// ErrListSize is returned when binding a list parameter with the wrong
	// number of values.
	ErrListSize = errors.New("list parameter size mismatch")

	// ErrTxOpen is returned when operating on a database or transaction
	// while a younger transaction is still open.
	ErrTxOpen = errors.New("a transaction is already open")

	// ErrTxDone is returned on a second commit or rollback, or when using a
	// transaction after its terminal transition.
	ErrTxDone = errors.New("transaction already committed or rolled back")

	// ErrReadOnly is returned when starting a transaction on a read-only database.
	ErrReadOnly = errors.New("database is read-only")

	// ErrNoTransaction is returned when executing a write through a
	// statement not owned by an open transaction.
	ErrNoTransaction = errors.New("operation requires an open transaction")
)
