package session

import (
	"errors"
	"fmt"
)

var (
	// ErrReadOnly is matched by every *ReadOnlyError.
	ErrReadOnly = errors.New("session: read-only session")
	// ErrNoSession is returned by every operation on NoSession.
	ErrNoSession = errors.New("session: no active session")
	// ErrTxNotActive is returned when a session is built over a finished transaction.
	ErrTxNotActive = errors.New("session: transaction is not active")
	// ErrInvalidKey is returned for a nil generated key selector.
	ErrInvalidKey = errors.New("session: invalid generated key selector")
	// ErrKeyNotRetrievable is matched by every *KeyNotRetrievableError.
	ErrKeyNotRetrievable = errors.New("session: generated key not retrievable")
	// ErrTooManyRows is matched by every *TooManyRowsError.
	ErrTooManyRows = errors.New("session: too many rows")
	// ErrCursorConsumed is returned when a cursor is traversed twice.
	ErrCursorConsumed = errors.New("session: cursor already consumed")
)

// ReadOnlyError reports a mutating statement issued on a read-only session.
type ReadOnlyError struct {
	Template string
}

func (e *ReadOnlyError) Error() string {
	return fmt.Sprintf("session: cannot execute %q in a read-only session", e.Template)
}

func (e *ReadOnlyError) Unwrap() error { return ErrReadOnly }

// TooManyRowsError is returned by Single when the query yields more than one row.
type TooManyRowsError struct {
	Expected int
	Actual   int
}

func (e *TooManyRowsError) Error() string {
	return fmt.Sprintf("session: too many rows (expected %d, actual %d)", e.Expected, e.Actual)
}

func (e *TooManyRowsError) Unwrap() error { return ErrTooManyRows }

// KeyNotRetrievableError is returned when an update produced no generated key row.
type KeyNotRetrievableError struct {
	Template string
}

func (e *KeyNotRetrievableError) Error() string {
	return fmt.Sprintf("session: failed to retrieve auto-generated key value for %q", e.Template)
}

func (e *KeyNotRetrievableError) Unwrap() error { return ErrKeyNotRetrievable }
