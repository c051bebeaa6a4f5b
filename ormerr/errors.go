// Package ormerr defines the error kinds returned across the ORM.
//
// Sentinels are matched with errors.Is, structured errors with errors.As:
//
//	if errors.Is(err, ormerr.ErrNotFound) { ... }
//	var dbErr *ormerr.DatabaseError
//	if errors.As(err, &dbErr) { ... }
package ormerr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports that a lookup expecting one row got none.
	ErrNotFound = errors.New("record not found")

	// ErrUniqueViolation reports that a statement expected to touch exactly one
	// row touched a different number of rows.
	ErrUniqueViolation = errors.New("unique violation")

	// ErrInvalidQuery reports builder misuse detected before any SQL was sent.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrNotInitialized is wrapped by ConnectionError when no pool was set up.
	ErrNotInitialized = errors.New("database connection not initialized")

	// ErrAlreadyInitialized is returned by a second setup of the process-wide pool.
	ErrAlreadyInitialized = errors.New("database connection already initialized")
)

// ConnectionError reports a failure to obtain a connection. It is never used for
// errors the database server returned.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return "connection error: " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// DatabaseError carries an error reported by the driver or the server while
// executing a statement. The original driver error stays reachable via Unwrap.
type DatabaseError struct {
	SQL string
	Err error
}

func (e *DatabaseError) Error() string {
	return "database error: " + e.Err.Error()
}

func (e *DatabaseError) Unwrap() error { return e.Err }

// RequiredError reports a required field left at its zero value on create.
type RequiredError struct {
	Field string
}

func (e *RequiredError) Error() string {
	return fmt.Sprintf("the %s field is required", e.Field)
}

// InvalidQuery returns an error wrapping ErrInvalidQuery with a formatted reason.
func InvalidQuery(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidQuery, fmt.Sprintf(format, args...))
}

// Connection wraps err as a ConnectionError unless it already is one.
func Connection(err error) error {
	if err == nil {
		return nil
	}
	var ce *ConnectionError
	if errors.As(err, &ce) {
		return err
	}
	return &ConnectionError{Err: err}
}

// Database wraps err as a DatabaseError for the given statement.
func Database(sql string, err error) error {
	if err == nil {
		return nil
	}
	var de *DatabaseError
	if errors.As(err, &de) {
		return err
	}
	return &DatabaseError{SQL: sql, Err: err}
}

// IsConnection reports whether err is a ConnectionError.
func IsConnection(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// IsDatabase reports whether err is a DatabaseError.
func IsDatabase(err error) bool {
	var de *DatabaseError
	return errors.As(err, &de)
}
