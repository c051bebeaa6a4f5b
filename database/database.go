// Package database is the contract between the execution layer and a
// connection pool: exclusive connection checkout, row queries returning
// ordered maps, and statements returning affected-row counts.
package database

import (
	"context"

	"github.com/Konsultn-Engineering/ensemble/value"
)

// Querier runs statements. Rows come back as value maps keyed by column
// name, in column order.
type Querier interface {
	Query(ctx context.Context, query string, args []value.Value) ([]value.Value, error)
	Exec(ctx context.Context, query string, args []value.Value) (Result, error)
}

// Conn is a connection checked out of a Pool for exclusive use. Release
// returns it; calling Release more than once is a no-op.
type Conn interface {
	Querier
	Begin(ctx context.Context) (Tx, error)
	Release()
}

type Tx interface {
	Querier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type Pool interface {
	Acquire(ctx context.Context) (Conn, error)
	Ping(ctx context.Context) error
	Close() error
}

type Result struct {
	RowsAffected int64
	// LastInsertID is zero when the driver does not report one.
	LastInsertID int64
}
