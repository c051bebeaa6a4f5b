package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Konsultn-Engineering/ensemble/database"
	"github.com/Konsultn-Engineering/ensemble/dialect"
	"github.com/Konsultn-Engineering/ensemble/ormerr"
	"github.com/Konsultn-Engineering/ensemble/value"
)

// Tx runs statements inside one database transaction.
type Tx struct {
	e  *Engine
	tx database.Tx
}

// Transaction runs fn inside a transaction on a single connection. The
// transaction commits when fn returns nil and rolls back otherwise.
func (e *Engine) Transaction(ctx context.Context, fn func(*Tx) error) (err error) {
	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return ormerr.Connection(err)
	}
	defer conn.Release()

	dtx, err := conn.Begin(ctx)
	if err != nil {
		return ormerr.Database("BEGIN", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = dtx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(&Tx{e: e, tx: dtx}); err != nil {
		if rbErr := dtx.Rollback(ctx); rbErr != nil {
			e.logger.WarnContext(ctx, "rollback failed", slog.Any("error", rbErr))
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := dtx.Commit(ctx); err != nil {
		return ormerr.Database("COMMIT", err)
	}
	return nil
}

func (t *Tx) Dialect() dialect.Dialect { return t.e.dialect }

func (t *Tx) ExecuteRows(ctx context.Context, query string, args []value.Value) ([]value.Value, error) {
	ctx, cancel := t.e.bound(ctx)
	defer cancel()
	var rows []value.Value
	err := t.e.run(ctx, query, args, func() (int, error) {
		var err error
		rows, err = t.tx.Query(ctx, query, args)
		return len(rows), err
	})
	return rows, err
}

func (t *Tx) ExecuteAffecting(ctx context.Context, query string, args []value.Value) (int64, error) {
	ctx, cancel := t.e.bound(ctx)
	defer cancel()
	var affected int64
	err := t.e.run(ctx, query, args, func() (int, error) {
		res, err := t.tx.Exec(ctx, query, args)
		affected = res.RowsAffected
		return int(affected), err
	})
	return affected, err
}

func (t *Tx) ExecuteInsert(ctx context.Context, query string, args []value.Value) (value.Value, error) {
	ctx, cancel := t.e.bound(ctx)
	defer cancel()
	var id value.Value
	err := t.e.run(ctx, query, args, func() (int, error) {
		var err error
		id, err = insert(ctx, t.tx, t.e.dialect, query, args)
		return 1, err
	})
	return id, err
}
