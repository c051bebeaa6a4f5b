package database

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Konsultn-Engineering/ensemble/value"
)

// PgxPool implements Pool for pgxpool.Pool.
type PgxPool struct {
	pool *pgxpool.Pool
}

func NewPgxPool(pool *pgxpool.Pool) *PgxPool {
	return &PgxPool{pool: pool}
}

func (p *PgxPool) Acquire(ctx context.Context) (Conn, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &PgxConn{conn: conn}, nil
}

func (p *PgxPool) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PgxPool) Close() error {
	p.pool.Close()
	return nil
}

// Stat exposes the pool statistics.
func (p *PgxPool) Stat() *pgxpool.Stat {
	return p.pool.Stat()
}

// pgxQuerier is the subset shared by pooled connections and transactions.
type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PgxConn struct {
	conn *pgxpool.Conn
	once sync.Once
}

func (c *PgxConn) Query(ctx context.Context, query string, args []value.Value) ([]value.Value, error) {
	return pgxQuery(ctx, c.conn, query, args)
}

func (c *PgxConn) Exec(ctx context.Context, query string, args []value.Value) (Result, error) {
	return pgxExec(ctx, c.conn, query, args)
}

func (c *PgxConn) Begin(ctx context.Context) (Tx, error) {
	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &PgxTx{tx: tx}, nil
}

func (c *PgxConn) Release() {
	c.once.Do(c.conn.Release)
}

type PgxTx struct {
	tx pgx.Tx
}

func (t *PgxTx) Query(ctx context.Context, query string, args []value.Value) ([]value.Value, error) {
	return pgxQuery(ctx, t.tx, query, args)
}

func (t *PgxTx) Exec(ctx context.Context, query string, args []value.Value) (Result, error) {
	return pgxExec(ctx, t.tx, query, args)
}

func (t *PgxTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *PgxTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

func pgxQuery(ctx context.Context, q pgxQuerier, query string, args []value.Value) ([]value.Value, error) {
	rows, err := q.Query(ctx, query, value.ToDriverArgs(args)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []value.Value
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := value.NewMap()
		for i, fd := range fields {
			row.Set(fd.Name, pgxColumn(fd, vals[i]))
		}
		out = append(out, value.MapOf(row))
	}
	return out, rows.Err()
}

// pgxColumn keeps json and jsonb documents as text; pgx hands them over
// already decoded into maps, slices or scalars.
func pgxColumn(fd pgconn.FieldDescription, src any) value.Value {
	switch fd.DataTypeOID {
	case pgtype.JSONOID, pgtype.JSONBOID:
		return value.FromJSONColumn(src)
	}
	return value.FromDriver(src)
}

func pgxExec(ctx context.Context, q pgxQuerier, query string, args []value.Value) (Result, error) {
	tag, err := q.Exec(ctx, query, value.ToDriverArgs(args)...)
	if err != nil {
		return Result{}, err
	}
	return Result{RowsAffected: tag.RowsAffected()}, nil
}

var (
	_ Pool = (*PgxPool)(nil)
	_ Conn = (*PgxConn)(nil)
	_ Tx   = (*PgxTx)(nil)
)
