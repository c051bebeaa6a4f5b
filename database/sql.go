package database

import (
	"context"
	"database/sql"
	"sync"

	"github.com/Konsultn-Engineering/ensemble/value"
)

// SQLPool implements Pool for *sql.DB.
type SQLPool struct {
	db *sql.DB
}

func NewSQLPool(db *sql.DB) *SQLPool {
	return &SQLPool{db: db}
}

func (p *SQLPool) Acquire(ctx context.Context) (Conn, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &SQLConn{conn: conn}, nil
}

func (p *SQLPool) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }
func (p *SQLPool) Close() error                   { return p.db.Close() }

// DB exposes the underlying handle for pool tuning and statistics.
func (p *SQLPool) DB() *sql.DB { return p.db }

// sqlQuerier is the subset shared by *sql.Conn and *sql.Tx.
type sqlQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type SQLConn struct {
	conn *sql.Conn
	once sync.Once
}

func (c *SQLConn) Query(ctx context.Context, query string, args []value.Value) ([]value.Value, error) {
	return sqlQuery(ctx, c.conn, query, args)
}

func (c *SQLConn) Exec(ctx context.Context, query string, args []value.Value) (Result, error) {
	return sqlExec(ctx, c.conn, query, args)
}

func (c *SQLConn) Begin(ctx context.Context) (Tx, error) {
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &SQLTx{tx: tx}, nil
}

// Release returns the connection to the pool.
func (c *SQLConn) Release() {
	c.once.Do(func() { _ = c.conn.Close() })
}

type SQLTx struct {
	tx *sql.Tx
}

func (t *SQLTx) Query(ctx context.Context, query string, args []value.Value) ([]value.Value, error) {
	return sqlQuery(ctx, t.tx, query, args)
}

func (t *SQLTx) Exec(ctx context.Context, query string, args []value.Value) (Result, error) {
	return sqlExec(ctx, t.tx, query, args)
}

func (t *SQLTx) Commit(context.Context) error   { return t.tx.Commit() }
func (t *SQLTx) Rollback(context.Context) error { return t.tx.Rollback() }

func sqlQuery(ctx context.Context, q sqlQuerier, query string, args []value.Value) ([]value.Value, error) {
	rows, err := q.QueryContext(ctx, query, value.ToDriverArgs(args)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	dest := make([]any, len(types))
	ptrs := make([]any, len(types))
	for i := range dest {
		ptrs[i] = &dest[i]
	}

	var out []value.Value
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := value.NewMap()
		for i, ct := range types {
			row.Set(ct.Name(), value.FromColumn(dest[i], ct.DatabaseTypeName()))
		}
		out = append(out, value.MapOf(row))
	}
	return out, rows.Err()
}

func sqlExec(ctx context.Context, q sqlQuerier, query string, args []value.Value) (Result, error) {
	res, err := q.ExecContext(ctx, query, value.ToDriverArgs(args)...)
	if err != nil {
		return Result{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Result{}, err
	}
	// lib/pq reports no insert id; treat that as zero
	id, _ := res.LastInsertId()
	return Result{RowsAffected: affected, LastInsertID: id}, nil
}

var (
	_ Pool = (*SQLPool)(nil)
	_ Conn = (*SQLConn)(nil)
	_ Tx   = (*SQLTx)(nil)
)
