// Package engine runs rendered statements against a connection pool. Each
// call checks out one connection and returns it when the call ends.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/Konsultn-Engineering/ensemble/ast"
	"github.com/Konsultn-Engineering/ensemble/connector"
	"github.com/Konsultn-Engineering/ensemble/database"
	"github.com/Konsultn-Engineering/ensemble/dialect"
	"github.com/Konsultn-Engineering/ensemble/ormerr"
	"github.com/Konsultn-Engineering/ensemble/value"
	"github.com/Konsultn-Engineering/ensemble/visitor"
)

// Executor runs statements. Both *Engine and *Tx implement it.
type Executor interface {
	Dialect() dialect.Dialect
	ExecuteRows(ctx context.Context, query string, args []value.Value) ([]value.Value, error)
	ExecuteAffecting(ctx context.Context, query string, args []value.Value) (int64, error)
	ExecuteInsert(ctx context.Context, query string, args []value.Value) (value.Value, error)
}

type Engine struct {
	pool         database.Pool
	dialect      dialect.Dialect
	logger       *slog.Logger
	queryTimeout time.Duration
	closer       func() error
}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithQueryTimeout bounds every statement. Zero means no bound.
func WithQueryTimeout(d time.Duration) Option {
	return func(e *Engine) { e.queryTimeout = d }
}

func New(pool database.Pool, d dialect.Dialect, opts ...Option) *Engine {
	e := &Engine{
		pool:    pool,
		dialect: d,
		logger:  slog.Default(),
		closer:  pool.Close,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FromConnection wraps an open connector.Connection. The config's query
// timeout applies unless an option overrides it.
func FromConnection(conn connector.Connection, cfg connector.Config, opts ...Option) *Engine {
	opts = append([]Option{WithQueryTimeout(cfg.QueryTimeout)}, opts...)
	e := New(conn.Pool(), conn.Dialect(), opts...)
	e.closer = conn.Close
	return e
}

func (e *Engine) Dialect() dialect.Dialect { return e.dialect }
func (e *Engine) Pool() database.Pool      { return e.pool }
func (e *Engine) Logger() *slog.Logger     { return e.logger }

func (e *Engine) Close() error { return e.closer() }

// Render turns a statement into SQL in the engine's dialect.
func (e *Engine) Render(stmt ast.Node) (string, []value.Value, error) {
	return visitor.Build(e.dialect, stmt)
}

// ExecuteRows runs a row-returning statement.
func (e *Engine) ExecuteRows(ctx context.Context, query string, args []value.Value) ([]value.Value, error) {
	var rows []value.Value
	err := e.withConn(ctx, func(ctx context.Context, q database.Querier) error {
		return e.run(ctx, query, args, func() (int, error) {
			var err error
			rows, err = q.Query(ctx, query, args)
			return len(rows), err
		})
	})
	return rows, err
}

// ExecuteAffecting runs a statement and returns the number of rows the
// driver reports as affected.
func (e *Engine) ExecuteAffecting(ctx context.Context, query string, args []value.Value) (int64, error) {
	var affected int64
	err := e.withConn(ctx, func(ctx context.Context, q database.Querier) error {
		return e.run(ctx, query, args, func() (int, error) {
			res, err := q.Exec(ctx, query, args)
			affected = res.RowsAffected
			return int(affected), err
		})
	})
	return affected, err
}

// ExecuteInsert runs an insert and returns the generated key. Dialects with
// RETURNING read the first returned column; the others report the driver's
// last insert id. The result is Null when neither yields a key.
func (e *Engine) ExecuteInsert(ctx context.Context, query string, args []value.Value) (value.Value, error) {
	var id value.Value
	err := e.withConn(ctx, func(ctx context.Context, q database.Querier) error {
		return e.run(ctx, query, args, func() (int, error) {
			var err error
			id, err = insert(ctx, q, e.dialect, query, args)
			return 1, err
		})
	})
	return id, err
}

func insert(ctx context.Context, q database.Querier, d dialect.Dialect, query string, args []value.Value) (value.Value, error) {
	if d.SupportsReturning() {
		rows, err := q.Query(ctx, query, args)
		if err != nil || len(rows) == 0 {
			return value.Null(), err
		}
		return firstColumn(rows[0]), nil
	}
	res, err := q.Exec(ctx, query, args)
	if err != nil || res.LastInsertID == 0 {
		return value.Null(), err
	}
	return value.Int64(res.LastInsertID), nil
}

func firstColumn(row value.Value) value.Value {
	m := row.Map()
	if m == nil || m.Len() == 0 {
		return value.Null()
	}
	v, _ := m.Get(m.Keys()[0])
	return v
}

// withConn checks out a connection for the duration of fn.
func (e *Engine) withConn(ctx context.Context, fn func(context.Context, database.Querier) error) error {
	ctx, cancel := e.bound(ctx)
	defer cancel()
	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		e.logger.Warn("acquire connection failed", slog.Any("error", err))
		return ormerr.Connection(err)
	}
	defer conn.Release()
	return fn(ctx, conn)
}

// run executes one statement, logs it and wraps driver failures.
func (e *Engine) run(ctx context.Context, query string, args []value.Value, fn func() (int, error)) error {
	start := time.Now()
	n, err := fn()
	elapsed := time.Since(start)
	if err != nil {
		e.logger.WarnContext(ctx, "statement failed",
			slog.String("sql", query),
			slog.Int("bindings", len(args)),
			slog.Duration("duration", elapsed),
			slog.Any("error", err))
		return ormerr.Database(query, err)
	}
	e.logger.DebugContext(ctx, "statement",
		slog.String("sql", query),
		slog.Int("bindings", len(args)),
		slog.Duration("duration", elapsed),
		slog.Int("rows", n))
	return nil
}

func (e *Engine) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.queryTimeout > 0 {
		return context.WithTimeout(ctx, e.queryTimeout)
	}
	return ctx, func() {}
}

var (
	_ Executor = (*Engine)(nil)
	_ Executor = (*Tx)(nil)
)
