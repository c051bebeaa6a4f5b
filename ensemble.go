// Package ensemble maps Go structs to relational tables. Records are plain
// structs; their table, primary key, columns and relations are derived from
// the type and its `db` tags.
//
//	type User struct {
//		ID        int64
//		Email     string `db:"required"`
//		Posts     relation.HasMany[Post]
//		CreatedAt time.Time
//	}
//
//	err := ensemble.Setup(ctx, cfg)
//	users, err := ensemble.Query[User]().Where("email", "like", "%@example.com").With("Posts").Get(ctx)
package ensemble

import (
	"context"
	"log/slog"

	"github.com/Konsultn-Engineering/ensemble/connector"
	"github.com/Konsultn-Engineering/ensemble/engine"
	"github.com/Konsultn-Engineering/ensemble/ormerr"
	"github.com/Konsultn-Engineering/ensemble/query"
)

type options struct {
	logger *slog.Logger
}

type Option func(*options)

// WithLogger sets the logger used for connecting and for statement logs.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Connect opens a connection for cfg and wraps it in an engine without
// installing it process-wide. The driver's provider package must be imported.
func Connect(ctx context.Context, cfg connector.Config, opts ...Option) (*engine.Engine, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	conn, err := connector.Open(ctx, cfg, connector.WithLogger(o.logger))
	if err != nil {
		return nil, ormerr.Connection(err)
	}
	return engine.FromConnection(conn, cfg, engine.WithLogger(o.logger)), nil
}

// Setup connects and installs the process-wide engine used by every call
// whose context carries no executor. A second Setup before Shutdown fails
// with ErrAlreadyInitialized without opening a connection.
func Setup(ctx context.Context, cfg connector.Config, opts ...Option) error {
	if _, err := engine.Current(); err == nil {
		return ormerr.ErrAlreadyInitialized
	}
	e, err := Connect(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	if err := engine.Setup(e); err != nil {
		_ = e.Close()
		return err
	}
	return nil
}

// Shutdown closes the process-wide engine.
func Shutdown() error {
	return engine.Shutdown()
}

// Transaction runs fn in a transaction on the executor resolved from ctx.
// Record operations and builders given the context passed to fn run inside
// the transaction. fn's error rolls back.
func Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	exec, err := engine.From(ctx)
	if err != nil {
		return err
	}
	e, ok := exec.(*engine.Engine)
	if !ok {
		// already inside a transaction
		return fn(ctx)
	}
	return e.Transaction(ctx, func(tx *engine.Tx) error {
		return fn(engine.WithContext(ctx, tx))
	})
}

// Query starts a builder on the table of T.
func Query[T any]() *query.Builder[T] {
	return query.New[T]()
}
