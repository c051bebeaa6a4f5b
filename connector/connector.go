// Package connector turns a Config into a live connection pool through a
// registry of driver providers.
package connector

import (
	"context"
	"fmt"
	"sync"

	"github.com/Konsultn-Engineering/ensemble/database"
	"github.com/Konsultn-Engineering/ensemble/dialect"
)

// Connection is an open pool together with the dialect its SQL is rendered in.
type Connection interface {
	Pool() database.Pool
	Dialect() dialect.Dialect
	Health(ctx context.Context) error
	Stats() ConnectionStats
	Close() error
}

type Connector interface {
	Connect(ctx context.Context) (Connection, error)
	Config() Config
}

// NewConnection assembles a Connection from its parts. stats may be nil.
func NewConnection(pool database.Pool, d dialect.Dialect, stats func() ConnectionStats) Connection {
	return &connection{pool: pool, dialect: d, stats: stats}
}

type connection struct {
	pool    database.Pool
	dialect dialect.Dialect
	stats   func() ConnectionStats

	closeOnce sync.Once
	closeErr  error
}

func (c *connection) Pool() database.Pool      { return c.pool }
func (c *connection) Dialect() dialect.Dialect { return c.dialect }

func (c *connection) Health(ctx context.Context) error {
	if err := c.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%s health check: %w", c.dialect.Name(), err)
	}
	return nil
}

func (c *connection) Stats() ConnectionStats {
	if c.stats == nil {
		return ConnectionStats{}
	}
	return c.stats()
}

func (c *connection) Close() error {
	c.closeOnce.Do(func() { c.closeErr = c.pool.Close() })
	return c.closeErr
}
