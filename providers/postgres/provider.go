// Package postgres registers the pgx pool provider under "postgres".
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Konsultn-Engineering/ensemble/connector"
	"github.com/Konsultn-Engineering/ensemble/database"
	"github.com/Konsultn-Engineering/ensemble/dialect"
)

type Provider struct{}

func init() {
	connector.Register("postgres", &Provider{})
	connector.Register("pgx", &Provider{})
}

// PoolConfig translates a connector config into pgxpool settings.
func PoolConfig(cfg connector.Config) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN("postgres"))
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool := cfg.Pool.WithDefaults()
	poolCfg.MaxConns = int32(pool.MaxOpen)
	poolCfg.MinConns = int32(min(pool.MaxIdle, pool.MaxOpen))
	poolCfg.MaxConnLifetime = pool.MaxLifetime
	poolCfg.MaxConnIdleTime = pool.MaxIdleTime
	if pool.HealthCheckFreq > 0 {
		poolCfg.HealthCheckPeriod = pool.HealthCheckFreq
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}
	return poolCfg, nil
}

func (p *Provider) Connect(ctx context.Context, cfg connector.Config) (connector.Connection, error) {
	poolCfg, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	return connector.NewConnection(database.NewPgxPool(pool), p.Dialect(), func() connector.ConnectionStats {
		return connector.PgxStats(pool.Stat())
	}), nil
}

func (p *Provider) Dialect() dialect.Dialect {
	return dialect.NewPostgresDialect()
}
