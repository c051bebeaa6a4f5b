// Package pq registers a database/sql Postgres provider backed by lib/pq
// under "pq".
package pq

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/Konsultn-Engineering/ensemble/connector"
	"github.com/Konsultn-Engineering/ensemble/database"
	"github.com/Konsultn-Engineering/ensemble/dialect"
)

type Provider struct{}

func init() {
	connector.Register("pq", &Provider{})
}

func (p *Provider) Connect(_ context.Context, cfg connector.Config) (connector.Connection, error) {
	dsn := cfg.URL
	if dsn == "" {
		dsn = connector.NewDSNBuilder("postgres").
			Auth(cfg.Username, cfg.Password).
			Host(cfg.Host, cfg.Port).
			Database(cfg.Database).
			Params(cfg.Params).
			Param("sslmode", cfg.SSLMode).
			WithPostgresDefaults().
			Build()
	}

	pqConnector, err := pq.NewConnector(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pq dsn: %w", err)
	}
	db := sql.OpenDB(pqConnector)
	connector.ApplyPool(db, cfg.Pool)

	return connector.NewConnection(database.NewSQLPool(db), p.Dialect(), func() connector.ConnectionStats {
		return connector.SQLStats(db)
	}), nil
}

func (p *Provider) Dialect() dialect.Dialect {
	return dialect.NewPostgresDialect()
}

// UniqueViolation reports whether err carries the Postgres unique_violation
// code (23505).
func UniqueViolation(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "23505"
}
