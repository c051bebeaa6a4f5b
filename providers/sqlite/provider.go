// Package sqlite registers the go-sqlite3 provider under "sqlite" and "sqlite3".
package sqlite

import (
	"context"
	"database/sql"
	"net/url"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Konsultn-Engineering/ensemble/connector"
	"github.com/Konsultn-Engineering/ensemble/database"
	"github.com/Konsultn-Engineering/ensemble/dialect"
)

type Provider struct{}

func init() {
	connector.Register("sqlite", &Provider{})
	connector.Register("sqlite3", &Provider{})
}

// DSN returns the file name go-sqlite3 opens. Foreign keys are switched on
// unless the params say otherwise.
func DSN(cfg connector.Config) string {
	if cfg.URL != "" {
		return strings.TrimPrefix(cfg.URL, "sqlite://")
	}
	q := url.Values{}
	q.Set("_foreign_keys", "on")
	for k, v := range cfg.Params {
		q.Set(k, v)
	}
	return "file:" + cfg.Database + "?" + q.Encode()
}

func (p *Provider) Connect(_ context.Context, cfg connector.Config) (connector.Connection, error) {
	db, err := sql.Open("sqlite3", DSN(cfg))
	if err != nil {
		return nil, err
	}
	connector.ApplyPool(db, cfg.Pool)
	// every connection to :memory: opens its own empty database
	if strings.Contains(cfg.Database, ":memory:") || strings.Contains(cfg.URL, ":memory:") {
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	}

	return connector.NewConnection(database.NewSQLPool(db), p.Dialect(), func() connector.ConnectionStats {
		return connector.SQLStats(db)
	}), nil
}

func (p *Provider) Dialect() dialect.Dialect {
	return dialect.NewSQLiteDialect()
}
