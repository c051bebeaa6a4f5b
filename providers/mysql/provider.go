// Package mysql registers the go-sql-driver/mysql provider under "mysql"
// and "mariadb", and the same driver with the TiDB dialect under "tidb".
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/Konsultn-Engineering/ensemble/connector"
	"github.com/Konsultn-Engineering/ensemble/database"
	"github.com/Konsultn-Engineering/ensemble/dialect"
)

type Provider struct {
	dialect dialect.Dialect
}

func init() {
	connector.Register("mysql", &Provider{dialect: dialect.NewMySQLDialect()})
	connector.Register("mariadb", &Provider{dialect: dialect.NewMySQLDialect()})
	connector.Register("tidb", &Provider{dialect: dialect.NewTiDBDialect()})
}

// DriverConfig translates a connector config into a driver config. A URL is
// read as a driver DSN, with an optional mysql:// prefix.
//
// Found rows are reported instead of changed rows so that an update writing
// identical values still counts as affecting its row.
func DriverConfig(cfg connector.Config) (*mysql.Config, error) {
	var mc *mysql.Config
	if cfg.URL != "" {
		parsed, err := mysql.ParseDSN(strings.TrimPrefix(cfg.URL, "mysql://"))
		if err != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", err)
		}
		mc = parsed
	} else {
		mc = mysql.NewConfig()
		mc.User = cfg.Username
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		port := cfg.Port
		if port == 0 {
			port = 3306
		}
		mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(port))
		mc.DBName = cfg.Database
		if len(cfg.Params) > 0 {
			mc.Params = make(map[string]string, len(cfg.Params))
			for k, v := range cfg.Params {
				mc.Params[k] = v
			}
		}
	}
	mc.ParseTime = true
	mc.ClientFoundRows = true
	if cfg.ConnectTimeout > 0 {
		mc.Timeout = cfg.ConnectTimeout
	}
	return mc, nil
}

func (p *Provider) Connect(_ context.Context, cfg connector.Config) (connector.Connection, error) {
	mc, err := DriverConfig(cfg)
	if err != nil {
		return nil, err
	}
	drv, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, err
	}
	db := sql.OpenDB(drv)
	connector.ApplyPool(db, cfg.Pool)

	return connector.NewConnection(database.NewSQLPool(db), p.Dialect(), func() connector.ConnectionStats {
		return connector.SQLStats(db)
	}), nil
}

func (p *Provider) Dialect() dialect.Dialect {
	return p.dialect
}

// DuplicateEntry reports whether err is MySQL error 1062.
func DuplicateEntry(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1062
}
