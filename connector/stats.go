package connector

import (
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ConnectionStats represents database connection pool statistics.
type ConnectionStats struct {
	MaxOpen         int
	OpenConnections int
	InUse           int
	Idle            int
	WaitCount       int64
}

func SQLStats(db *sql.DB) ConnectionStats {
	s := db.Stats()
	return ConnectionStats{
		MaxOpen:         s.MaxOpenConnections,
		OpenConnections: s.OpenConnections,
		InUse:           s.InUse,
		Idle:            s.Idle,
		WaitCount:       s.WaitCount,
	}
}

func PgxStats(s *pgxpool.Stat) ConnectionStats {
	return ConnectionStats{
		MaxOpen:         int(s.MaxConns()),
		OpenConnections: int(s.TotalConns()),
		InUse:           int(s.AcquiredConns()),
		Idle:            int(s.IdleConns()),
		WaitCount:       s.EmptyAcquireCount(),
	}
}

// ApplyPool configures a database/sql handle from pool settings.
func ApplyPool(db *sql.DB, p PoolConfig) {
	p = p.WithDefaults()
	db.SetMaxOpenConns(p.MaxOpen)
	db.SetMaxIdleConns(p.MaxIdle)
	db.SetConnMaxLifetime(p.MaxLifetime)
	db.SetConnMaxIdleTime(p.MaxIdleTime)
}
