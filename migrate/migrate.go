// Package migrate applies and rolls back schema migrations, recording what
// ran in a migrations table grouped by batch.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Konsultn-Engineering/ensemble/engine"
	"github.com/Konsultn-Engineering/ensemble/query"
)

// Table holds one row per applied migration.
const Table = "migrations"

var ErrIrreversible = errors.New("migration has no down step")

// Migration is one named schema change. Up and Down run inside the
// transaction they are handed.
type Migration struct {
	Name string
	Up   func(ctx context.Context, exec engine.Executor) error
	Down func(ctx context.Context, exec engine.Executor) error
}

// Record is a row of the migrations table.
type Record struct {
	ID        int64
	Migration string
	Batch     int64
}

func (Record) TableName() string { return Table }

type Option func(*Migrator)

func WithLogger(l *slog.Logger) Option {
	return func(m *Migrator) { m.logger = l }
}

// Migrator runs registered migrations in registration order.
type Migrator struct {
	engine     *engine.Engine
	logger     *slog.Logger
	migrations []Migration
	byName     map[string]int
}

func New(e *engine.Engine, opts ...Option) *Migrator {
	m := &Migrator{
		engine: e,
		logger: slog.Default(),
		byName: make(map[string]int),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds migrations. Names must be unique and every migration needs
// an Up step.
func (m *Migrator) Register(migrations ...Migration) error {
	for _, mig := range migrations {
		if mig.Name == "" {
			return errors.New("migration name is required")
		}
		if mig.Up == nil {
			return fmt.Errorf("migration %s: up step is required", mig.Name)
		}
		if _, ok := m.byName[mig.Name]; ok {
			return fmt.Errorf("migration %s registered twice", mig.Name)
		}
		m.byName[mig.Name] = len(m.migrations)
		m.migrations = append(m.migrations, mig)
	}
	return nil
}

// Run applies every registered migration not yet recorded. All migrations
// applied by one call share a batch number one above the highest recorded.
// Each migration runs in its own transaction together with its record, so a
// failure keeps the migrations applied before it. It returns the names of
// the applied migrations.
func (m *Migrator) Run(ctx context.Context) ([]string, error) {
	records, err := m.Status(ctx)
	if err != nil {
		return nil, err
	}
	applied := make(map[string]bool, len(records))
	var batch int64
	for _, r := range records {
		applied[r.Migration] = true
		batch = max(batch, r.Batch)
	}
	batch++

	var ran []string
	for _, mig := range m.migrations {
		if applied[mig.Name] {
			continue
		}
		start := time.Now()
		err := m.engine.Transaction(ctx, func(tx *engine.Tx) error {
			if err := mig.Up(ctx, tx); err != nil {
				return err
			}
			_, err := query.New[Record]().Using(tx).Insert(ctx, &Record{Migration: mig.Name, Batch: batch})
			return err
		})
		if err != nil {
			return ran, fmt.Errorf("migrate %s: %w", mig.Name, err)
		}
		m.logger.InfoContext(ctx, "migration applied",
			slog.String("migration", mig.Name),
			slog.Int64("batch", batch),
			slog.Duration("duration", time.Since(start)))
		ran = append(ran, mig.Name)
	}
	return ran, nil
}

// Rollback undoes the most recent batch, latest migration first, and
// returns the names of the reverted migrations.
func (m *Migrator) Rollback(ctx context.Context) ([]string, error) {
	records, err := m.Status(ctx)
	if err != nil || len(records) == 0 {
		return nil, err
	}
	var batch int64
	for _, r := range records {
		batch = max(batch, r.Batch)
	}

	var reverted []string
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		if r.Batch != batch {
			continue
		}
		idx, ok := m.byName[r.Migration]
		if !ok {
			return reverted, fmt.Errorf("rollback %s: migration is not registered", r.Migration)
		}
		mig := m.migrations[idx]
		if mig.Down == nil {
			return reverted, fmt.Errorf("rollback %s: %w", r.Migration, ErrIrreversible)
		}
		start := time.Now()
		err := m.engine.Transaction(ctx, func(tx *engine.Tx) error {
			if err := mig.Down(ctx, tx); err != nil {
				return err
			}
			_, err := query.New[Record]().Using(tx).WhereEq("id", r.ID).Delete(ctx)
			return err
		})
		if err != nil {
			return reverted, fmt.Errorf("rollback %s: %w", r.Migration, err)
		}
		m.logger.InfoContext(ctx, "migration rolled back",
			slog.String("migration", r.Migration),
			slog.Int64("batch", batch),
			slog.Duration("duration", time.Since(start)))
		reverted = append(reverted, r.Migration)
	}
	return reverted, nil
}

// Status creates the migrations table when missing and returns its rows in
// the order they were applied.
func (m *Migrator) Status(ctx context.Context) ([]Record, error) {
	if _, err := m.engine.ExecuteAffecting(ctx, createTable(m.engine.Dialect().Name()), nil); err != nil {
		return nil, fmt.Errorf("create %s table: %w", Table, err)
	}
	rows, err := query.New[Record]().Using(m.engine).OrderBy("id", "asc").Get(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Record, len(rows))
	for i, r := range rows {
		out[i] = *r
	}
	return out, nil
}

func createTable(dialect string) string {
	id := "id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY"
	switch dialect {
	case "postgres":
		id = "id BIGSERIAL PRIMARY KEY"
	case "sqlite":
		id = "id INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	return "CREATE TABLE IF NOT EXISTS " + Table + " (" + id +
		", migration VARCHAR(255) NOT NULL, batch INTEGER NOT NULL)"
}
