package query

import (
	"context"
	"fmt"
	"reflect"

	"github.com/Konsultn-Engineering/ensemble/engine"
	"github.com/Konsultn-Engineering/ensemble/ormerr"
	"github.com/Konsultn-Engineering/ensemble/relation"
	"github.com/Konsultn-Engineering/ensemble/value"
	"github.com/Konsultn-Engineering/ensemble/visitor"
)

// Get runs the select and decodes every row, then loads the relations
// requested with With, one query per relation.
func (b *Builder[T]) Get(ctx context.Context) ([]*T, error) {
	exec, err := b.begin(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := b.rows(ctx, exec)
	if err != nil {
		return nil, err
	}

	records := make([]*T, len(rows))
	parents := make([]reflect.Value, len(rows))
	for i, row := range rows {
		rec := new(T)
		rv := reflect.ValueOf(rec).Elem()
		if err := b.meta.DecodeStruct(row, rv); err != nil {
			return nil, fmt.Errorf("decode %s row %d: %w", b.meta.Name, i, err)
		}
		records[i], parents[i] = rec, rv
	}

	if len(b.with) > 0 {
		if err := relation.Load(ctx, exec, b.meta, parents, b.with...); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// First is Get limited to one row. No row is ErrNotFound.
func (b *Builder[T]) First(ctx context.Context) (*T, error) {
	b.Limit(1)
	records, err := b.Get(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: %w", b.table, ormerr.ErrNotFound)
	}
	return records[0], nil
}

// Rows runs the select and returns the raw row maps, for projections that
// do not fit T.
func (b *Builder[T]) Rows(ctx context.Context) ([]value.Value, error) {
	exec, err := b.begin(ctx)
	if err != nil {
		return nil, err
	}
	return b.rows(ctx, exec)
}

// Count runs SELECT COUNT(*) with the builder's joins and predicates.
func (b *Builder[T]) Count(ctx context.Context) (int64, error) {
	exec, err := b.begin(ctx)
	if err != nil {
		return 0, err
	}
	stmt := b.selectStmt()
	stmt.Count = true
	query, args, err := visitor.Build(exec.Dialect(), stmt)
	if err != nil {
		return 0, err
	}
	rows, err := exec.ExecuteRows(ctx, query, args)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 || rows[0].Map() == nil || rows[0].Map().Len() == 0 {
		return 0, fmt.Errorf("count on %s returned no value", b.table)
	}
	m := rows[0].Map()
	v, _ := m.Get(m.Keys()[0])
	if n, ok := v.AsInt64(); ok {
		return n, nil
	}
	var n int64
	if err := value.Decode(v, &n); err != nil {
		return 0, fmt.Errorf("count on %s: %w", b.table, err)
	}
	return n, nil
}

func (b *Builder[T]) rows(ctx context.Context, exec engine.Executor) ([]value.Value, error) {
	query, args, err := visitor.Build(exec.Dialect(), b.selectStmt())
	if err != nil {
		return nil, err
	}
	return exec.ExecuteRows(ctx, query, args)
}
