package query

import (
	"context"
	"fmt"
	"sort"

	"github.com/Konsultn-Engineering/ensemble/ast"
	"github.com/Konsultn-Engineering/ensemble/ormerr"
	"github.com/Konsultn-Engineering/ensemble/value"
	"github.com/Konsultn-Engineering/ensemble/visitor"
)

// Insert inserts one row and returns its generated primary key, Null when
// the database reports none. After From retargets the builder, RETURNING is
// left out and only a last insert id is reported. values is a *value.Map, a map[string]any or a
// record of type T; a record's zero auto-increment key is left to the
// database. Inserts cannot be scoped: predicates, joins, limit or offset on
// the builder fail with ErrInvalidQuery.
func (b *Builder[T]) Insert(ctx context.Context, values any) (value.Value, error) {
	exec, err := b.begin(ctx, b.unscoped)
	if err != nil {
		return value.Null(), err
	}
	row, err := b.columnValues(values, true)
	if err != nil {
		return value.Null(), err
	}

	stmt := &ast.InsertStmt{Table: ast.NewTable(b.table)}
	if row.Len() > 0 {
		nodes := make([]ast.Node, 0, row.Len())
		row.Range(func(col string, v value.Value) bool {
			stmt.Columns = append(stmt.Columns, col)
			nodes = append(nodes, &ast.Value{Val: v})
			return true
		})
		stmt.Values = [][]ast.Node{nodes}
	}
	if b.meta != nil && b.table == b.meta.TableName {
		stmt.Returning = []string{b.meta.PrimaryKey.DBName}
	}

	query, args, err := visitor.Build(exec.Dialect(), stmt)
	if err != nil {
		return value.Null(), err
	}
	return exec.ExecuteInsert(ctx, query, args)
}

// Update sets the given columns on every matching row and returns the
// affected row count as reported by the driver.
func (b *Builder[T]) Update(ctx context.Context, values any) (int64, error) {
	exec, err := b.begin(ctx, b.mutationScope)
	if err != nil {
		return 0, err
	}
	row, err := b.columnValues(values, false)
	if err != nil {
		return 0, err
	}
	if row.Len() == 0 {
		return 0, ormerr.InvalidQuery("update on %s without values", b.table)
	}

	stmt := &ast.UpdateStmt{
		Table: ast.NewTable(b.table),
		Joins: b.joins,
		Where: b.where,
		Limit: b.limitClause(),
	}
	row.Range(func(col string, v value.Value) bool {
		stmt.Set = append(stmt.Set, ast.Assignment{Column: col, Value: &ast.Value{Val: v}})
		return true
	})

	query, args, err := visitor.Build(exec.Dialect(), stmt)
	if err != nil {
		return 0, err
	}
	return exec.ExecuteAffecting(ctx, query, args)
}

// Delete removes every matching row and returns the affected row count.
func (b *Builder[T]) Delete(ctx context.Context) (int64, error) {
	exec, err := b.begin(ctx, b.mutationScope)
	if err != nil {
		return 0, err
	}
	stmt := &ast.DeleteStmt{
		Table: ast.NewTable(b.table),
		Joins: b.joins,
		Where: b.where,
		Limit: b.limitClause(),
	}
	query, args, err := visitor.Build(exec.Dialect(), stmt)
	if err != nil {
		return 0, err
	}
	return exec.ExecuteAffecting(ctx, query, args)
}

// Truncate empties the table. Predicates are ignored.
func (b *Builder[T]) Truncate(ctx context.Context) error {
	exec, err := b.begin(ctx)
	if err != nil {
		return err
	}
	query, args, err := visitor.Build(exec.Dialect(), &ast.TruncateStmt{Table: ast.NewTable(b.table)})
	if err != nil {
		return err
	}
	_, err = exec.ExecuteAffecting(ctx, query, args)
	return err
}

func (b *Builder[T]) unscoped() error {
	switch {
	case !b.where.Empty():
		return ormerr.InvalidQuery("insert into %s cannot have a where clause", b.table)
	case len(b.joins) > 0:
		return ormerr.InvalidQuery("insert into %s cannot have a join", b.table)
	case b.limit != nil || b.offset != nil:
		return ormerr.InvalidQuery("insert into %s cannot have a limit or offset", b.table)
	}
	return nil
}

func (b *Builder[T]) mutationScope() error {
	if len(b.joins) > 0 && (b.limit != nil || b.offset != nil) {
		return ormerr.InvalidQuery("limit or offset cannot be combined with a join when changing %s", b.table)
	}
	return nil
}

// columnValues normalizes the accepted value shapes into an ordered map.
// map[string]any keys are sorted so rendering stays deterministic.
func (b *Builder[T]) columnValues(values any, insert bool) (*value.Map, error) {
	switch x := values.(type) {
	case *value.Map:
		if x == nil {
			return value.NewMap(), nil
		}
		return x, nil
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := value.NewMap()
		for _, k := range keys {
			v, err := value.Encode(x[k])
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", k, err)
			}
			out.Set(k, v)
		}
		return out, nil
	case nil:
		return value.NewMap(), nil
	}

	if b.meta == nil {
		return nil, ormerr.InvalidQuery("cannot encode %T without a record type", values)
	}
	row, err := b.meta.Encode(values)
	if err != nil {
		return nil, err
	}
	if insert && b.meta.PrimaryKey.Incrementing() {
		if pk, _ := row.Get(b.meta.PrimaryKey.DBName); isZeroKey(pk) {
			row.Delete(b.meta.PrimaryKey.DBName)
		}
	}
	return row, nil
}

func isZeroKey(v value.Value) bool {
	if v.IsNull() {
		return true
	}
	n, ok := v.AsInt64()
	return ok && n == 0
}
