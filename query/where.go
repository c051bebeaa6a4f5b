package query

import (
	"reflect"

	"github.com/Konsultn-Engineering/ensemble/ast"
	"github.com/Konsultn-Engineering/ensemble/ormerr"
	"github.com/Konsultn-Engineering/ensemble/value"
)

// whereWithOperator is the private helper behind every predicate method.
// List and range operators take a slice; unary operators ignore v.
func (b *Builder[T]) whereWithOperator(column string, op ast.Operator, v any, conn ast.Connective) *Builder[T] {
	if conn == ast.Or && b.where.Empty() {
		b.AddError(ormerr.InvalidQuery("or where on %s without a prior predicate", column))
		return b
	}

	var vals []value.Value
	switch op.Arity() {
	case ast.ArityUnary:
	case ast.ArityList, ast.ArityRange:
		list, err := encodeList(v)
		if err != nil {
			b.AddError(err)
			return b
		}
		vals = list
	default:
		ev, err := value.Encode(v)
		if err != nil {
			b.AddError(err)
			return b
		}
		vals = []value.Value{ev}
	}

	b.where.Add(conn, ast.Compare(column, op, vals...))
	return b
}

// Where adds column <op> v joined with AND. A malformed operator panics.
func (b *Builder[T]) Where(column, op string, v any) *Builder[T] {
	return b.whereWithOperator(column, ast.ParseOperator(op), v, ast.And)
}

// OrWhere adds column <op> v joined with OR. It requires a prior predicate.
func (b *Builder[T]) OrWhere(column, op string, v any) *Builder[T] {
	return b.whereWithOperator(column, ast.ParseOperator(op), v, ast.Or)
}

func (b *Builder[T]) WhereEq(column string, v any) *Builder[T] {
	return b.whereWithOperator(column, ast.OpEqual, v, ast.And)
}

func (b *Builder[T]) WhereNull(column string) *Builder[T] {
	return b.whereWithOperator(column, ast.OpIsNull, nil, ast.And)
}

func (b *Builder[T]) WhereNotNull(column string) *Builder[T] {
	return b.whereWithOperator(column, ast.OpIsNotNull, nil, ast.And)
}

// WhereIn takes any slice. An empty slice matches no rows.
func (b *Builder[T]) WhereIn(column string, values any) *Builder[T] {
	return b.whereWithOperator(column, ast.OpIn, values, ast.And)
}

func (b *Builder[T]) WhereNotIn(column string, values any) *Builder[T] {
	return b.whereWithOperator(column, ast.OpNotIn, values, ast.And)
}

func (b *Builder[T]) WhereBetween(column string, low, high any) *Builder[T] {
	return b.whereWithOperator(column, ast.OpBetween, []any{low, high}, ast.And)
}

// WhereGroup builds a parenthesized group on a fresh builder for the same
// table and joins it with AND. An empty group is dropped.
func (b *Builder[T]) WhereGroup(fn func(*Builder[T])) *Builder[T] {
	return b.group(fn, ast.And)
}

// OrWhereGroup is WhereGroup joined with OR.
func (b *Builder[T]) OrWhereGroup(fn func(*Builder[T])) *Builder[T] {
	if b.where.Empty() {
		b.AddError(ormerr.InvalidQuery("or where group on %s without a prior predicate", b.table))
		return b
	}
	return b.group(fn, ast.Or)
}

func (b *Builder[T]) group(fn func(*Builder[T]), conn ast.Connective) *Builder[T] {
	sub := &Builder[T]{meta: b.meta, table: b.table, where: &ast.WhereClause{}}
	fn(sub)
	for _, err := range sub.errors {
		b.AddError(err)
	}
	if !sub.where.Empty() {
		b.where.Add(conn, &ast.GroupedExpr{Where: sub.where})
	}
	return b
}

// encodeList flattens a slice argument into values. A non-slice becomes a
// one-element list; byte slices stay scalar.
func encodeList(v any) ([]value.Value, error) {
	switch x := v.(type) {
	case []value.Value:
		return x, nil
	case nil:
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	if (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) && rv.Type().Elem().Kind() != reflect.Uint8 {
		out := make([]value.Value, rv.Len())
		for i := range out {
			ev, err := value.Encode(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return out, nil
	}
	ev, err := value.Encode(v)
	if err != nil {
		return nil, err
	}
	return []value.Value{ev}, nil
}
