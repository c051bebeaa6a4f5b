// Package query is the fluent builder over the clause model. A builder is
// created per query, mutated by chained calls and consumed by exactly one
// terminal call; reusing it afterwards fails with ErrInvalidQuery.
//
// Misuse detected while chaining is collected and returned by the terminal
// call before any SQL is rendered.
package query

import (
	"context"
	"strings"

	"github.com/Konsultn-Engineering/ensemble/ast"
	"github.com/Konsultn-Engineering/ensemble/dialect"
	"github.com/Konsultn-Engineering/ensemble/engine"
	"github.com/Konsultn-Engineering/ensemble/ormerr"
	"github.com/Konsultn-Engineering/ensemble/schema"
	"github.com/Konsultn-Engineering/ensemble/value"
	"github.com/Konsultn-Engineering/ensemble/visitor"
)

// Builder assembles one statement against the table of T.
type Builder[T any] struct {
	meta     *schema.EntityMeta
	exec     engine.Executor
	table    string
	columns  []ast.Node
	joins    []*ast.JoinClause
	where    *ast.WhereClause
	orderBy  []*ast.OrderByClause
	limit    *int
	offset   *int
	with     []string
	errors   []error
	consumed bool
}

// New starts a query on the table of T.
func New[T any]() *Builder[T] {
	b := &Builder[T]{where: &ast.WhereClause{}}
	meta, err := schema.For[T]()
	if err != nil {
		b.AddError(err)
		return b
	}
	b.meta = meta
	b.table = meta.TableName
	return b
}

// From retargets the builder at another table. Rows are still decoded as T.
func (b *Builder[T]) From(table string) *Builder[T] {
	b.table = table
	return b
}

// Using runs the terminal call on exec instead of the executor carried by
// the context or the process-wide engine.
func (b *Builder[T]) Using(exec engine.Executor) *Builder[T] {
	b.exec = exec
	return b
}

// Select restricts the selected columns. Each entry is "column",
// "table.column" or either form followed by " AS alias".
func (b *Builder[T]) Select(columns ...string) *Builder[T] {
	for _, spec := range columns {
		table, name, alias := parseColumnString(spec)
		b.columns = append(b.columns, &ast.Column{Table: table, Name: name, Alias: alias})
	}
	return b
}

// Join adds an inner join on first <op> second.
func (b *Builder[T]) Join(table, first, op, second string) *Builder[T] {
	b.joins = append(b.joins, ast.JoinOn(ast.JoinInner, table, first, ast.ParseOperator(op), second))
	return b
}

func (b *Builder[T]) LeftJoin(table, first, op, second string) *Builder[T] {
	b.joins = append(b.joins, ast.JoinOn(ast.JoinLeft, table, first, ast.ParseOperator(op), second))
	return b
}

// OrderBy appends an ordering. dir is "asc" or "desc" in any case; anything
// else panics.
func (b *Builder[T]) OrderBy(column, dir string) *Builder[T] {
	b.orderBy = append(b.orderBy, ast.OrderBy(column, ast.ParseDirection(dir)))
	return b
}

func (b *Builder[T]) Limit(n int) *Builder[T] {
	b.limit = &n
	return b
}

func (b *Builder[T]) Offset(n int) *Builder[T] {
	b.offset = &n
	return b
}

// With requests eager loading of relations by Go field name or snake_case
// name. Requesting a relation twice loads it once.
func (b *Builder[T]) With(relations ...string) *Builder[T] {
	for _, name := range relations {
		if !b.wants(name) {
			b.with = append(b.with, name)
		}
	}
	return b
}

func (b *Builder[T]) wants(name string) bool {
	for _, w := range b.with {
		if w == name {
			return true
		}
		if b.meta != nil {
			a, _ := b.meta.Relation(w)
			c, _ := b.meta.Relation(name)
			if a != nil && a == c {
				return true
			}
		}
	}
	return false
}

// AddError records a misuse error surfaced by the terminal call.
func (b *Builder[T]) AddError(err error) {
	if err != nil {
		b.errors = append(b.errors, err)
	}
}

func (b *Builder[T]) Errors() []error {
	return b.errors
}

func (b *Builder[T]) firstError() error {
	if len(b.errors) > 0 {
		return b.errors[0]
	}
	return nil
}

// begin marks the builder consumed, runs the terminal's own checks and
// resolves the executor. Nothing reaches the database when a check fails.
func (b *Builder[T]) begin(ctx context.Context, checks ...func() error) (engine.Executor, error) {
	if b.consumed {
		return nil, ormerr.InvalidQuery("builder for %s already executed", b.table)
	}
	b.consumed = true
	if err := b.firstError(); err != nil {
		return nil, err
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return nil, err
		}
	}
	if b.exec != nil {
		return b.exec, nil
	}
	return engine.From(ctx)
}

func (b *Builder[T]) limitClause() *ast.LimitClause {
	if b.limit == nil && b.offset == nil {
		return nil
	}
	return &ast.LimitClause{Count: b.limit, Offset: b.offset}
}

func (b *Builder[T]) selectStmt() *ast.SelectStmt {
	stmt := &ast.SelectStmt{
		Columns: b.columns,
		From:    ast.NewTable(b.table),
		Joins:   b.joins,
		Where:   b.where,
		OrderBy: b.orderBy,
		Limit:   b.limitClause(),
	}
	// joined columns would otherwise shadow the record's own
	if len(stmt.Columns) == 0 && len(b.joins) > 0 {
		stmt.Columns = []ast.Node{&ast.Column{Table: b.table, Name: "*"}}
	}
	return stmt
}

// ToSQL renders the select the builder would run, without consuming it.
func (b *Builder[T]) ToSQL(d dialect.Dialect) (string, []value.Value, error) {
	if err := b.firstError(); err != nil {
		return "", nil, err
	}
	return visitor.Build(d, b.selectStmt())
}

// parseColumnString splits "table.column AS alias"; any part may be empty.
func parseColumnString(spec string) (table, name, alias string) {
	if idx := strings.Index(strings.ToUpper(spec), " AS "); idx > 0 {
		alias = strings.TrimSpace(spec[idx+4:])
		spec = strings.TrimSpace(spec[:idx])
	}
	if idx := strings.LastIndexByte(spec, '.'); idx > 0 {
		return spec[:idx], spec[idx+1:], alias
	}
	return "", spec, alias
}
