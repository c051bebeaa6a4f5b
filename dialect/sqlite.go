package dialect

import (
	"github.com/Konsultn-Engineering/ensemble/ast"
	"github.com/Konsultn-Engineering/ensemble/value"
)

type SQLite struct{}

func NewSQLiteDialect() Dialect {
	return &SQLite{}
}

func (s SQLite) Name() string { return "sqlite" }

func (s SQLite) QuoteIdentifier(name string) string {
	return quoteWith(`"`, name)
}

func (s SQLite) Placeholder(n int) string { return "?" }

func (s SQLite) RenderValue(v value.Value) string {
	return renderLiteral(v, func(h string) string { return "X'" + h + "'" })
}

// Operator spells ILIKE as LIKE, which is case-insensitive for ASCII.
func (s SQLite) Operator(op ast.Operator) string {
	switch op {
	case ast.OpILike:
		return string(ast.OpLike)
	case ast.OpNotILike:
		return string(ast.OpNotLike)
	}
	return string(op)
}

// SupportsReturning is false: RETURNING needs SQLite 3.35 and the insert id
// is available from the driver either way.
func (s SQLite) SupportsReturning() bool     { return false }
func (s SQLite) SupportsMutationLimit() bool { return false }
func (s SQLite) NoLimit() string             { return "-1" }

// TruncateStatement uses DELETE; SQLite has no TRUNCATE.
func (s SQLite) TruncateStatement(quotedTable string) string {
	return "DELETE FROM " + quotedTable
}

func (s SQLite) EmptyInsertValues() string { return "DEFAULT VALUES" }

func (s SQLite) MutationJoins() JoinStyle { return JoinsUnsupported }
