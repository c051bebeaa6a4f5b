package dialect

import (
	"github.com/Konsultn-Engineering/ensemble/ast"
	"github.com/Konsultn-Engineering/ensemble/value"
)

type MySQL struct{}

func NewMySQLDialect() Dialect {
	return &MySQL{}
}

func (m MySQL) Name() string { return "mysql" }

func (m MySQL) QuoteIdentifier(name string) string {
	return quoteWith("`", name)
}

func (m MySQL) Placeholder(n int) string {
	return "?"
}

func (m MySQL) RenderValue(v value.Value) string {
	return renderLiteral(v, func(h string) string { return "X'" + h + "'" })
}

// Operator spells ILIKE as LIKE; the default collations compare
// case-insensitively.
func (m MySQL) Operator(op ast.Operator) string {
	switch op {
	case ast.OpILike:
		return string(ast.OpLike)
	case ast.OpNotILike:
		return string(ast.OpNotLike)
	}
	return string(op)
}

func (m MySQL) SupportsReturning() bool     { return false }
func (m MySQL) SupportsMutationLimit() bool { return true }
func (m MySQL) NoLimit() string             { return "18446744073709551615" }

func (m MySQL) TruncateStatement(quotedTable string) string {
	return "TRUNCATE TABLE " + quotedTable
}

func (m MySQL) EmptyInsertValues() string { return "() VALUES ()" }

func (m MySQL) MutationJoins() JoinStyle { return JoinsInline }
