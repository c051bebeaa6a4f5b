package dialect

import (
	"strconv"

	"github.com/Konsultn-Engineering/ensemble/ast"
	"github.com/Konsultn-Engineering/ensemble/value"
)

type Postgres struct{}

func NewPostgresDialect() Dialect {
	return &Postgres{}
}

func (p Postgres) Name() string { return "postgres" }

func (p Postgres) QuoteIdentifier(name string) string {
	return quoteWith(`"`, name)
}

func (p Postgres) Placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func (Postgres) RenderValue(v value.Value) string {
	return renderLiteral(v, func(h string) string { return `'\x` + h + `'::bytea` })
}

func (p Postgres) Operator(op ast.Operator) string { return string(op) }

func (p Postgres) SupportsReturning() bool     { return true }
func (p Postgres) SupportsMutationLimit() bool { return false }
func (p Postgres) NoLimit() string             { return "" }

func (p Postgres) TruncateStatement(quotedTable string) string {
	return "TRUNCATE TABLE " + quotedTable
}

func (p Postgres) EmptyInsertValues() string { return "DEFAULT VALUES" }

func (p Postgres) MutationJoins() JoinStyle { return JoinsFrom }
