// Package dialect holds the per-database differences the renderer needs:
// placeholders, identifier quoting, operator spelling and a few statement
// forms.
package dialect

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/Konsultn-Engineering/ensemble/ast"
	"github.com/Konsultn-Engineering/ensemble/value"
)

type Dialect interface {
	Name() string
	QuoteIdentifier(name string) string
	// Placeholder returns the marker for the n-th bound parameter, from 1.
	Placeholder(n int) string
	// RenderValue renders v as a literal. Only used for debug previews.
	RenderValue(v value.Value) string
	Operator(op ast.Operator) string
	SupportsReturning() bool
	// SupportsMutationLimit reports whether UPDATE and DELETE accept LIMIT.
	SupportsMutationLimit() bool
	// NoLimit is the LIMIT argument meaning "all rows", for OFFSET without
	// LIMIT. Empty when OFFSET may stand alone.
	NoLimit() string
	TruncateStatement(quotedTable string) string
	// EmptyInsertValues is the tail of an INSERT that sets no columns.
	EmptyInsertValues() string
	MutationJoins() JoinStyle
}

// ByName returns the dialect for a driver or provider name.
func ByName(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pgx", "pq":
		return NewPostgresDialect(), nil
	case "mysql", "mariadb":
		return NewMySQLDialect(), nil
	case "tidb":
		return NewTiDBDialect(), nil
	case "sqlite", "sqlite3":
		return NewSQLiteDialect(), nil
	}
	return nil, fmt.Errorf("unknown dialect %q", name)
}

// renderLiteral renders the scalar forms shared by every dialect; binary
// renders through hexBlob.
func renderLiteral(v value.Value, hexBlob func(string) string) string {
	switch v.Kind() {
	case value.KindNull:
		return "NULL"
	case value.KindBool:
		b, _ := v.AsBool()
		if b {
			return "TRUE"
		}
		return "FALSE"
	case value.KindI32, value.KindI64:
		i, _ := v.AsInt64()
		return strconv.FormatInt(i, 10)
	case value.KindU32, value.KindU64:
		u, _ := v.AsUint64()
		return strconv.FormatUint(u, 10)
	case value.KindF32, value.KindF64:
		f, _ := v.AsFloat64()
		return strconv.FormatFloat(f, 'f', -1, 64)
	case value.KindString:
		s, _ := v.AsString()
		return quoteString(s)
	case value.KindBinary:
		b, _ := v.AsBinary()
		return hexBlob(hex.EncodeToString(b))
	case value.KindArray:
		parts := make([]string, len(v.Array()))
		for i, el := range v.Array() {
			parts[i] = renderLiteral(el, hexBlob)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case value.KindExt:
		return renderLiteral(v.Unwrap(), hexBlob)
	}
	// maps travel as JSON text
	return quoteString(fmt.Sprint(value.ToDriver(v)))
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteWith(q, name string) string {
	if name == "*" {
		return name
	}
	return q + strings.ReplaceAll(name, q, q+q) + q
}

// JoinStyle is how a dialect spells joins in UPDATE and DELETE.
type JoinStyle uint8

const (
	JoinsUnsupported JoinStyle = iota
	// JoinsInline: UPDATE t JOIN u ON ... SET ..., DELETE t FROM t JOIN u ON ...
	JoinsInline
	// JoinsFrom: UPDATE t SET ... FROM u WHERE ..., DELETE FROM t USING u WHERE ...
	JoinsFrom
)
