package ast

import (
	"fmt"
	"strings"
)

type Operator string

// Comparison
const (
	OpEqual              Operator = "="
	OpNotEqual           Operator = "<>"
	OpLessThan           Operator = "<"
	OpLessThanOrEqual    Operator = "<="
	OpGreaterThan        Operator = ">"
	OpGreaterThanOrEqual Operator = ">="
)

// Pattern Matching
const (
	OpLike     Operator = "LIKE"
	OpNotLike  Operator = "NOT LIKE"
	OpILike    Operator = "ILIKE"
	OpNotILike Operator = "NOT ILIKE"
)

// Set Operations
const (
	OpIn    Operator = "IN"
	OpNotIn Operator = "NOT IN"
)

// Null Operations
const (
	OpIsNull    Operator = "IS NULL"
	OpIsNotNull Operator = "IS NOT NULL"
)

// Range Operations
const (
	OpBetween    Operator = "BETWEEN"
	OpNotBetween Operator = "NOT BETWEEN"
)

// Arity tells the renderer what an operator expects on its right side.
type Arity uint8

const (
	ArityBinary Arity = iota // one bound value or column
	ArityUnary               // nothing
	ArityList                // a parenthesized list of bound values
	ArityRange               // exactly two bound values
)

func (op Operator) Arity() Arity {
	switch op {
	case OpIsNull, OpIsNotNull:
		return ArityUnary
	case OpIn, OpNotIn:
		return ArityList
	case OpBetween, OpNotBetween:
		return ArityRange
	}
	return ArityBinary
}

// Negated reports the negative forms of list and range operators.
func (op Operator) Negated() bool {
	return op == OpNotIn || op == OpNotBetween
}

var operatorAliases = map[string]Operator{
	"=":           OpEqual,
	"==":          OpEqual,
	"!=":          OpNotEqual,
	"<>":          OpNotEqual,
	"<":           OpLessThan,
	"<=":          OpLessThanOrEqual,
	">":           OpGreaterThan,
	">=":          OpGreaterThanOrEqual,
	"LIKE":        OpLike,
	"NOT LIKE":    OpNotLike,
	"ILIKE":       OpILike,
	"NOT ILIKE":   OpNotILike,
	"IN":          OpIn,
	"NOT IN":      OpNotIn,
	"IS NULL":     OpIsNull,
	"NULL":        OpIsNull,
	"IS NOT NULL": OpIsNotNull,
	"NOT NULL":    OpIsNotNull,
	"BETWEEN":     OpBetween,
	"NOT BETWEEN": OpNotBetween,
}

// ParseOperator maps an operator string, in any case and with any inner
// spacing, to an Operator. It panics on anything else: operators are written
// by programmers, not read from data.
func ParseOperator(s string) Operator {
	key := strings.ToUpper(strings.Join(strings.Fields(s), " "))
	op, ok := operatorAliases[key]
	if !ok {
		panic(fmt.Sprintf("ast: invalid operator %q", s))
	}
	return op
}

// Connective joins a predicate to the sibling before it.
type Connective string

const (
	And Connective = "AND"
	Or  Connective = "OR"
)

type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// ParseDirection accepts asc, ascending, desc and descending in any case and
// panics on anything else.
func ParseDirection(s string) Direction {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ASC", "ASCENDING":
		return Asc
	case "DESC", "DESCENDING":
		return Desc
	}
	panic(fmt.Sprintf("ast: invalid direction %q", s))
}
