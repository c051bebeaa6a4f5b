package ast

import (
	"strings"

	"github.com/Konsultn-Engineering/ensemble/value"
)

// NewColumn parses "name" or "table.name".
func NewColumn(ref string) *Column {
	if idx := strings.LastIndexByte(ref, '.'); idx != -1 {
		return &Column{Table: ref[:idx], Name: ref[idx+1:]}
	}
	return &Column{Name: ref}
}

func NewTable(name string) *Table {
	return &Table{Name: name}
}

func AllColumns() []Node {
	return []Node{&Column{Name: "*"}}
}

func CountAll() *Function {
	return &Function{Name: "COUNT", Args: AllColumns()}
}

// Compare builds a predicate on a column. vals must match the operator's
// arity: none for unary operators, one for binary, any number for lists and
// two for ranges.
func Compare(column string, op Operator, vals ...value.Value) Node {
	col := NewColumn(column)
	switch op.Arity() {
	case ArityUnary:
		return &UnaryExpr{Operator: op, Operand: col}
	case ArityList, ArityRange:
		return &BinaryExpr{Left: col, Operator: op, Right: &Array{Values: vals}}
	}
	var v value.Value
	if len(vals) > 0 {
		v = vals[0]
	}
	return &BinaryExpr{Left: col, Operator: op, Right: &Value{Val: v}}
}

// Eq is Compare with the equality operator.
func Eq(column string, v value.Value) Node {
	return Compare(column, OpEqual, v)
}

func In(column string, vals []value.Value) Node {
	return Compare(column, OpIn, vals...)
}

// JoinOn joins table on first <op> second, both column references.
func JoinOn(kind JoinType, table, first string, op Operator, second string) *JoinClause {
	return &JoinClause{
		JoinType: kind,
		Table:    NewTable(table),
		On:       &BinaryExpr{Left: NewColumn(first), Operator: op, Right: NewColumn(second)},
	}
}

func OrderBy(column string, dir Direction) *OrderByClause {
	return &OrderByClause{Expr: NewColumn(column), Desc: dir == Desc}
}
