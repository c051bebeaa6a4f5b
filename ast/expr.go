package ast

import "github.com/Konsultn-Engineering/ensemble/value"

// Column references a column, optionally qualified by its table. The name
// "*" selects every column and is never quoted.
type Column struct {
	Table string
	Name  string
	Alias string
}

func (c *Column) Type() NodeType         { return NodeColumn }
func (c *Column) Accept(v Visitor) error { return v.VisitColumn(c) }

type Table struct {
	Schema string
	Name   string
	Alias  string
}

func (t *Table) Type() NodeType         { return NodeTable }
func (t *Table) Accept(v Visitor) error { return v.VisitTable(t) }

// Value is a single bound parameter.
type Value struct {
	Val value.Value
}

func (v *Value) Type() NodeType           { return NodeValue }
func (v *Value) Accept(vis Visitor) error { return vis.VisitValue(v) }

// Array is a list of bound parameters, rendered element-wise.
type Array struct {
	Values []value.Value
}

func (a *Array) Type() NodeType         { return NodeArray }
func (a *Array) Accept(v Visitor) error { return v.VisitArray(a) }

type Function struct {
	Name string
	Args []Node
}

func (f *Function) Type() NodeType         { return NodeFunction }
func (f *Function) Accept(v Visitor) error { return v.VisitFunction(f) }

// GroupedExpr is a parenthesized predicate subtree with its own scope.
type GroupedExpr struct {
	Where *WhereClause
}

func (g *GroupedExpr) Type() NodeType         { return NodeGroupedExpr }
func (g *GroupedExpr) Accept(v Visitor) error { return v.VisitGroupedExpr(g) }

type BinaryExpr struct {
	Left     Node
	Operator Operator
	Right    Node
}

func (b *BinaryExpr) Type() NodeType         { return NodeBinaryExpr }
func (b *BinaryExpr) Accept(v Visitor) error { return v.VisitBinaryExpr(b) }

// UnaryExpr is a postfix predicate such as IS NULL.
type UnaryExpr struct {
	Operator Operator
	Operand  Node
}

func (u *UnaryExpr) Type() NodeType         { return NodeUnaryExpr }
func (u *UnaryExpr) Accept(v Visitor) error { return v.VisitUnaryExpr(u) }
