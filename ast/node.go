// Package ast is the in-memory clause model of a query: statements, the
// predicate tree, joins, ordering and limits. Nodes are plain values; the
// visitor package renders them to SQL.
package ast

type NodeType int

const (
	NodeSelect NodeType = iota
	NodeInsert
	NodeUpdate
	NodeDelete
	NodeTruncate
	NodeColumn
	NodeTable
	NodeValue
	NodeArray
	NodeFunction
	NodeGroupedExpr
	NodeBinaryExpr
	NodeUnaryExpr
	NodeWhere
	NodeJoin
	NodeOrderBy
	NodeLimit
)

type Node interface {
	Type() NodeType
	Accept(v Visitor) error
}

type Visitor interface {
	VisitSelect(*SelectStmt) error
	VisitInsert(*InsertStmt) error
	VisitUpdate(*UpdateStmt) error
	VisitDelete(*DeleteStmt) error
	VisitTruncate(*TruncateStmt) error

	VisitColumn(*Column) error
	VisitTable(*Table) error
	VisitValue(*Value) error
	VisitArray(*Array) error
	VisitFunction(*Function) error
	VisitGroupedExpr(*GroupedExpr) error
	VisitBinaryExpr(*BinaryExpr) error
	VisitUnaryExpr(*UnaryExpr) error

	VisitWhereClause(*WhereClause) error
	VisitJoinClause(*JoinClause) error
	VisitOrderByClause(*OrderByClause) error
	VisitLimitClause(*LimitClause) error
}
