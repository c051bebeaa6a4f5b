package ast

// WhereItem is one predicate in a scope and the connective that links it to
// the item before it. The connective of the first item is never rendered.
type WhereItem struct {
	Connective Connective
	Expr       Node
}

// WhereClause is an ordered predicate scope.
type WhereClause struct {
	Items []WhereItem
}

func (w *WhereClause) Type() NodeType         { return NodeWhere }
func (w *WhereClause) Accept(v Visitor) error { return v.VisitWhereClause(w) }

func (w *WhereClause) Add(conn Connective, expr Node) {
	w.Items = append(w.Items, WhereItem{Connective: conn, Expr: expr})
}

func (w *WhereClause) Empty() bool { return w == nil || len(w.Items) == 0 }

// Clone copies the item list so the copy can grow independently.
func (w *WhereClause) Clone() *WhereClause {
	if w == nil {
		return nil
	}
	return &WhereClause{Items: append([]WhereItem(nil), w.Items...)}
}

type JoinType int

const (
	JoinInner JoinType = iota
	JoinLeft
	JoinRight
)

func (j JoinType) String() string {
	switch j {
	case JoinLeft:
		return "LEFT JOIN"
	case JoinRight:
		return "RIGHT JOIN"
	}
	return "INNER JOIN"
}

// JoinClause joins Table on a single comparison between two columns.
type JoinClause struct {
	JoinType JoinType
	Table    *Table
	On       *BinaryExpr
}

func (j *JoinClause) Type() NodeType         { return NodeJoin }
func (j *JoinClause) Accept(v Visitor) error { return v.VisitJoinClause(j) }

type OrderByClause struct {
	Expr Node
	Desc bool
}

func (o *OrderByClause) Type() NodeType         { return NodeOrderBy }
func (o *OrderByClause) Accept(v Visitor) error { return v.VisitOrderByClause(o) }

// LimitClause holds an optional row count and an optional offset.
type LimitClause struct {
	Count  *int
	Offset *int
}

func (l *LimitClause) Type() NodeType         { return NodeLimit }
func (l *LimitClause) Accept(v Visitor) error { return v.VisitLimitClause(l) }

func (l *LimitClause) Empty() bool { return l == nil || (l.Count == nil && l.Offset == nil) }
