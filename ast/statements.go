package ast

// SelectStmt renders every column of From when Columns is empty. With Count
// set it renders SELECT COUNT(*) and ignores OrderBy and Limit.
type SelectStmt struct {
	Columns []Node
	From    *Table
	Joins   []*JoinClause
	Where   *WhereClause
	OrderBy []*OrderByClause
	Limit   *LimitClause
	Count   bool
}

func (s *SelectStmt) Type() NodeType         { return NodeSelect }
func (s *SelectStmt) Accept(v Visitor) error { return v.VisitSelect(s) }

// InsertStmt inserts one row per entry of Values. Returning names the
// columns to read back on dialects that support it.
type InsertStmt struct {
	Table     *Table
	Columns   []string
	Values    [][]Node
	Returning []string
}

func (i *InsertStmt) Type() NodeType         { return NodeInsert }
func (i *InsertStmt) Accept(v Visitor) error { return v.VisitInsert(i) }

// Assignment is one SET entry of an update.
type Assignment struct {
	Column string
	Value  Node
}

type UpdateStmt struct {
	Table *Table
	Set   []Assignment
	Joins []*JoinClause
	Where *WhereClause
	Limit *LimitClause
}

func (u *UpdateStmt) Type() NodeType         { return NodeUpdate }
func (u *UpdateStmt) Accept(v Visitor) error { return v.VisitUpdate(u) }

type DeleteStmt struct {
	Table *Table
	Joins []*JoinClause
	Where *WhereClause
	Limit *LimitClause
}

func (d *DeleteStmt) Type() NodeType         { return NodeDelete }
func (d *DeleteStmt) Accept(v Visitor) error { return v.VisitDelete(d) }

type TruncateStmt struct {
	Table *Table
}

func (t *TruncateStmt) Type() NodeType         { return NodeTruncate }
func (t *TruncateStmt) Accept(v Visitor) error { return v.VisitTruncate(t) }
