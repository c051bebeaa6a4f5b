// Package visitor renders ast statements to parameterized SQL. Rendering is a
// pure function of the tree and the dialect: placeholders and bindings are
// produced in one depth-first walk, so their orders always agree.
package visitor

import (
	"strconv"
	"strings"
	"sync"

	"github.com/Konsultn-Engineering/ensemble/ast"
	"github.com/Konsultn-Engineering/ensemble/dialect"
	"github.com/Konsultn-Engineering/ensemble/ormerr"
	"github.com/Konsultn-Engineering/ensemble/value"
)

var visitorPool = sync.Pool{
	New: func() any {
		return &SQLVisitor{
			args: make([]value.Value, 0, 8),
		}
	},
}

type SQLVisitor struct {
	sb      strings.Builder
	args    []value.Value
	dialect dialect.Dialect
	inline  bool
}

func NewSQLVisitor(d dialect.Dialect) *SQLVisitor {
	v := visitorPool.Get().(*SQLVisitor)
	v.dialect = d
	v.inline = false
	v.sb.Reset()
	v.args = v.args[:0]
	return v
}

func (v *SQLVisitor) Release() {
	v.dialect = nil
	v.sb.Reset()
	v.args = v.args[:0]
	visitorPool.Put(v)
}

// Build renders root. The returned bindings are a fresh slice owned by the
// caller.
func (v *SQLVisitor) Build(root ast.Node) (string, []value.Value, error) {
	v.sb.Reset()
	v.args = v.args[:0]

	if err := root.Accept(v); err != nil {
		return "", nil, err
	}

	var args []value.Value
	if len(v.args) > 0 {
		args = make([]value.Value, len(v.args))
		copy(args, v.args)
	}
	return v.sb.String(), args, nil
}

// Build renders root with a pooled visitor.
func Build(d dialect.Dialect, root ast.Node) (string, []value.Value, error) {
	v := NewSQLVisitor(d)
	defer v.Release()
	return v.Build(root)
}

// Interpolate renders root with every binding written as a literal. The
// result is for logs and debugging only; never execute it.
func Interpolate(d dialect.Dialect, root ast.Node) (string, error) {
	v := NewSQLVisitor(d)
	defer v.Release()
	v.inline = true
	sql, _, err := v.Build(root)
	return sql, err
}

func (v *SQLVisitor) arg(a value.Value) {
	if v.inline {
		v.sb.WriteString(v.dialect.RenderValue(a))
		return
	}
	v.args = append(v.args, a)
	v.sb.WriteString(v.dialect.Placeholder(len(v.args)))
}

func (v *SQLVisitor) quote(name string) {
	v.sb.WriteString(v.dialect.QuoteIdentifier(name))
}

func (v *SQLVisitor) VisitSelect(s *ast.SelectStmt) error {
	v.sb.WriteString("SELECT ")

	switch {
	case s.Count:
		if err := ast.CountAll().Accept(v); err != nil {
			return err
		}
	case len(s.Columns) == 0:
		v.sb.WriteByte('*')
	default:
		for i, col := range s.Columns {
			if i > 0 {
				v.sb.WriteString(", ")
			}
			if err := col.Accept(v); err != nil {
				return err
			}
		}
	}

	v.sb.WriteString(" FROM ")
	if err := s.From.Accept(v); err != nil {
		return err
	}

	for _, join := range s.Joins {
		if err := join.Accept(v); err != nil {
			return err
		}
	}

	if err := v.where(s.Where); err != nil {
		return err
	}

	if s.Count {
		return nil
	}

	for i, order := range s.OrderBy {
		if i == 0 {
			v.sb.WriteString(" ORDER BY ")
		} else {
			v.sb.WriteString(", ")
		}
		if err := order.Accept(v); err != nil {
			return err
		}
	}

	if !s.Limit.Empty() {
		return s.Limit.Accept(v)
	}
	return nil
}

func (v *SQLVisitor) VisitInsert(stmt *ast.InsertStmt) error {
	v.sb.WriteString("INSERT INTO ")
	if err := stmt.Table.Accept(v); err != nil {
		return err
	}

	if len(stmt.Columns) == 0 {
		if len(stmt.Values) > 1 {
			return ormerr.InvalidQuery("insert without columns takes a single row")
		}
		v.sb.WriteByte(' ')
		v.sb.WriteString(v.dialect.EmptyInsertValues())
	} else {
		v.sb.WriteString(" (")
		for i, col := range stmt.Columns {
			if i > 0 {
				v.sb.WriteString(", ")
			}
			v.quote(col)
		}
		v.sb.WriteString(") VALUES ")

		for r, row := range stmt.Values {
			if len(row) != len(stmt.Columns) {
				return ormerr.InvalidQuery("insert row %d has %d values for %d columns", r, len(row), len(stmt.Columns))
			}
			if r > 0 {
				v.sb.WriteString(", ")
			}
			v.sb.WriteByte('(')
			for i, val := range row {
				if i > 0 {
					v.sb.WriteString(", ")
				}
				if err := val.Accept(v); err != nil {
					return err
				}
			}
			v.sb.WriteByte(')')
		}
	}

	if len(stmt.Returning) > 0 && v.dialect.SupportsReturning() {
		v.sb.WriteString(" RETURNING ")
		for i, col := range stmt.Returning {
			if i > 0 {
				v.sb.WriteString(", ")
			}
			v.quote(col)
		}
	}
	return nil
}

// UPDATE binds the SET values before the predicate values, matching their
// order in the text.
func (v *SQLVisitor) VisitUpdate(stmt *ast.UpdateStmt) error {
	if len(stmt.Set) == 0 {
		return ormerr.InvalidQuery("update without values")
	}
	style, err := v.mutationJoins(stmt.Joins)
	if err != nil {
		return err
	}

	v.sb.WriteString("UPDATE ")
	if err := stmt.Table.Accept(v); err != nil {
		return err
	}
	if style == dialect.JoinsInline {
		for _, join := range stmt.Joins {
			if err := join.Accept(v); err != nil {
				return err
			}
		}
	}

	v.sb.WriteString(" SET ")
	for i, set := range stmt.Set {
		if i > 0 {
			v.sb.WriteString(", ")
		}
		v.quote(set.Column)
		v.sb.WriteString(" = ")
		if err := set.Value.Accept(v); err != nil {
			return err
		}
	}

	if style == dialect.JoinsFrom {
		if err := v.joinsAsFrom(" FROM ", stmt.Joins, stmt.Where); err != nil {
			return err
		}
	} else if err := v.where(stmt.Where); err != nil {
		return err
	}
	return v.mutationLimit(stmt.Limit, stmt.Joins)
}

func (v *SQLVisitor) VisitDelete(stmt *ast.DeleteStmt) error {
	style, err := v.mutationJoins(stmt.Joins)
	if err != nil {
		return err
	}

	switch style {
	case dialect.JoinsInline:
		v.sb.WriteString("DELETE ")
		if err := v.tableRef(stmt.Table); err != nil {
			return err
		}
		v.sb.WriteString(" FROM ")
		if err := stmt.Table.Accept(v); err != nil {
			return err
		}
		for _, join := range stmt.Joins {
			if err := join.Accept(v); err != nil {
				return err
			}
		}
		if err := v.where(stmt.Where); err != nil {
			return err
		}
	case dialect.JoinsFrom:
		v.sb.WriteString("DELETE FROM ")
		if err := stmt.Table.Accept(v); err != nil {
			return err
		}
		if err := v.joinsAsFrom(" USING ", stmt.Joins, stmt.Where); err != nil {
			return err
		}
	default:
		v.sb.WriteString("DELETE FROM ")
		if err := stmt.Table.Accept(v); err != nil {
			return err
		}
		if err := v.where(stmt.Where); err != nil {
			return err
		}
	}
	return v.mutationLimit(stmt.Limit, stmt.Joins)
}

func (v *SQLVisitor) VisitTruncate(stmt *ast.TruncateStmt) error {
	if stmt.Table == nil || stmt.Table.Name == "" {
		return ormerr.InvalidQuery("statement without a table")
	}
	var table strings.Builder
	if stmt.Table.Schema != "" {
		table.WriteString(v.dialect.QuoteIdentifier(stmt.Table.Schema))
		table.WriteByte('.')
	}
	table.WriteString(v.dialect.QuoteIdentifier(stmt.Table.Name))
	v.sb.WriteString(v.dialect.TruncateStatement(table.String()))
	return nil
}

func (v *SQLVisitor) VisitColumn(c *ast.Column) error {
	if c.Table != "" {
		v.quote(c.Table)
		v.sb.WriteByte('.')
	}
	v.quote(c.Name)

	if c.Alias != "" && c.Alias != c.Name {
		v.sb.WriteString(" AS ")
		v.quote(c.Alias)
	}
	return nil
}

func (v *SQLVisitor) VisitTable(t *ast.Table) error {
	if t == nil || t.Name == "" {
		return ormerr.InvalidQuery("statement without a table")
	}
	if t.Schema != "" {
		v.quote(t.Schema)
		v.sb.WriteByte('.')
	}
	v.quote(t.Name)

	if t.Alias != "" && t.Alias != t.Name {
		v.sb.WriteString(" AS ")
		v.quote(t.Alias)
	}
	return nil
}

// tableRef writes the name a table is referred to by: its alias if any.
func (v *SQLVisitor) tableRef(t *ast.Table) error {
	if t == nil || t.Name == "" {
		return ormerr.InvalidQuery("statement without a table")
	}
	if t.Alias != "" {
		v.quote(t.Alias)
		return nil
	}
	return t.Accept(v)
}

func (v *SQLVisitor) VisitValue(val *ast.Value) error {
	v.arg(val.Val)
	return nil
}

func (v *SQLVisitor) VisitArray(a *ast.Array) error {
	v.sb.WriteByte('(')
	for i, val := range a.Values {
		if i > 0 {
			v.sb.WriteString(", ")
		}
		v.arg(val)
	}
	v.sb.WriteByte(')')
	return nil
}

func (v *SQLVisitor) VisitFunction(f *ast.Function) error {
	v.sb.WriteString(f.Name)
	v.sb.WriteByte('(')
	for i, arg := range f.Args {
		if i > 0 {
			v.sb.WriteString(", ")
		}
		if err := arg.Accept(v); err != nil {
			return err
		}
	}
	v.sb.WriteByte(')')
	return nil
}

func (v *SQLVisitor) VisitGroupedExpr(g *ast.GroupedExpr) error {
	if g.Where.Empty() {
		return ormerr.InvalidQuery("empty predicate group")
	}
	v.sb.WriteByte('(')
	err := g.Where.Accept(v)
	v.sb.WriteByte(')')
	return err
}

func (v *SQLVisitor) VisitBinaryExpr(expr *ast.BinaryExpr) error {
	switch expr.Operator.Arity() {
	case ast.ArityUnary:
		return v.VisitUnaryExpr(&ast.UnaryExpr{Operator: expr.Operator, Operand: expr.Left})
	case ast.ArityList:
		arr, ok := expr.Right.(*ast.Array)
		if !ok {
			return ormerr.InvalidQuery("%s needs a list of values", expr.Operator)
		}
		// an empty list matches nothing, or everything when negated
		if len(arr.Values) == 0 {
			if expr.Operator.Negated() {
				v.sb.WriteString("1 = 1")
			} else {
				v.sb.WriteString("1 = 0")
			}
			return nil
		}
	case ast.ArityRange:
		arr, ok := expr.Right.(*ast.Array)
		if !ok || len(arr.Values) != 2 {
			return ormerr.InvalidQuery("%s needs exactly two values", expr.Operator)
		}
		if err := expr.Left.Accept(v); err != nil {
			return err
		}
		v.sb.WriteByte(' ')
		v.sb.WriteString(v.dialect.Operator(expr.Operator))
		v.sb.WriteByte(' ')
		v.arg(arr.Values[0])
		v.sb.WriteString(" AND ")
		v.arg(arr.Values[1])
		return nil
	}

	if err := expr.Left.Accept(v); err != nil {
		return err
	}

	v.sb.WriteByte(' ')
	v.sb.WriteString(v.dialect.Operator(expr.Operator))
	v.sb.WriteByte(' ')

	return expr.Right.Accept(v)
}

func (v *SQLVisitor) VisitUnaryExpr(expr *ast.UnaryExpr) error {
	if err := expr.Operand.Accept(v); err != nil {
		return err
	}
	v.sb.WriteByte(' ')
	v.sb.WriteString(v.dialect.Operator(expr.Operator))
	return nil
}

// VisitWhereClause renders the items of one scope. The connective of the
// first item is omitted.
func (v *SQLVisitor) VisitWhereClause(clause *ast.WhereClause) error {
	for i, item := range clause.Items {
		if i > 0 {
			conn := item.Connective
			if conn == "" {
				conn = ast.And
			}
			v.sb.WriteByte(' ')
			v.sb.WriteString(string(conn))
			v.sb.WriteByte(' ')
		}
		if err := item.Expr.Accept(v); err != nil {
			return err
		}
	}
	return nil
}

func (v *SQLVisitor) VisitJoinClause(clause *ast.JoinClause) error {
	if clause.On == nil {
		return ormerr.InvalidQuery("join on %s without a condition", clause.Table.Name)
	}
	v.sb.WriteByte(' ')
	v.sb.WriteString(clause.JoinType.String())
	v.sb.WriteByte(' ')
	if err := clause.Table.Accept(v); err != nil {
		return err
	}
	v.sb.WriteString(" ON ")
	return clause.On.Accept(v)
}

func (v *SQLVisitor) VisitOrderByClause(clause *ast.OrderByClause) error {
	if err := clause.Expr.Accept(v); err != nil {
		return err
	}
	if clause.Desc {
		v.sb.WriteString(" DESC")
	} else {
		v.sb.WriteString(" ASC")
	}
	return nil
}

func (v *SQLVisitor) VisitLimitClause(clause *ast.LimitClause) error {
	switch {
	case clause.Count != nil:
		if *clause.Count < 0 {
			return ormerr.InvalidQuery("negative limit %d", *clause.Count)
		}
		v.sb.WriteString(" LIMIT ")
		v.sb.WriteString(strconv.Itoa(*clause.Count))
	case clause.Offset != nil && v.dialect.NoLimit() != "":
		v.sb.WriteString(" LIMIT ")
		v.sb.WriteString(v.dialect.NoLimit())
	}

	if clause.Offset != nil {
		if *clause.Offset < 0 {
			return ormerr.InvalidQuery("negative offset %d", *clause.Offset)
		}
		v.sb.WriteString(" OFFSET ")
		v.sb.WriteString(strconv.Itoa(*clause.Offset))
	}
	return nil
}

// --- helpers ---

func (v *SQLVisitor) where(w *ast.WhereClause) error {
	if w.Empty() {
		return nil
	}
	v.sb.WriteString(" WHERE ")
	return w.Accept(v)
}

func (v *SQLVisitor) mutationJoins(joins []*ast.JoinClause) (dialect.JoinStyle, error) {
	if len(joins) == 0 {
		return dialect.JoinsUnsupported, nil
	}
	style := v.dialect.MutationJoins()
	switch style {
	case dialect.JoinsUnsupported:
		return style, ormerr.InvalidQuery("%s does not support joins in UPDATE or DELETE", v.dialect.Name())
	case dialect.JoinsFrom:
		for _, j := range joins {
			if j.JoinType != ast.JoinInner {
				return style, ormerr.InvalidQuery("%s supports only inner joins in UPDATE or DELETE", v.dialect.Name())
			}
		}
	}
	return style, nil
}

// joinsAsFrom writes joined tables as a FROM or USING list and moves their
// conditions into the WHERE clause ahead of the predicate.
func (v *SQLVisitor) joinsAsFrom(keyword string, joins []*ast.JoinClause, w *ast.WhereClause) error {
	v.sb.WriteString(keyword)
	for i, j := range joins {
		if i > 0 {
			v.sb.WriteString(", ")
		}
		if err := j.Table.Accept(v); err != nil {
			return err
		}
	}

	v.sb.WriteString(" WHERE ")
	for i, j := range joins {
		if i > 0 {
			v.sb.WriteString(" AND ")
		}
		if j.On == nil {
			return ormerr.InvalidQuery("join on %s without a condition", j.Table.Name)
		}
		if err := j.On.Accept(v); err != nil {
			return err
		}
	}
	if !w.Empty() {
		v.sb.WriteString(" AND (")
		if err := w.Accept(v); err != nil {
			return err
		}
		v.sb.WriteByte(')')
	}
	return nil
}

func (v *SQLVisitor) mutationLimit(l *ast.LimitClause, joins []*ast.JoinClause) error {
	if l.Empty() {
		return nil
	}
	if len(joins) > 0 {
		return ormerr.InvalidQuery("LIMIT and OFFSET cannot be combined with a join in UPDATE or DELETE")
	}
	if l.Offset != nil {
		return ormerr.InvalidQuery("OFFSET is not allowed in UPDATE or DELETE")
	}
	if !v.dialect.SupportsMutationLimit() {
		return ormerr.InvalidQuery("%s does not support LIMIT in UPDATE or DELETE", v.dialect.Name())
	}
	return l.Accept(v)
}

var _ ast.Visitor = (*SQLVisitor)(nil)

