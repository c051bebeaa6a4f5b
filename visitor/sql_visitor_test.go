package visitor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Konsultn-Engineering/ensemble/ast"
	"github.com/Konsultn-Engineering/ensemble/dialect"
	"github.com/Konsultn-Engineering/ensemble/ormerr"
	"github.com/Konsultn-Engineering/ensemble/value"
)

func ptr(i int) *int { return &i }

// ageAndStatus is age > 18 AND (status = 'active' OR status = 'pending').
func ageAndStatus() *ast.SelectStmt {
	group := &ast.WhereClause{}
	group.Add(ast.And, ast.Eq("status", value.String("active")))
	group.Add(ast.Or, ast.Eq("status", value.String("pending")))

	where := &ast.WhereClause{}
	where.Add(ast.And, ast.Compare("age", ast.OpGreaterThan, value.Int64(18)))
	where.Add(ast.And, &ast.GroupedExpr{Where: group})

	return &ast.SelectStmt{From: ast.NewTable("users"), Where: where}
}

func TestNestedGroupBindingOrder(t *testing.T) {
	tests := []struct {
		name string
		d    dialect.Dialect
		want string
	}{
		{"mysql", dialect.NewMySQLDialect(), "SELECT * FROM `users` WHERE `age` > ? AND (`status` = ? OR `status` = ?)"},
		{"postgres", dialect.NewPostgresDialect(), `SELECT * FROM "users" WHERE "age" > $1 AND ("status" = $2 OR "status" = $3)`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := Build(tt.d, ageAndStatus())
			require.NoError(t, err)
			assert.Equal(t, tt.want, sql)
			assert.Equal(t, []any{int64(18), "active", "pending"}, natives(args))
		})
	}
}

func TestRenderingIsDeterministic(t *testing.T) {
	d := dialect.NewPostgresDialect()
	stmt := ageAndStatus()
	sql1, args1, err := Build(d, stmt)
	require.NoError(t, err)
	sql2, args2, err := Build(d, stmt)
	require.NoError(t, err)
	assert.Equal(t, sql1, sql2)
	assert.Equal(t, args1, args2)
}

func TestPlaceholderCountMatchesBindings(t *testing.T) {
	inner := &ast.WhereClause{}
	inner.Add(ast.And, ast.In("role", []value.Value{value.String("a"), value.String("b"), value.String("c")}))
	inner.Add(ast.Or, ast.Compare("deleted_at", ast.OpIsNull))
	deeper := &ast.WhereClause{}
	deeper.Add(ast.And, ast.Compare("score", ast.OpBetween, value.Int64(1), value.Int64(9)))
	deeper.Add(ast.Or, &ast.GroupedExpr{Where: inner})

	where := &ast.WhereClause{}
	where.Add(ast.And, ast.Eq("tenant", value.Int64(7)))
	where.Add(ast.Or, &ast.GroupedExpr{Where: deeper})
	where.Add(ast.And, ast.Compare("name", ast.OpLike, value.String("x%")))

	stmt := &ast.SelectStmt{From: ast.NewTable("users"), Where: where}

	sql, args, err := Build(dialect.NewMySQLDialect(), stmt)
	require.NoError(t, err)
	assert.Equal(t, strings.Count(sql, "?"), len(args))
	assert.Equal(t, []any{int64(7), int64(1), int64(9), "a", "b", "c", "x%"}, natives(args))
	assert.Equal(t,
		"SELECT * FROM `users` WHERE `tenant` = ? OR (`score` BETWEEN ? AND ? OR (`role` IN (?, ?, ?) OR `deleted_at` IS NULL)) AND `name` LIKE ?",
		sql)

	pg, pgArgs, err := Build(dialect.NewPostgresDialect(), stmt)
	require.NoError(t, err)
	assert.Equal(t, args, pgArgs)
	for i := range pgArgs {
		assert.Contains(t, pg, "$"+string(rune('1'+i)))
	}
}

func TestSelectClauses(t *testing.T) {
	stmt := &ast.SelectStmt{
		Columns: []ast.Node{ast.NewColumn("posts.*"), &ast.Column{Name: "email", Alias: "author_email"}},
		From:    ast.NewTable("posts"),
		Joins:   []*ast.JoinClause{ast.JoinOn(ast.JoinInner, "users", "users.id", ast.OpEqual, "posts.user_id")},
		OrderBy: []*ast.OrderByClause{ast.OrderBy("posts.created_at", ast.Desc), ast.OrderBy("id", ast.Asc)},
		Limit:   &ast.LimitClause{Count: ptr(10), Offset: ptr(20)},
	}
	sql, args, err := Build(dialect.NewPostgresDialect(), stmt)
	require.NoError(t, err)
	assert.Empty(t, args)
	assert.Equal(t,
		`SELECT "posts".*, "email" AS "author_email" FROM "posts" INNER JOIN "users" ON "users"."id" = "posts"."user_id" ORDER BY "posts"."created_at" DESC, "id" ASC LIMIT 10 OFFSET 20`,
		sql)
}

func TestCountIgnoresOrderAndLimit(t *testing.T) {
	stmt := ageAndStatus()
	stmt.OrderBy = []*ast.OrderByClause{ast.OrderBy("age", ast.Asc)}
	stmt.Limit = &ast.LimitClause{Count: ptr(1)}
	stmt.Count = true

	sql, args, err := Build(dialect.NewMySQLDialect(), stmt)
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM `users` WHERE `age` > ? AND (`status` = ? OR `status` = ?)", sql)
	assert.Len(t, args, 3)
}

func TestOffsetWithoutLimit(t *testing.T) {
	stmt := &ast.SelectStmt{From: ast.NewTable("t"), Limit: &ast.LimitClause{Offset: ptr(5)}}

	tests := map[string]struct {
		d    dialect.Dialect
		want string
	}{
		"mysql":    {dialect.NewMySQLDialect(), "SELECT * FROM `t` LIMIT 18446744073709551615 OFFSET 5"},
		"sqlite":   {dialect.NewSQLiteDialect(), `SELECT * FROM "t" LIMIT -1 OFFSET 5`},
		"postgres": {dialect.NewPostgresDialect(), `SELECT * FROM "t" OFFSET 5`},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			sql, _, err := Build(tt.d, stmt)
			require.NoError(t, err)
			assert.Equal(t, tt.want, sql)
		})
	}
}

func TestEmptyInLists(t *testing.T) {
	where := &ast.WhereClause{}
	where.Add(ast.And, ast.In("id", nil))
	where.Add(ast.Or, ast.Compare("id", ast.OpNotIn))
	where.Add(ast.And, ast.Eq("x", value.Int64(1)))

	sql, args, err := Build(dialect.NewMySQLDialect(), &ast.SelectStmt{From: ast.NewTable("t"), Where: where})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `t` WHERE 1 = 0 OR 1 = 1 AND `x` = ?", sql)
	assert.Equal(t, []any{int64(1)}, natives(args))
}

func TestRendererMisuse(t *testing.T) {
	badRange := &ast.WhereClause{}
	badRange.Add(ast.And, ast.Compare("x", ast.OpBetween, value.Int64(1)))

	tests := []struct {
		name string
		node ast.Node
		d    dialect.Dialect
	}{
		{"between needs two values", &ast.SelectStmt{From: ast.NewTable("t"), Where: badRange}, dialect.NewMySQLDialect()},
		{"empty group", &ast.SelectStmt{From: ast.NewTable("t"), Where: &ast.WhereClause{Items: []ast.WhereItem{{Expr: &ast.GroupedExpr{Where: &ast.WhereClause{}}}}}}, dialect.NewMySQLDialect()},
		{"no table", &ast.SelectStmt{}, dialect.NewMySQLDialect()},
		{"update without set", &ast.UpdateStmt{Table: ast.NewTable("t")}, dialect.NewMySQLDialect()},
		{"update offset", &ast.UpdateStmt{Table: ast.NewTable("t"), Set: []ast.Assignment{{Column: "a", Value: &ast.Value{Val: value.Int64(1)}}}, Limit: &ast.LimitClause{Offset: ptr(1)}}, dialect.NewMySQLDialect()},
		{"delete limit on postgres", &ast.DeleteStmt{Table: ast.NewTable("t"), Limit: &ast.LimitClause{Count: ptr(1)}}, dialect.NewPostgresDialect()},
		{"delete join on sqlite", &ast.DeleteStmt{Table: ast.NewTable("t"), Joins: []*ast.JoinClause{ast.JoinOn(ast.JoinInner, "u", "u.id", ast.OpEqual, "t.u_id")}}, dialect.NewSQLiteDialect()},
		{"delete join with limit", &ast.DeleteStmt{Table: ast.NewTable("t"), Joins: []*ast.JoinClause{ast.JoinOn(ast.JoinInner, "u", "u.id", ast.OpEqual, "t.u_id")}, Limit: &ast.LimitClause{Count: ptr(1)}}, dialect.NewMySQLDialect()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Build(tt.d, tt.node)
			assert.ErrorIs(t, err, ormerr.ErrInvalidQuery)
		})
	}
}

func TestInsert(t *testing.T) {
	stmt := &ast.InsertStmt{
		Table:   ast.NewTable("users"),
		Columns: []string{"name", "age"},
		Values: [][]ast.Node{
			{&ast.Value{Val: value.String("ann")}, &ast.Value{Val: value.Int64(30)}},
			{&ast.Value{Val: value.String("bob")}, &ast.Value{Val: value.Null()}},
		},
		Returning: []string{"id"},
	}

	sql, args, err := Build(dialect.NewPostgresDialect(), stmt)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "users" ("name", "age") VALUES ($1, $2), ($3, $4) RETURNING "id"`, sql)
	assert.Equal(t, []any{"ann", int64(30), "bob", nil}, natives(args))

	sql, _, err = Build(dialect.NewMySQLDialect(), stmt)
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO `users` (`name`, `age`) VALUES (?, ?), (?, ?)", sql)

	empty := &ast.InsertStmt{Table: ast.NewTable("counters")}
	sql, _, err = Build(dialect.NewMySQLDialect(), empty)
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO `counters` () VALUES ()", sql)
	sql, _, err = Build(dialect.NewPostgresDialect(), empty)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "counters" DEFAULT VALUES`, sql)
}

func TestUpdateBindsSetFirst(t *testing.T) {
	where := &ast.WhereClause{}
	where.Add(ast.And, ast.Eq("id", value.Int64(4)))
	stmt := &ast.UpdateStmt{
		Table: ast.NewTable("users"),
		Set: []ast.Assignment{
			{Column: "name", Value: &ast.Value{Val: value.String("ann")}},
			{Column: "age", Value: &ast.Value{Val: value.Int64(31)}},
		},
		Where: where,
	}

	sql, args, err := Build(dialect.NewPostgresDialect(), stmt)
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "users" SET "name" = $1, "age" = $2 WHERE "id" = $3`, sql)
	assert.Equal(t, []any{"ann", int64(31), int64(4)}, natives(args))

	stmt.Limit = &ast.LimitClause{Count: ptr(1)}
	sql, _, err = Build(dialect.NewMySQLDialect(), stmt)
	require.NoError(t, err)
	assert.Equal(t, "UPDATE `users` SET `name` = ?, `age` = ? WHERE `id` = ? LIMIT 1", sql)
}

func TestMutationJoins(t *testing.T) {
	where := &ast.WhereClause{}
	where.Add(ast.And, ast.Eq("users.banned", value.Bool(true)))
	where.Add(ast.Or, ast.Eq("users.age", value.Int64(3)))
	joins := []*ast.JoinClause{ast.JoinOn(ast.JoinInner, "users", "users.id", ast.OpEqual, "posts.user_id")}

	update := &ast.UpdateStmt{
		Table: ast.NewTable("posts"),
		Set:   []ast.Assignment{{Column: "hidden", Value: &ast.Value{Val: value.Bool(true)}}},
		Joins: joins,
		Where: where,
	}
	del := &ast.DeleteStmt{Table: ast.NewTable("posts"), Joins: joins, Where: where}

	sql, _, err := Build(dialect.NewMySQLDialect(), update)
	require.NoError(t, err)
	assert.Equal(t, "UPDATE `posts` INNER JOIN `users` ON `users`.`id` = `posts`.`user_id` SET `hidden` = ? WHERE `users`.`banned` = ? OR `users`.`age` = ?", sql)

	sql, _, err = Build(dialect.NewMySQLDialect(), del)
	require.NoError(t, err)
	assert.Equal(t, "DELETE `posts` FROM `posts` INNER JOIN `users` ON `users`.`id` = `posts`.`user_id` WHERE `users`.`banned` = ? OR `users`.`age` = ?", sql)

	sql, args, err := Build(dialect.NewPostgresDialect(), update)
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "posts" SET "hidden" = $1 FROM "users" WHERE "users"."id" = "posts"."user_id" AND ("users"."banned" = $2 OR "users"."age" = $3)`, sql)
	assert.Len(t, args, 3)

	sql, _, err = Build(dialect.NewPostgresDialect(), del)
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "posts" USING "users" WHERE "users"."id" = "posts"."user_id" AND ("users"."banned" = $1 OR "users"."age" = $2)`, sql)
}

func TestTruncate(t *testing.T) {
	sql, args, err := Build(dialect.NewPostgresDialect(), &ast.TruncateStmt{Table: ast.NewTable("users")})
	require.NoError(t, err)
	assert.Equal(t, `TRUNCATE TABLE "users"`, sql)
	assert.Nil(t, args)
}

func TestInterpolate(t *testing.T) {
	sql, err := Interpolate(dialect.NewMySQLDialect(), ageAndStatus())
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `users` WHERE `age` > 18 AND (`status` = 'active' OR `status` = 'pending')", sql)
}

func natives(vals []value.Value) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v.Native()
	}
	return out
}
