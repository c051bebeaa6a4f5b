package query

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Konsultn-Engineering/ensemble/database"
	"github.com/Konsultn-Engineering/ensemble/database/dbtest"
	"github.com/Konsultn-Engineering/ensemble/dialect"
	"github.com/Konsultn-Engineering/ensemble/engine"
	"github.com/Konsultn-Engineering/ensemble/ormerr"
	"github.com/Konsultn-Engineering/ensemble/relation"
	"github.com/Konsultn-Engineering/ensemble/value"
)

type User struct {
	ID     int64
	Name   string
	Age    int
	Status string
	Posts  relation.HasMany[Post]
}

type Post struct {
	ID    int64
	Title string
	User  relation.BelongsTo[User]
}

func newEngine(pool *dbtest.Pool, d dialect.Dialect) *engine.Engine {
	return engine.New(pool, d, engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func natives(vals []value.Value) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v.Native()
	}
	return out
}

func TestAgeAndStatusScenario(t *testing.T) {
	b := New[User]().
		Where("age", ">", 18).
		WhereGroup(func(g *Builder[User]) {
			g.Where("status", "=", "active").OrWhere("status", "=", "pending")
		})

	sql, args, err := b.ToSQL(dialect.NewMySQLDialect())
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `users` WHERE `age` > ? AND (`status` = ? OR `status` = ?)", sql)
	assert.Equal(t, []any{int64(18), "active", "pending"}, natives(args))
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name  string
		build func(*Builder[User]) *Builder[User]
		want  string
		args  []any
	}{
		{
			name:  "null checks",
			build: func(b *Builder[User]) *Builder[User] { return b.WhereNull("name").WhereNotNull("status") },
			want:  `SELECT * FROM "users" WHERE "name" IS NULL AND "status" IS NOT NULL`,
			args:  []any{},
		},
		{
			name:  "in from a typed slice",
			build: func(b *Builder[User]) *Builder[User] { return b.WhereIn("id", []int64{1, 2, 3}) },
			want:  `SELECT * FROM "users" WHERE "id" IN ($1, $2, $3)`,
			args:  []any{int64(1), int64(2), int64(3)},
		},
		{
			name:  "empty in",
			build: func(b *Builder[User]) *Builder[User] { return b.WhereIn("id", []int{}) },
			want:  `SELECT * FROM "users" WHERE 1 = 0`,
			args:  []any{},
		},
		{
			name:  "not in",
			build: func(b *Builder[User]) *Builder[User] { return b.WhereNotIn("status", []string{"banned"}) },
			want:  `SELECT * FROM "users" WHERE "status" NOT IN ($1)`,
			args:  []any{"banned"},
		},
		{
			name:  "between",
			build: func(b *Builder[User]) *Builder[User] { return b.WhereBetween("age", 18, 30) },
			want:  `SELECT * FROM "users" WHERE "age" BETWEEN $1 AND $2`,
			args:  []any{int64(18), int64(30)},
		},
		{
			name: "or group",
			build: func(b *Builder[User]) *Builder[User] {
				return b.WhereEq("status", "active").OrWhereGroup(func(g *Builder[User]) {
					g.Where("age", "<", 13).Where("name", "like", "a%")
				})
			},
			want: `SELECT * FROM "users" WHERE "status" = $1 OR ("age" < $2 AND "name" LIKE $3)`,
			args: []any{"active", int64(13), "a%"},
		},
		{
			name: "order limit offset",
			build: func(b *Builder[User]) *Builder[User] {
				return b.OrderBy("age", "desc").OrderBy("name", "ASC").Limit(10).Offset(20)
			},
			want: `SELECT * FROM "users" ORDER BY "age" DESC, "name" ASC LIMIT 10 OFFSET 20`,
			args: []any{},
		},
		{
			name: "join selects the base table",
			build: func(b *Builder[User]) *Builder[User] {
				return b.Join("posts", "posts.user_id", "=", "users.id").WhereEq("posts.title", "x")
			},
			want: `SELECT "users".* FROM "users" INNER JOIN "posts" ON "posts"."user_id" = "users"."id" WHERE "posts"."title" = $1`,
			args: []any{"x"},
		},
		{
			name: "explicit columns",
			build: func(b *Builder[User]) *Builder[User] {
				return b.Select("id", "users.name AS label").LeftJoin("posts", "posts.user_id", "=", "users.id")
			},
			want: `SELECT "id", "users"."name" AS "label" FROM "users" LEFT JOIN "posts" ON "posts"."user_id" = "users"."id"`,
			args: []any{},
		},
		{
			name:  "retargeted table",
			build: func(b *Builder[User]) *Builder[User] { return b.From("archived_users") },
			want:  `SELECT * FROM "archived_users"`,
			args:  []any{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := tt.build(New[User]()).ToSQL(dialect.NewPostgresDialect())
			require.NoError(t, err)
			assert.Equal(t, tt.want, sql)
			assert.Equal(t, tt.args, natives(args))
			assert.Equal(t, strings.Count(sql, "$"), len(args))
		})
	}
}

func TestMalformedOperatorPanics(t *testing.T) {
	assert.Panics(t, func() { New[User]().Where("age", "=>", 1) })
	assert.Panics(t, func() { New[User]().OrderBy("age", "sideways") })
}

func TestOrWhereWithoutPredicate(t *testing.T) {
	pool := dbtest.New()
	e := newEngine(pool, dialect.NewPostgresDialect())

	t.Run("get", func(t *testing.T) {
		_, err := New[User]().OrWhere("age", ">", 1).Using(e).Get(context.Background())
		assert.ErrorIs(t, err, ormerr.ErrInvalidQuery)
	})
	t.Run("to sql", func(t *testing.T) {
		_, _, err := New[User]().OrWhere("age", ">", 1).ToSQL(dialect.NewPostgresDialect())
		assert.ErrorIs(t, err, ormerr.ErrInvalidQuery)
	})
	t.Run("group", func(t *testing.T) {
		_, err := New[User]().OrWhereGroup(func(g *Builder[User]) { g.WhereEq("a", 1) }).Using(e).Count(context.Background())
		assert.ErrorIs(t, err, ormerr.ErrInvalidQuery)
	})
	t.Run("inside a group", func(t *testing.T) {
		_, err := New[User]().WhereEq("a", 1).WhereGroup(func(g *Builder[User]) {
			g.OrWhere("b", "=", 2)
		}).Using(e).Delete(context.Background())
		assert.ErrorIs(t, err, ormerr.ErrInvalidQuery)
	})

	assert.Zero(t, pool.Count())
}

func TestGetAndFirst(t *testing.T) {
	pool := dbtest.New().OnQuery(`FROM "users"`,
		dbtest.Row("id", 1, "name", "ann", "age", 31, "status", "active"),
		dbtest.Row("id", 2, "name", "bob", "age", 22, "status", "pending"),
	)
	e := newEngine(pool, dialect.NewPostgresDialect())
	ctx := context.Background()

	users, err := New[User]().Where("age", ">", 18).Using(e).Get(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "ann", users[0].Name)
	assert.Equal(t, 22, users[1].Age)

	u, err := New[User]().Using(e).First(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)
	assert.Equal(t, `SELECT * FROM "users" LIMIT 1`, pool.SQL()[1])

	_, err = New[User]().From("nobody").Using(e).First(ctx)
	assert.ErrorIs(t, err, ormerr.ErrNotFound)
}

func TestCount(t *testing.T) {
	pool := dbtest.New().OnQuery("COUNT(*)", dbtest.Row("count", 42))
	e := newEngine(pool, dialect.NewMySQLDialect())

	n, err := New[User]().WhereEq("status", "active").OrderBy("id", "asc").Limit(5).Using(e).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.Equal(t, "SELECT COUNT(*) FROM `users` WHERE `status` = ?", pool.SQL()[0])
}

func TestContextExecutor(t *testing.T) {
	pool := dbtest.New()
	ctx := engine.WithContext(context.Background(), newEngine(pool, dialect.NewSQLiteDialect()))

	_, err := New[User]().Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{`SELECT * FROM "users"`}, pool.SQL())
}

func TestBuilderIsConsumed(t *testing.T) {
	pool := dbtest.New()
	e := newEngine(pool, dialect.NewPostgresDialect())
	b := New[User]().Using(e)

	_, err := b.Get(context.Background())
	require.NoError(t, err)
	_, err = b.Count(context.Background())
	assert.ErrorIs(t, err, ormerr.ErrInvalidQuery)
	assert.Equal(t, 1, pool.Count())
}

func TestInsert(t *testing.T) {
	ctx := context.Background()

	t.Run("map with returning", func(t *testing.T) {
		pool := dbtest.New().OnQuery("RETURNING", dbtest.Row("id", 9))
		e := newEngine(pool, dialect.NewPostgresDialect())
		id, err := New[User]().Using(e).Insert(ctx, map[string]any{"name": "ann", "age": 30})
		require.NoError(t, err)
		assert.Equal(t, int64(9), id.Native())
		assert.Equal(t, `INSERT INTO "users" ("age", "name") VALUES ($1, $2) RETURNING "id"`, pool.SQL()[0])
	})

	t.Run("record leaves the key to the database", func(t *testing.T) {
		pool := dbtest.New().OnExec("INSERT", database.Result{RowsAffected: 1, LastInsertID: 5})
		e := newEngine(pool, dialect.NewMySQLDialect())
		id, err := New[User]().Using(e).Insert(ctx, &User{Name: "bob", Age: 20, Status: "active"})
		require.NoError(t, err)
		assert.Equal(t, value.Int64(5), id)
		assert.Equal(t, "INSERT INTO `users` (`name`, `age`, `status`) VALUES (?, ?, ?)", pool.SQL()[0])
	})

	t.Run("retargeted table has no returning", func(t *testing.T) {
		pool := dbtest.New()
		e := newEngine(pool, dialect.NewPostgresDialect())
		id, err := New[User]().From("archived_users").Using(e).Insert(ctx, map[string]any{"name": "ann"})
		require.NoError(t, err)
		assert.True(t, id.IsNull())
		assert.Equal(t, `INSERT INTO "archived_users" ("name") VALUES ($1)`, pool.SQL()[0])
	})

	t.Run("no columns", func(t *testing.T) {
		pool := dbtest.New()
		e := newEngine(pool, dialect.NewSQLiteDialect())
		_, err := New[User]().Using(e).Insert(ctx, value.NewMap())
		require.NoError(t, err)
		assert.Equal(t, `INSERT INTO "users" DEFAULT VALUES`, pool.SQL()[0])
	})
}

func TestInsertRejectsScope(t *testing.T) {
	tests := []struct {
		name  string
		build func(*Builder[User]) *Builder[User]
	}{
		{"where", func(b *Builder[User]) *Builder[User] { return b.WhereEq("id", 1) }},
		{"join", func(b *Builder[User]) *Builder[User] { return b.Join("posts", "posts.user_id", "=", "users.id") }},
		{"limit", func(b *Builder[User]) *Builder[User] { return b.Limit(1) }},
		{"offset", func(b *Builder[User]) *Builder[User] { return b.Offset(1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := dbtest.New()
			e := newEngine(pool, dialect.NewMySQLDialect())
			_, err := tt.build(New[User]()).Using(e).Insert(context.Background(), map[string]any{"name": "x"})
			assert.ErrorIs(t, err, ormerr.ErrInvalidQuery)
			assert.Zero(t, pool.Count())
		})
	}
}

func TestUpdateAndDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("update binds set before where", func(t *testing.T) {
		pool := dbtest.New().OnExec("UPDATE", database.Result{RowsAffected: 2})
		e := newEngine(pool, dialect.NewPostgresDialect())
		n, err := New[User]().WhereEq("status", "pending").Using(e).Update(ctx, map[string]any{"status": "active"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		st := pool.Statements()[0]
		assert.Equal(t, `UPDATE "users" SET "status" = $1 WHERE "status" = $2`, st.SQL)
		assert.Equal(t, []any{"active", "pending"}, natives(st.Args))
	})

	t.Run("update without values", func(t *testing.T) {
		pool := dbtest.New()
		_, err := New[User]().Using(newEngine(pool, dialect.NewPostgresDialect())).Update(ctx, map[string]any{})
		assert.ErrorIs(t, err, ormerr.ErrInvalidQuery)
		assert.Zero(t, pool.Count())
	})

	t.Run("delete reports affected rows", func(t *testing.T) {
		pool := dbtest.New().OnExec("DELETE", database.Result{RowsAffected: 0})
		e := newEngine(pool, dialect.NewMySQLDialect())
		n, err := New[User]().WhereEq("id", 3).Limit(1).Using(e).Delete(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Equal(t, "DELETE FROM `users` WHERE `id` = ? LIMIT 1", pool.SQL()[0])
	})

	t.Run("truncate", func(t *testing.T) {
		pool := dbtest.New()
		require.NoError(t, New[User]().Using(newEngine(pool, dialect.NewPostgresDialect())).Truncate(ctx))
		assert.Equal(t, []string{`TRUNCATE TABLE "users"`}, pool.SQL())
	})
}

func TestLimitWithJoinOnMutation(t *testing.T) {
	join := func(b *Builder[User]) *Builder[User] {
		return b.Join("posts", "posts.user_id", "=", "users.id").WhereEq("posts.title", "x")
	}
	ctx := context.Background()
	pool := dbtest.New()
	e := newEngine(pool, dialect.NewMySQLDialect())

	_, err := join(New[User]()).Limit(1).Using(e).Update(ctx, map[string]any{"status": "gone"})
	assert.ErrorIs(t, err, ormerr.ErrInvalidQuery)

	_, err = join(New[User]()).Offset(2).Using(e).Delete(ctx)
	assert.ErrorIs(t, err, ormerr.ErrInvalidQuery)

	assert.Zero(t, pool.Count())
}

func TestEagerLoadingBatches(t *testing.T) {
	pool := dbtest.New().
		OnQuery(`FROM "users"`,
			dbtest.Row("id", 1, "name", "ann"),
			dbtest.Row("id", 2, "name", "bob"),
			dbtest.Row("id", 3, "name", "cy"),
		).
		OnQuery(`FROM "posts"`,
			dbtest.Row("id", 10, "title", "hello", "user_id", 1),
			dbtest.Row("id", 11, "title", "again", "user_id", 1),
			dbtest.Row("id", 12, "title", "mine", "user_id", 3),
		)
	e := newEngine(pool, dialect.NewPostgresDialect())

	users, err := New[User]().With("Posts").With("posts", "Posts").Using(e).Get(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, 2, pool.Count(), "one primary query and one per relation")
	assert.Equal(t, `SELECT * FROM "posts" WHERE "posts"."user_id" IN ($1, $2, $3)`, pool.SQL()[1])

	assert.Len(t, users[0].Posts.Items(), 2)
	assert.True(t, users[1].Posts.Loaded())
	assert.Empty(t, users[1].Posts.Items())
	assert.Len(t, users[2].Posts.Items(), 1)
}

func TestEagerLoadingWithoutParents(t *testing.T) {
	pool := dbtest.New()
	e := newEngine(pool, dialect.NewPostgresDialect())

	users, err := New[User]().With("Posts").Using(e).Get(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.Equal(t, 1, pool.Count())
}

func TestEagerLoadingUnknownRelation(t *testing.T) {
	pool := dbtest.New().OnQuery(`FROM "users"`, dbtest.Row("id", 1))
	_, err := New[User]().With("Comments").Using(newEngine(pool, dialect.NewPostgresDialect())).Get(context.Background())
	assert.ErrorIs(t, err, ormerr.ErrInvalidQuery)
}
