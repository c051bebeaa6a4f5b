package relation

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Konsultn-Engineering/ensemble/database/dbtest"
	"github.com/Konsultn-Engineering/ensemble/dialect"
	"github.com/Konsultn-Engineering/ensemble/engine"
	"github.com/Konsultn-Engineering/ensemble/ormerr"
	"github.com/Konsultn-Engineering/ensemble/schema"
	"github.com/Konsultn-Engineering/ensemble/value"
	"github.com/Konsultn-Engineering/ensemble/visitor"
)

type Author struct {
	ID      int64               `json:"id"`
	Name    string              `json:"name"`
	Posts   HasMany[Post]       `json:"posts"`
	Profile HasOne[Profile]     `json:"profile"`
	Roles   BelongsToMany[Role] `json:"roles"`
}

type Post struct {
	ID     int64             `json:"id"`
	Title  string            `json:"title"`
	Author BelongsTo[Author] `json:"author"`
}

type Profile struct {
	ID       int64  `json:"id"`
	Bio      string `json:"bio"`
	AuthorID int64  `json:"author_id"`
}

type Role struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func newEngine(pool *dbtest.Pool) *engine.Engine {
	return engine.New(pool, dialect.NewPostgresDialect(),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func parents[T any](records []*T) []reflect.Value {
	out := make([]reflect.Value, len(records))
	for i, r := range records {
		out[i] = reflect.ValueOf(r).Elem()
	}
	return out
}

func metaOf[T any](t *testing.T) *schema.EntityMeta {
	t.Helper()
	meta, err := schema.For[T]()
	require.NoError(t, err)
	return meta
}

func TestStatement(t *testing.T) {
	authors := metaOf[Author](t)
	posts := metaOf[Post](t)
	rel := func(m *schema.EntityMeta, name string) *schema.RelationMeta {
		rm, ok := m.Relation(name)
		require.True(t, ok, name)
		return rm
	}

	tests := []struct {
		name string
		rm   *schema.RelationMeta
		keys []value.Value
		want string
	}{
		{
			name: "belongs to single key",
			rm:   rel(posts, "Author"),
			keys: []value.Value{value.Int64(1)},
			want: `SELECT * FROM "authors" WHERE "authors"."id" = $1`,
		},
		{
			name: "has many",
			rm:   rel(authors, "posts"),
			keys: []value.Value{value.Int64(1), value.Int64(2)},
			want: `SELECT * FROM "posts" WHERE "posts"."author_id" IN ($1, $2)`,
		},
		{
			name: "has one",
			rm:   rel(authors, "Profile"),
			keys: []value.Value{value.Int64(4)},
			want: `SELECT * FROM "profiles" WHERE "profiles"."author_id" = $1`,
		},
		{
			name: "belongs to many",
			rm:   rel(authors, "Roles"),
			keys: []value.Value{value.Int64(1), value.Int64(2)},
			want: `SELECT "roles".*, "author_role"."author_id" AS "pivot_author_id" FROM "roles"` +
				` INNER JOIN "author_role" ON "author_role"."role_id" = "roles"."id"` +
				` WHERE "author_role"."author_id" IN ($1, $2)`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := Statement(tt.rm, tt.keys)
			require.NoError(t, err)
			sql, args, err := visitor.Build(dialect.NewPostgresDialect(), stmt)
			require.NoError(t, err)
			assert.Equal(t, tt.want, sql)
			assert.Equal(t, tt.keys, args)
		})
	}

	_, err := Statement(rel(posts, "Author"), nil)
	assert.ErrorIs(t, err, ormerr.ErrInvalidQuery)
}

func TestEagerHasManyIssuesOneQuery(t *testing.T) {
	pool := dbtest.New().OnQuery(`FROM "posts"`,
		dbtest.Row("id", 10, "title", "a", "author_id", 1),
		dbtest.Row("id", 11, "title", "b", "author_id", 2),
		dbtest.Row("id", 12, "title", "c", "author_id", 1),
		dbtest.Row("id", 13, "title", "stray", "author_id", 9),
		dbtest.Row("id", 14, "title", "orphan", "author_id", nil),
	)
	e := newEngine(pool)
	authors := []*Author{{ID: 1}, {ID: 2}, {ID: 3}}

	err := Load(context.Background(), e, metaOf[Author](t), parents(authors), "Posts")
	require.NoError(t, err)
	require.Equal(t, 1, pool.Count())
	assert.Equal(t, []value.Value{value.Int64(1), value.Int64(2), value.Int64(3)}, pool.Statements()[0].Args)

	titles := func(a *Author) []string {
		var out []string
		for _, p := range a.Posts.Items() {
			out = append(out, p.Title)
		}
		return out
	}
	assert.Equal(t, []string{"a", "c"}, titles(authors[0]))
	assert.Equal(t, []string{"b"}, titles(authors[1]))

	assert.True(t, authors[2].Posts.Loaded(), "no match still counts as loaded")
	assert.Empty(t, authors[2].Posts.Items())

	for _, a := range authors {
		for _, p := range a.Posts.Items() {
			assert.Equal(t, value.Int64(a.ID), p.Author.Key(), "post %d attached to author %d", p.ID, a.ID)
		}
	}
}

func TestEagerBelongsToDedupesKeys(t *testing.T) {
	pool := dbtest.New().OnQuery(`FROM "authors"`, dbtest.Row("id", 1, "name", "ann"))
	e := newEngine(pool)

	posts := []*Post{{ID: 1}, {ID: 2}, {ID: 3}}
	require.NoError(t, posts[0].Author.SetKey(1))
	require.NoError(t, posts[1].Author.SetKey(1))

	meta := metaOf[Post](t)
	for _, p := range posts {
		require.NoError(t, meta.Bind(reflect.ValueOf(p).Elem()))
	}

	require.NoError(t, Load(context.Background(), e, meta, parents(posts), "author"))
	require.Equal(t, 1, pool.Count())
	assert.Equal(t, `SELECT * FROM "authors" WHERE "authors"."id" = $1`, pool.SQL()[0])

	for _, p := range posts[:2] {
		require.NotNil(t, p.Author.Value())
		assert.Equal(t, "ann", p.Author.Value().Name)
	}
	assert.True(t, posts[2].Author.Loaded())
	assert.Nil(t, posts[2].Author.Value(), "null key resolves to nothing")
}

func TestNullKeysSkipTheQuery(t *testing.T) {
	pool := dbtest.New()
	e := newEngine(pool)
	posts := []*Post{{ID: 1}, {ID: 2}}

	require.NoError(t, Load(context.Background(), e, metaOf[Post](t), parents(posts), "Author"))
	assert.Zero(t, pool.Count())
	for _, p := range posts {
		assert.True(t, p.Author.Loaded())
	}
}

func TestEagerHasOneTakesFirstMatch(t *testing.T) {
	pool := dbtest.New().OnQuery(`FROM "profiles"`,
		dbtest.Row("id", 1, "bio", "first", "author_id", 7),
		dbtest.Row("id", 2, "bio", "second", "author_id", 7),
	)
	authors := []*Author{{ID: 7}, {ID: 8}}

	require.NoError(t, Load(context.Background(), newEngine(pool), metaOf[Author](t), parents(authors), "profile"))
	require.NotNil(t, authors[0].Profile.Value())
	assert.Equal(t, "first", authors[0].Profile.Value().Bio)
	assert.True(t, authors[1].Profile.Loaded())
	assert.Nil(t, authors[1].Profile.Value())
}

func TestEagerBelongsToManyMatchesThroughPivot(t *testing.T) {
	pool := dbtest.New().OnQuery(`FROM "roles"`,
		dbtest.Row("id", 1, "name", "admin", "pivot_author_id", 1),
		dbtest.Row("id", 2, "name", "editor", "pivot_author_id", 1),
		dbtest.Row("id", 2, "name", "editor", "pivot_author_id", 2),
	)
	authors := []*Author{{ID: 1}, {ID: 2}}

	require.NoError(t, Load(context.Background(), newEngine(pool), metaOf[Author](t), parents(authors), "Roles"))
	require.Equal(t, 1, pool.Count())
	assert.Contains(t, pool.SQL()[0], `INNER JOIN "author_role"`)

	names := func(a *Author) []string {
		var out []string
		for _, r := range a.Roles.Items() {
			out = append(out, r.Name)
		}
		return out
	}
	assert.Equal(t, []string{"admin", "editor"}, names(authors[0]))
	assert.Equal(t, []string{"editor"}, names(authors[1]))
	assert.NotSame(t, authors[0].Roles.Items()[1], authors[1].Roles.Items()[0])
}

func TestLoadArguments(t *testing.T) {
	meta := metaOf[Author](t)

	t.Run("unknown relation", func(t *testing.T) {
		pool := dbtest.New()
		err := Load(context.Background(), newEngine(pool), meta, parents([]*Author{{ID: 1}}), "Comments")
		assert.ErrorIs(t, err, ormerr.ErrInvalidQuery)
		assert.Zero(t, pool.Count())
	})

	t.Run("no parents", func(t *testing.T) {
		pool := dbtest.New()
		require.NoError(t, Load(context.Background(), newEngine(pool), meta, nil, "Posts"))
		assert.Zero(t, pool.Count())
	})

	t.Run("already loaded", func(t *testing.T) {
		pool := dbtest.New()
		e := newEngine(pool)
		authors := []*Author{{ID: 1}}
		require.NoError(t, Load(context.Background(), e, meta, parents(authors), "Posts"))
		require.NoError(t, Load(context.Background(), e, meta, parents(authors), "Posts"))
		assert.Equal(t, 1, pool.Count())
	})
}

func TestLazyGet(t *testing.T) {
	pool := dbtest.New().OnQuery(`FROM "posts"`, dbtest.Row("id", 3, "title", "x", "author_id", 5))
	ctx := engine.WithContext(context.Background(), newEngine(pool))

	meta := metaOf[Author](t)
	var a Author
	require.NoError(t, meta.Decode(value.MapOf(dbtest.Row("id", 5, "name", "eve")), &a))
	assert.False(t, a.Posts.Loaded())

	first, err := a.Posts.Get(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)

	again, err := a.Posts.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, 1, pool.Count(), "second Get is served from the loaded state")
}

func TestGetOnUnboundRelation(t *testing.T) {
	var a Author
	_, err := a.Posts.Get(context.Background())
	assert.Error(t, err)
}

func TestLoadedStateIsOneWay(t *testing.T) {
	pool := dbtest.New()
	ctx := engine.WithContext(context.Background(), newEngine(pool))

	var p Post
	require.NoError(t, p.Author.Associate(&Author{ID: 1, Name: "ann"}))
	assert.True(t, p.Author.Loaded())
	assert.Equal(t, value.Int64(1), p.Author.Key())

	require.NoError(t, p.Author.SetKey(2))
	assert.Equal(t, value.Int64(2), p.Author.Key())
	assert.True(t, p.Author.Loaded(), "a changed key does not unload")

	meta := metaOf[Post](t)
	require.NoError(t, meta.Bind(reflect.ValueOf(&p).Elem()))
	assert.True(t, p.Author.Loaded(), "rebinding does not unload")

	got, err := p.Author.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ann", got.Name)
	assert.Zero(t, pool.Count())
}

func TestJSONProjection(t *testing.T) {
	a := Author{ID: 1, Name: "ann"}

	out, err := json.Marshal(a)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"name":"ann","posts":null,"profile":null,"roles":null}`, string(out))

	a.Posts.fill(nil)
	a.Roles.fill([]any{&Role{ID: 2, Name: "admin"}})
	out, err = json.Marshal(a)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"name":"ann","posts":[],"profile":null,"roles":[{"id":2,"name":"admin"}]}`, string(out))

	var p Post
	p.ID = 4
	require.NoError(t, p.Author.Associate(&a))
	out, err = json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"author":{"id":1,"name":"ann"`)
}
