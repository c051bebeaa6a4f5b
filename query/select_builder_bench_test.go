package query

import (
	"testing"

	"github.com/Konsultn-Engineering/ensemble/dialect"
)

type BenchUser struct {
	ID        int64  `db:"id"`
	Name      string `db:"name"`
	Email     string `db:"email"`
	Active    bool   `db:"active"`
	CreatedAt string `db:"created_at"`
}

func BenchmarkSimpleSelect(b *testing.B) {
	d := dialect.NewPostgresDialect()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		sql, args, err := New[BenchUser]().ToSQL(d)
		if err != nil {
			b.Fatal(err)
		}
		_ = sql
		_ = args
	}
}

func BenchmarkSimpleSelectWithWhere(b *testing.B) {
	d := dialect.NewPostgresDialect()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		sql, args, err := New[BenchUser]().WhereEq("id", int64(123)).ToSQL(d)
		if err != nil {
			b.Fatal(err)
		}
		_ = sql
		_ = args
	}
}

func BenchmarkComplexSelect(b *testing.B) {
	d := dialect.NewMySQLDialect()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		builder := New[BenchUser]().
			Where("active", "=", true).
			WhereIn("id", []int64{1, 2, 3, 4, 5}).
			WhereGroup(func(g *Builder[BenchUser]) {
				g.Where("name", "like", "a%").OrWhere("email", "like", "%@example.com")
			}).
			OrderBy("created_at", "desc").
			Limit(20).
			Offset(40)
		sql, args, err := builder.ToSQL(d)
		if err != nil {
			b.Fatal(err)
		}
		_ = sql
		_ = args
	}
}

func BenchmarkSelectWithJoins(b *testing.B) {
	d := dialect.NewPostgresDialect()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		builder := New[BenchUser]().
			Join("profiles", "profiles.bench_user_id", "=", "bench_users.id").
			LeftJoin("teams", "teams.id", "=", "profiles.team_id").
			WhereEq("teams.name", "core")
		sql, args, err := builder.ToSQL(d)
		if err != nil {
			b.Fatal(err)
		}
		_ = sql
		_ = args
	}
}

func BenchmarkParameterHandling(b *testing.B) {
	d := dialect.NewPostgresDialect()

	b.Run("FewParams", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			_, _, err := New[BenchUser]().WhereEq("id", 1).WhereEq("active", true).ToSQL(d)
			if err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("ManyParams", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			builder := New[BenchUser]()
			for j := 0; j < 10; j++ {
				builder.WhereEq("col"+string(rune('0'+j)), j)
			}
			_, _, err := builder.ToSQL(d)
			if err != nil {
				b.Fatal(err)
			}
		}
	})
}

func BenchmarkConcurrentUsage(b *testing.B) {
	d := dialect.NewMySQLDialect()

	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _, err := New[BenchUser]().
				Where("id", ">", 100).
				OrderBy("name", "asc").
				Limit(10).
				ToSQL(d)
			if err != nil {
				b.Fatal(err)
			}
		}
	})
}
