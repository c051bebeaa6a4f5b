package relation

import (
	"context"
	"fmt"
	"reflect"

	"github.com/Konsultn-Engineering/ensemble/ast"
	"github.com/Konsultn-Engineering/ensemble/engine"
	"github.com/Konsultn-Engineering/ensemble/ormerr"
	"github.com/Konsultn-Engineering/ensemble/schema"
	"github.com/Konsultn-Engineering/ensemble/value"
	"github.com/Konsultn-Engineering/ensemble/visitor"
)

// PivotPrefix prefixes the alias under which a many-to-many query returns
// the pivot column that identifies the owner.
const PivotPrefix = "pivot_"

// Statement builds the select for a relation scoped to the given owner-side
// keys. A single key is compared with =, several with IN. One-to-one shapes
// get no LIMIT; Match keeps the first row per owner.
func Statement(rm *schema.RelationMeta, keys []value.Value) (*ast.SelectStmt, error) {
	if len(keys) == 0 {
		return nil, ormerr.InvalidQuery("relation %s queried without keys", rm.Name)
	}
	stmt := &ast.SelectStmt{From: ast.NewTable(rm.RelatedTable), Where: &ast.WhereClause{}}

	var column string
	switch rm.Kind {
	case schema.BelongsTo:
		column = rm.RelatedTable + "." + rm.LocalKey
	case schema.HasOne, schema.HasMany:
		column = rm.RelatedTable + "." + rm.ForeignKey
	case schema.BelongsToMany:
		column = rm.Pivot + "." + rm.LocalKey
		stmt.Columns = []ast.Node{
			&ast.Column{Table: rm.RelatedTable, Name: "*"},
			&ast.Column{Table: rm.Pivot, Name: rm.LocalKey, Alias: PivotPrefix + rm.LocalKey},
		}
		stmt.Joins = []*ast.JoinClause{ast.JoinOn(ast.JoinInner, rm.Pivot,
			rm.Pivot+"."+rm.ForeignKey, ast.OpEqual, rm.RelatedTable+"."+rm.RelatedKey)}
	default:
		return nil, fmt.Errorf("unknown relation kind %d", rm.Kind)
	}

	if len(keys) == 1 {
		stmt.Where.Add(ast.And, ast.Eq(column, keys[0]))
	} else {
		stmt.Where.Add(ast.And, ast.In(column, keys))
	}
	return stmt, nil
}

// matchColumn is the row column compared against owner keys.
func matchColumn(rm *schema.RelationMeta) string {
	switch rm.Kind {
	case schema.BelongsTo:
		return rm.LocalKey
	case schema.BelongsToMany:
		return PivotPrefix + rm.LocalKey
	}
	return rm.ForeignKey
}

// Match decodes rows into related records and groups them by the owner key
// they belong to. Rows whose match column is missing or null belong to no one.
func Match(rm *schema.RelationMeta, rows []value.Value) (map[string][]any, error) {
	related, err := schema.Introspect(rm.Related)
	if err != nil {
		return nil, err
	}
	column := matchColumn(rm)
	out := make(map[string][]any)
	for _, row := range rows {
		m := row.Map()
		if m == nil {
			return nil, &value.DecodeError{Kind: value.ShapeMismatch, Type: rm.Related, Got: row.Kind()}
		}
		fk, _ := m.Get(column)
		key, ok := value.KeyString(fk)
		if !ok {
			continue
		}
		ptr := reflect.New(rm.Related)
		if err := related.DecodeStruct(row, ptr.Elem()); err != nil {
			return nil, fmt.Errorf("decode %s: %w", rm.Name, err)
		}
		out[key] = append(out[key], ptr.Interface())
	}
	return out, nil
}

// resolve runs one query for every loader of the same relation and hands
// each its matches. Loaders with a null key are loaded empty without a query.
func resolve(ctx context.Context, exec engine.Executor, rm *schema.RelationMeta, loaders []loader) error {
	keys := make([]value.Value, 0, len(loaders))
	seen := make(map[string]struct{}, len(loaders))
	for _, l := range loaders {
		k, ok := value.KeyString(l.ownerKey())
		if !ok {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, l.ownerKey())
	}

	var groups map[string][]any
	if len(keys) > 0 {
		stmt, err := Statement(rm, keys)
		if err != nil {
			return err
		}
		query, args, err := visitor.Build(exec.Dialect(), stmt)
		if err != nil {
			return err
		}
		rows, err := exec.ExecuteRows(ctx, query, args)
		if err != nil {
			return err
		}
		if groups, err = Match(rm, rows); err != nil {
			return err
		}
	}

	for _, l := range loaders {
		var matched []any
		if k, ok := value.KeyString(l.ownerKey()); ok {
			matched = groups[k]
		}
		if rm.Kind.Singular() && len(matched) > 1 {
			matched = matched[:1]
		}
		l.fill(matched)
	}
	return nil
}

// Load resolves the named relations for every parent with one query per
// relation. parents must be addressable values of meta's type, as produced
// by decoding into a slice of pointers. Relations already loaded on every
// parent are skipped. Zero parents issue no queries.
func Load(ctx context.Context, exec engine.Executor, meta *schema.EntityMeta, parents []reflect.Value, names ...string) error {
	if len(parents) == 0 {
		return nil
	}
	for _, name := range names {
		rm, ok := meta.Relation(name)
		if !ok {
			return ormerr.InvalidQuery("%s has no relation %q", meta.Name, name)
		}

		loaders := make([]loader, 0, len(parents))
		for _, p := range parents {
			fv := p.FieldByIndex(rm.Index)
			if !fv.CanAddr() {
				return fmt.Errorf("load %s.%s: parent is not addressable", meta.Name, rm.Name)
			}
			l := fv.Addr().Interface().(loader)
			if l.Descriptor() == nil {
				l.BindRelation(rm, ownerKey(meta, rm, p))
			}
			loaders = append(loaders, l)
		}
		if allLoaded(loaders) {
			continue
		}
		if err := resolve(ctx, exec, rm, loaders); err != nil {
			return fmt.Errorf("load %s.%s: %w", meta.Name, rm.Name, err)
		}
	}
	return nil
}

// ownerKey computes the owner-side key of an unbound relation.
func ownerKey(meta *schema.EntityMeta, rm *schema.RelationMeta, owner reflect.Value) value.Value {
	if err := meta.Bind(owner); err != nil {
		return value.Null()
	}
	return owner.FieldByIndex(rm.Index).Addr().Interface().(loader).ownerKey()
}

func allLoaded(loaders []loader) bool {
	for _, l := range loaders {
		if !l.(interface{ Loaded() bool }).Loaded() {
			return false
		}
	}
	return true
}
