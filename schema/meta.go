// Package schema derives record metadata from struct types: table name,
// primary key, column fields and relationship descriptors.
package schema

import (
	"reflect"

	"github.com/Konsultn-Engineering/ensemble/value"
)

// RelationKind is the closed set of relationship shapes.
type RelationKind uint8

const (
	BelongsTo RelationKind = iota + 1
	HasOne
	HasMany
	BelongsToMany
)

func (k RelationKind) String() string {
	switch k {
	case BelongsTo:
		return "belongs_to"
	case HasOne:
		return "has_one"
	case HasMany:
		return "has_many"
	case BelongsToMany:
		return "belongs_to_many"
	}
	return "unknown"
}

// Singular reports whether the relation resolves to at most one record.
func (k RelationKind) Singular() bool {
	return k == BelongsTo || k == HasOne
}

// RelationField is implemented (on the pointer) by relationship field types.
type RelationField interface {
	RelationKind() RelationKind
	RelatedType() reflect.Type
	// BindRelation attaches the resolved descriptor and the key identifying
	// the owner's side of the relation.
	BindRelation(meta *RelationMeta, key value.Value)
}

var relationFieldType = reflect.TypeOf((*RelationField)(nil)).Elem()

// TableNamer overrides the derived table name.
type TableNamer interface {
	TableName() string
}

type EntityMeta struct {
	Type       reflect.Type
	Name       string
	TableName  string
	PrimaryKey *FieldMeta
	Fields     []*FieldMeta          // column fields in declaration order
	FieldMap   map[string]*FieldMeta // Go field name -> field
	ColumnMap  map[string]*FieldMeta // column name -> field
	Relations  []*RelationMeta

	relationMap map[string]*RelationMeta
}

type FieldMeta struct {
	Name      string
	DBName    string
	Type      reflect.Type
	Index     []int
	Tag       *ParsedTag
	Generator IDGenerator
	Relation  *RelationMeta // set when the column is the key of a BelongsTo
}

// Incrementing reports whether the field is an integer primary key left to
// the database to assign.
func (f *FieldMeta) Incrementing() bool {
	return f.Generator == nil && isInteger(f.Type.Kind())
}

// RelationMeta describes one relationship field. Keys are resolved when the
// owning type is introspected and never change afterwards.
//
// Key columns per kind:
//
//	BelongsTo      ForeignKey on the owner table, matched against LocalKey on the related table
//	HasOne/HasMany ForeignKey on the related table, matched against LocalKey on the owner table
//	BelongsToMany  Pivot.ForeignKey references the related table, Pivot.LocalKey references the owner
type RelationMeta struct {
	Name         string
	Kind         RelationKind
	Index        []int
	Owner        reflect.Type
	Related      reflect.Type
	RelatedTable string
	RelatedKey   string // primary key column of the related record
	OwnerKey     string // primary key column of the owner
	ForeignKey   string
	LocalKey     string
	Pivot        string
}

// Columns returns the column names in declaration order.
func (m *EntityMeta) Columns() []string {
	out := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		out[i] = f.DBName
	}
	return out
}

// Relation finds a relation by Go field name or by its snake_case form.
func (m *EntityMeta) Relation(name string) (*RelationMeta, bool) {
	rm, ok := m.relationMap[name]
	return rm, ok
}

func (m *EntityMeta) Column(name string) (*FieldMeta, bool) {
	f, ok := m.ColumnMap[name]
	return f, ok
}
