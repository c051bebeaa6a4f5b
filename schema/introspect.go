package schema

import (
	"fmt"
	"reflect"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Konsultn-Engineering/ensemble/value"
)

// Registry builds and caches EntityMeta per struct type.
type Registry struct {
	naming    NamingStrategy
	tags      *TagParser
	cacheSize int
	cache     *lru.Cache[reflect.Type, *EntityMeta]
}

type Option func(*Registry)

// WithNamingStrategy sets how field and type names map to columns and tables.
func WithNamingStrategy(strategy NamingStrategy) Option {
	return func(r *Registry) { r.naming = strategy }
}

// WithCacheSize bounds the number of cached entity descriptions.
func WithCacheSize(size int) Option {
	return func(r *Registry) { r.cacheSize = size }
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		naming:    DefaultNamingStrategy(),
		cacheSize: 256,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.tags = NewTagParser(r.naming)
	cache, err := lru.New[reflect.Type, *EntityMeta](r.cacheSize)
	if err != nil {
		// only fails for a non-positive size
		cache, _ = lru.New[reflect.Type, *EntityMeta](256)
	}
	r.cache = cache
	return r
}

var defaultRegistry = NewRegistry()

// Introspect returns the metadata for t using the default registry.
func Introspect(t reflect.Type) (*EntityMeta, error) {
	return defaultRegistry.Introspect(t)
}

// For returns the metadata for T using the default registry.
func For[T any]() (*EntityMeta, error) {
	return defaultRegistry.Introspect(reflect.TypeOf((*T)(nil)).Elem())
}

func (r *Registry) Introspect(t reflect.Type) (*EntityMeta, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("invalid model type: %s", t.Kind())
	}
	if meta, ok := r.cache.Get(t); ok {
		return meta, nil
	}

	meta, pending, err := r.shallowMeta(t)
	if err != nil {
		return nil, err
	}
	for _, p := range pending {
		if err := r.resolveRelation(meta, p); err != nil {
			return nil, fmt.Errorf("%s.%s: %w", meta.Name, p.field.Name, err)
		}
	}

	r.cache.Add(t, meta)
	return meta, nil
}

type pendingRelation struct {
	field reflect.StructField
	index []int
	tag   *ParsedTag
	kind  RelationKind
	typ   reflect.Type
}

// shallowMeta collects columns and the primary key without resolving
// relations, so that related types can be described without recursion.
func (r *Registry) shallowMeta(t reflect.Type) (*EntityMeta, []pendingRelation, error) {
	meta := &EntityMeta{
		Type:        t,
		Name:        t.Name(),
		TableName:   r.tableName(t),
		FieldMap:    make(map[string]*FieldMeta),
		ColumnMap:   make(map[string]*FieldMeta),
		relationMap: make(map[string]*RelationMeta),
	}

	var pending []pendingRelation
	if err := r.collectFields(t, nil, meta, &pending); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", t.Name(), err)
	}

	pk, err := primaryKey(meta)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", t.Name(), err)
	}
	meta.PrimaryKey = pk
	return meta, pending, nil
}

func (r *Registry) tableName(t reflect.Type) string {
	if tn, ok := reflect.New(t).Elem().Interface().(TableNamer); ok {
		return tn.TableName()
	}
	if tn, ok := reflect.New(t).Interface().(TableNamer); ok {
		return tn.TableName()
	}
	return r.naming.TableName(t.Name())
}

func (r *Registry) collectFields(t reflect.Type, parent []int, meta *EntityMeta, pending *[]pendingRelation) error {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		index := append(append([]int(nil), parent...), i)

		tag, err := r.tags.ParseTag(sf.Name, sf.Tag)
		if err != nil {
			return err
		}
		if tag.Skip {
			continue
		}

		if reflect.PointerTo(sf.Type).Implements(relationFieldType) {
			rf := reflect.New(sf.Type).Interface().(RelationField)
			*pending = append(*pending, pendingRelation{
				field: sf,
				index: index,
				tag:   tag,
				kind:  rf.RelationKind(),
				typ:   rf.RelatedType(),
			})
			continue
		}

		if sf.Anonymous && sf.Type.Kind() == reflect.Struct && !ownEncoding(sf.Type) && sf.Tag.Get("db") == "" {
			if err := r.collectFields(sf.Type, index, meta, pending); err != nil {
				return err
			}
			continue
		}

		f := &FieldMeta{
			Name:   sf.Name,
			DBName: tag.ColumnName,
			Type:   sf.Type,
			Index:  index,
			Tag:    tag,
		}
		if tag.Generator != "" {
			f.Generator, _ = generators.Get(tag.Generator)
		}
		if err := addField(meta, f); err != nil {
			return err
		}
	}
	return nil
}

func addField(meta *EntityMeta, f *FieldMeta) error {
	if prev, dup := meta.ColumnMap[f.DBName]; dup {
		return fmt.Errorf("column %q mapped by both %s and %s", f.DBName, prev.Name, f.Name)
	}
	meta.Fields = append(meta.Fields, f)
	meta.FieldMap[f.Name] = f
	meta.ColumnMap[f.DBName] = f
	return nil
}

// primaryKey picks the single field tagged primary, falling back to a field
// named ID or a column named id.
func primaryKey(meta *EntityMeta) (*FieldMeta, error) {
	var tagged []*FieldMeta
	for _, f := range meta.Fields {
		if f.Tag.Primary {
			tagged = append(tagged, f)
		}
	}
	switch len(tagged) {
	case 1:
		return tagged[0], nil
	case 0:
	default:
		return nil, fmt.Errorf("multiple primary keys: %s and %s", tagged[0].Name, tagged[1].Name)
	}
	if f, ok := meta.FieldMap["ID"]; ok {
		return f, nil
	}
	if f, ok := meta.ColumnMap["id"]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("no primary key: tag a field with db:\"primary\" or name it ID")
}

func (r *Registry) resolveRelation(meta *EntityMeta, p pendingRelation) error {
	related := p.typ
	for related.Kind() == reflect.Pointer {
		related = related.Elem()
	}
	if related.Kind() != reflect.Struct {
		return fmt.Errorf("related type %s is not a struct", related)
	}

	other := meta
	if related != meta.Type {
		var err error
		if other, _, err = r.shallowMeta(related); err != nil {
			return err
		}
	}

	rm := &RelationMeta{
		Name:         p.field.Name,
		Kind:         p.kind,
		Index:        p.index,
		Owner:        meta.Type,
		Related:      related,
		RelatedTable: other.TableName,
		RelatedKey:   other.PrimaryKey.DBName,
		OwnerKey:     meta.PrimaryKey.DBName,
	}

	switch p.kind {
	case BelongsTo:
		rm.ForeignKey = firstNonEmpty(p.tag.ForeignKey, ForeignKeyName(other.Name, other.PrimaryKey.DBName))
		rm.LocalKey = firstNonEmpty(p.tag.LocalKey, other.PrimaryKey.DBName)
		if err := addField(meta, &FieldMeta{
			Name:     p.field.Name,
			DBName:   rm.ForeignKey,
			Type:     p.field.Type,
			Index:    p.index,
			Tag:      p.tag,
			Relation: rm,
		}); err != nil {
			return err
		}
	case HasOne, HasMany:
		rm.ForeignKey = firstNonEmpty(p.tag.ForeignKey, ForeignKeyName(meta.Name, meta.PrimaryKey.DBName))
		rm.LocalKey = firstNonEmpty(p.tag.LocalKey, meta.PrimaryKey.DBName)
		if _, ok := meta.ColumnMap[rm.LocalKey]; !ok {
			return fmt.Errorf("local key %q is not a column of %s", rm.LocalKey, meta.Name)
		}
	case BelongsToMany:
		rm.Pivot = firstNonEmpty(p.tag.Pivot, PivotName(meta.Name, other.Name))
		rm.ForeignKey = firstNonEmpty(p.tag.ForeignKey, ForeignKeyName(other.Name, other.PrimaryKey.DBName))
		rm.LocalKey = firstNonEmpty(p.tag.LocalKey, ForeignKeyName(meta.Name, meta.PrimaryKey.DBName))
		if rm.ForeignKey == rm.LocalKey {
			return fmt.Errorf("pivot %s uses %q for both sides of %s.%s: set foreign_key and local_key tags",
				rm.Pivot, rm.LocalKey, meta.Name, rm.Name)
		}
	default:
		return fmt.Errorf("unknown relation kind %d", p.kind)
	}

	meta.Relations = append(meta.Relations, rm)
	meta.relationMap[rm.Name] = rm
	meta.relationMap[toSnakeCase(rm.Name)] = rm
	return nil
}

var (
	timeType        = reflect.TypeOf(time.Time{})
	valueEncoderTyp = reflect.TypeOf((*value.Encoder)(nil)).Elem()
	valueDecoderTyp = reflect.TypeOf((*value.Decoder)(nil)).Elem()
)

// ownEncoding reports types that encode as a single column.
func ownEncoding(t reflect.Type) bool {
	return t == timeType ||
		t.Implements(valueEncoderTyp) ||
		reflect.PointerTo(t).Implements(valueEncoderTyp) ||
		reflect.PointerTo(t).Implements(valueDecoderTyp)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
