// Package relation provides the relationship field types and the resolver
// that loads them, one record at a time or in batches.
//
// A relation starts unloaded. Loading it, lazily through Get or eagerly
// through Load, moves it to loaded for good, even when nothing matched.
package relation

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/Konsultn-Engineering/ensemble/engine"
	"github.com/Konsultn-Engineering/ensemble/schema"
	"github.com/Konsultn-Engineering/ensemble/value"
)

// loader is the kind-independent view of a relation field used by the resolver.
type loader interface {
	schema.RelationField
	Descriptor() *schema.RelationMeta
	ownerKey() value.Value
	fill(records []any)
}

type state[R any] struct {
	meta   *schema.RelationMeta
	key    value.Value
	loaded bool
	items  []*R
}

func (s *state[R]) RelatedType() reflect.Type {
	return reflect.TypeOf((*R)(nil)).Elem()
}

// BindRelation attaches the descriptor and the owner-side key. Loaded
// records are kept; a relation never goes back to unloaded, so a changed key
// takes effect when the owner is queried again.
func (s *state[R]) BindRelation(meta *schema.RelationMeta, key value.Value) {
	s.meta, s.key = meta, key
}

func (s *state[R]) ownerKey() value.Value { return s.key }

func (s *state[R]) fill(records []any) {
	s.items = make([]*R, 0, len(records))
	for _, r := range records {
		s.items = append(s.items, r.(*R))
	}
	s.loaded = true
}

// Loaded reports whether the relation has been fetched.
func (s *state[R]) Loaded() bool { return s.loaded }

// Descriptor returns the resolved relation metadata, nil until bound.
func (s *state[R]) Descriptor() *schema.RelationMeta { return s.meta }

func (s *state[R]) first() *R {
	if len(s.items) == 0 {
		return nil
	}
	return s.items[0]
}

func (s *state[R]) load(ctx context.Context, self loader) error {
	if s.loaded {
		return nil
	}
	if s.meta == nil {
		return fmt.Errorf("%s relation to %s is not bound to an owner record", self.RelationKind(), s.RelatedType())
	}
	exec, err := engine.From(ctx)
	if err != nil {
		return err
	}
	return resolve(ctx, exec, s.meta, []loader{self})
}

// BelongsTo is the owning side of a one-to-one or many-to-one relation. Its
// key is stored in the owner's foreign key column.
type BelongsTo[R any] struct{ state[R] }

func (r *BelongsTo[R]) RelationKind() schema.RelationKind { return schema.BelongsTo }

// Get returns the related record, fetching it on first use. It is nil when
// the key is null or matches nothing.
func (r *BelongsTo[R]) Get(ctx context.Context) (*R, error) {
	if err := r.load(ctx, r); err != nil {
		return nil, err
	}
	return r.first(), nil
}

// Value returns the loaded record without fetching.
func (r *BelongsTo[R]) Value() *R { return r.first() }

// Key is the foreign key value.
func (r *BelongsTo[R]) Key() value.Value { return r.key }

// SetKey points the relation at another record by key.
func (r *BelongsTo[R]) SetKey(key any) error {
	v, err := value.Encode(key)
	if err != nil {
		return err
	}
	r.BindRelation(r.meta, v)
	return nil
}

// Associate points the relation at related and marks it loaded with it.
func (r *BelongsTo[R]) Associate(related *R) error {
	meta, err := schema.Introspect(r.RelatedType())
	if err != nil {
		return err
	}
	col := meta.PrimaryKey
	if r.meta != nil {
		if f, ok := meta.Column(r.meta.LocalKey); ok {
			col = f
		}
	}
	key, err := meta.EncodeField(col, reflect.ValueOf(related).Elem())
	if err != nil {
		return err
	}
	r.key = key
	r.items = []*R{related}
	r.loaded = true
	return nil
}

func (r BelongsTo[R]) EncodeValue() (value.Value, error) { return r.key, nil }

func (r *BelongsTo[R]) DecodeValue(v value.Value) error {
	r.BindRelation(r.meta, v)
	return nil
}

func (r BelongsTo[R]) MarshalJSON() ([]byte, error) {
	return marshalOne(r.loaded, r.first())
}

// HasOne is the inverse of a one-to-one BelongsTo.
type HasOne[R any] struct{ state[R] }

func (r *HasOne[R]) RelationKind() schema.RelationKind { return schema.HasOne }

func (r *HasOne[R]) Get(ctx context.Context) (*R, error) {
	if err := r.load(ctx, r); err != nil {
		return nil, err
	}
	return r.first(), nil
}

func (r *HasOne[R]) Value() *R { return r.first() }

func (r HasOne[R]) MarshalJSON() ([]byte, error) {
	return marshalOne(r.loaded, r.first())
}

// HasMany is the inverse of a many-to-one BelongsTo.
type HasMany[R any] struct{ state[R] }

func (r *HasMany[R]) RelationKind() schema.RelationKind { return schema.HasMany }

// Get returns the related records, fetching them on first use.
func (r *HasMany[R]) Get(ctx context.Context) ([]*R, error) {
	if err := r.load(ctx, r); err != nil {
		return nil, err
	}
	return r.items, nil
}

// Items returns the loaded records without fetching.
func (r *HasMany[R]) Items() []*R { return r.items }

func (r HasMany[R]) MarshalJSON() ([]byte, error) {
	return marshalMany(r.loaded, r.items)
}

// BelongsToMany links records through a pivot table.
type BelongsToMany[R any] struct{ state[R] }

func (r *BelongsToMany[R]) RelationKind() schema.RelationKind { return schema.BelongsToMany }

func (r *BelongsToMany[R]) Get(ctx context.Context) ([]*R, error) {
	if err := r.load(ctx, r); err != nil {
		return nil, err
	}
	return r.items, nil
}

func (r *BelongsToMany[R]) Items() []*R { return r.items }

func (r BelongsToMany[R]) MarshalJSON() ([]byte, error) {
	return marshalMany(r.loaded, r.items)
}

func marshalOne[R any](loaded bool, item *R) ([]byte, error) {
	if !loaded || item == nil {
		return []byte("null"), nil
	}
	return json.Marshal(item)
}

func marshalMany[R any](loaded bool, items []*R) ([]byte, error) {
	if !loaded {
		return []byte("null"), nil
	}
	if items == nil {
		items = []*R{}
	}
	return json.Marshal(items)
}

var (
	_ loader = (*BelongsTo[struct{}])(nil)
	_ loader = (*HasOne[struct{}])(nil)
	_ loader = (*HasMany[struct{}])(nil)
	_ loader = (*BelongsToMany[struct{}])(nil)
)
