package ensemble

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/Konsultn-Engineering/ensemble/engine"
	"github.com/Konsultn-Engineering/ensemble/ormerr"
	"github.com/Konsultn-Engineering/ensemble/query"
	"github.com/Konsultn-Engineering/ensemble/relation"
	"github.com/Konsultn-Engineering/ensemble/schema"
	"github.com/Konsultn-Engineering/ensemble/types"
)

var (
	timeType     = reflect.TypeOf(time.Time{})
	dateTimeType = reflect.TypeOf(types.DateTime{})
	uuidType     = reflect.TypeOf(uuid.UUID{})
	typesUUID    = reflect.TypeOf(types.UUID{})
)

// Find loads the record of type T whose primary key equals key. No such
// row is ErrNotFound.
func Find[T any](ctx context.Context, key any) (*T, error) {
	meta, err := schema.For[T]()
	if err != nil {
		return nil, err
	}
	return query.New[T]().WhereEq(meta.PrimaryKey.DBName, key).First(ctx)
}

// All loads every record of type T.
func All[T any](ctx context.Context) ([]*T, error) {
	return query.New[T]().Get(ctx)
}

// Create inserts record and fills in what the insert decided: generated and
// defaulted keys, timestamps and the auto-increment key reported by the
// database.
//
// Before inserting, a zero primary key is filled by its generator tag, or
// with a random UUID for UUID keys. Zero created_at and updated_at columns,
// and columns tagged auto_now_add or auto_now, are set to the current time.
// A required field still at its zero value fails with *ormerr.RequiredError.
func Create[T any](ctx context.Context, record *T) error {
	meta, rv, err := recordOf(record)
	if err != nil {
		return err
	}
	if err := prepareCreate(meta, rv, time.Now()); err != nil {
		return err
	}

	id, err := query.New[T]().Insert(ctx, record)
	if err != nil {
		return err
	}
	if pk := meta.PrimaryKey; pk.Incrementing() && !id.IsNull() && rv.FieldByIndex(pk.Index).IsZero() {
		if err := meta.DecodeField(pk, id, rv); err != nil {
			return fmt.Errorf("create %s: %w", meta.Name, err)
		}
	}
	return meta.Bind(rv)
}

func prepareCreate(meta *schema.EntityMeta, rv reflect.Value, now time.Time) error {
	for _, f := range meta.Fields {
		if !rv.FieldByIndex(f.Index).IsZero() {
			continue
		}
		var (
			fill any
			err  error
		)
		switch {
		case f.Generator != nil:
			fill, err = f.Generator.Generate()
		case f == meta.PrimaryKey && isUUID(f.Type):
			fill = uuid.New()
		case stampedOnCreate(f):
			fill = now
		}
		if err != nil {
			return fmt.Errorf("generate %s.%s: %w", meta.Name, f.Name, err)
		}
		if fill != nil {
			if err := meta.SetField(f, rv, fill); err != nil {
				return err
			}
		}
	}

	for _, f := range meta.Fields {
		if f.Tag.Required && rv.FieldByIndex(f.Index).IsZero() {
			return &ormerr.RequiredError{Field: f.Name}
		}
	}
	return nil
}

// Save writes every column of record back to its row. Columns stamped on
// update are refreshed first. Anything but exactly one affected row is
// ErrUniqueViolation.
func Save[T any](ctx context.Context, record *T) error {
	meta, rv, err := recordOf(record)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, f := range meta.Fields {
		if stampedOnUpdate(f) {
			if err := meta.SetField(f, rv, now); err != nil {
				return err
			}
		}
	}

	row, err := meta.EncodeStruct(rv)
	if err != nil {
		return err
	}
	pk := meta.PrimaryKey.DBName
	key, _ := row.Get(pk)
	row.Delete(pk)

	n, err := query.New[T]().WhereEq(pk, key).Update(ctx, row)
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("save %s %v: %d rows affected: %w", meta.Name, key, n, ormerr.ErrUniqueViolation)
	}
	return meta.Bind(rv)
}

// Delete removes the row of record and resets record to its zero value.
// Anything but exactly one affected row is ErrUniqueViolation and leaves
// record untouched.
func Delete[T any](ctx context.Context, record *T) error {
	meta, rv, err := recordOf(record)
	if err != nil {
		return err
	}
	key, err := meta.PrimaryKeyValue(rv)
	if err != nil {
		return err
	}
	n, err := query.New[T]().WhereEq(meta.PrimaryKey.DBName, key).Delete(ctx)
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("delete %s %v: %d rows affected: %w", meta.Name, key, n, ormerr.ErrUniqueViolation)
	}
	var zero T
	*record = zero
	return nil
}

// Fresh reloads record from the database by its primary key. record is
// left unchanged.
func Fresh[T any](ctx context.Context, record *T) (*T, error) {
	meta, rv, err := recordOf(record)
	if err != nil {
		return nil, err
	}
	key, err := meta.PrimaryKeyValue(rv)
	if err != nil {
		return nil, err
	}
	return Find[T](ctx, key)
}

// Load eager loads relations onto records that are already in memory, one
// query per relation.
func Load[T any](ctx context.Context, records []*T, relations ...string) error {
	if len(records) == 0 || len(relations) == 0 {
		return nil
	}
	meta, err := schema.For[T]()
	if err != nil {
		return err
	}
	exec, err := engine.From(ctx)
	if err != nil {
		return err
	}
	parents := make([]reflect.Value, 0, len(records))
	for _, r := range records {
		if r == nil {
			return errors.New("load: nil record")
		}
		parents = append(parents, reflect.ValueOf(r).Elem())
	}
	return relation.Load(ctx, exec, meta, parents, relations...)
}

func recordOf[T any](record *T) (*schema.EntityMeta, reflect.Value, error) {
	meta, err := schema.For[T]()
	if err != nil {
		return nil, reflect.Value{}, err
	}
	if record == nil {
		return nil, reflect.Value{}, fmt.Errorf("nil %s record", meta.Name)
	}
	return meta, reflect.ValueOf(record).Elem(), nil
}

func stampedOnCreate(f *schema.FieldMeta) bool {
	return isTime(f.Type) && (f.Tag.AutoNowAdd || f.DBName == "created_at" || stampedOnUpdate(f))
}

func stampedOnUpdate(f *schema.FieldMeta) bool {
	return isTime(f.Type) && (f.Tag.AutoNow || f.DBName == "updated_at")
}

func isTime(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t == timeType || t == dateTimeType
}

func isUUID(t reflect.Type) bool {
	return t == uuidType || t == typesUUID
}
