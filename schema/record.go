package schema

import (
	"fmt"
	"reflect"

	"github.com/Konsultn-Engineering/ensemble/value"
)

// Encode returns the column values of record, a struct or pointer to struct
// of the described type, in declaration order.
func (m *EntityMeta) Encode(record any) (*value.Map, error) {
	rv, err := m.structValue(record)
	if err != nil {
		return nil, err
	}
	return m.EncodeStruct(rv)
}

func (m *EntityMeta) EncodeStruct(rv reflect.Value) (*value.Map, error) {
	rv = addressable(rv)
	out := value.NewMap()
	for _, f := range m.Fields {
		v, err := m.EncodeField(f, rv)
		if err != nil {
			return nil, err
		}
		out.Set(f.DBName, v)
	}
	return out, nil
}

// EncodeField encodes a single column of the struct rv.
func (m *EntityMeta) EncodeField(f *FieldMeta, rv reflect.Value) (value.Value, error) {
	fv := addressable(rv).FieldByIndex(f.Index)
	var (
		v   value.Value
		err error
	)
	if f.Tag.Enum != nil {
		for fv.Kind() == reflect.Pointer {
			if fv.IsNil() {
				return value.Null(), nil
			}
			fv = fv.Elem()
		}
		v, err = f.Tag.Enum.encode(fv)
	} else {
		v, err = value.EncodeReflect(fv)
	}
	if err != nil {
		return value.Null(), fmt.Errorf("field %s: %w", f.Name, err)
	}
	return v, nil
}

// Decode fills dest, a pointer to the described struct, from a row map and
// binds its relation fields. Columns without a matching field are ignored.
func (m *EntityMeta) Decode(row value.Value, dest any) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Type() != m.Type {
		return fmt.Errorf("decode target must be *%s, got %T", m.Type, dest)
	}
	return m.DecodeStruct(row, rv.Elem())
}

func (m *EntityMeta) DecodeStruct(row value.Value, rv reflect.Value) error {
	if row.Kind() != value.KindMap {
		return &value.DecodeError{Kind: value.ShapeMismatch, Type: m.Type, Got: row.Kind()}
	}
	var err error
	row.Map().Range(func(col string, v value.Value) bool {
		f, ok := m.ColumnMap[col]
		if !ok {
			return true
		}
		err = m.DecodeField(f, v, rv)
		return err == nil
	})
	if err != nil {
		return err
	}
	return m.Bind(rv)
}

// DecodeField stores v into the field f of the struct rv.
func (m *EntityMeta) DecodeField(f *FieldMeta, v value.Value, rv reflect.Value) error {
	fv := rv.FieldByIndex(f.Index)
	var err error
	if f.Tag.Enum != nil {
		err = decodeEnumField(f.Tag.Enum, v, fv)
	} else {
		err = value.DecodeReflect(v, fv)
	}
	if err != nil {
		return value.WithField(err, f.Name)
	}
	return nil
}

func decodeEnumField(e *Enum, v value.Value, fv reflect.Value) error {
	if fv.Kind() != reflect.Pointer {
		return e.decode(v, fv)
	}
	if v.IsNull() {
		fv.Set(reflect.Zero(fv.Type()))
		return nil
	}
	if fv.IsNil() {
		fv.Set(reflect.New(fv.Type().Elem()))
	}
	return decodeEnumField(e, v, fv.Elem())
}

// SetField encodes v and stores it into f, applying the same coercions as
// row decoding.
func (m *EntityMeta) SetField(f *FieldMeta, rv reflect.Value, v any) error {
	ev, err := value.Encode(v)
	if err != nil {
		return fmt.Errorf("field %s: %w", f.Name, err)
	}
	return m.DecodeField(f, ev, rv)
}

// PrimaryKeyValue encodes the primary key of the struct rv.
func (m *EntityMeta) PrimaryKeyValue(rv reflect.Value) (value.Value, error) {
	return m.EncodeField(m.PrimaryKey, rv)
}

// Bind hands every relation field its descriptor and the owner-side key
// taken from the current field values of rv.
func (m *EntityMeta) Bind(rv reflect.Value) error {
	if len(m.Relations) == 0 {
		return nil
	}
	if !rv.CanAddr() {
		return fmt.Errorf("bind %s: value is not addressable", m.Name)
	}
	for _, rm := range m.Relations {
		fv := rv.FieldByIndex(rm.Index)
		var (
			key value.Value
			err error
		)
		switch rm.Kind {
		case BelongsTo:
			key, err = value.EncodeReflect(fv)
		case HasOne, HasMany:
			key, err = m.EncodeField(m.ColumnMap[rm.LocalKey], rv)
		case BelongsToMany:
			key, err = m.PrimaryKeyValue(rv)
		}
		if err != nil {
			return fmt.Errorf("bind %s.%s: %w", m.Name, rm.Name, err)
		}
		fv.Addr().Interface().(RelationField).BindRelation(rm, key)
	}
	return nil
}

func (m *EntityMeta) structValue(record any) (reflect.Value, error) {
	rv := reflect.ValueOf(record)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Value{}, fmt.Errorf("nil %s record", m.Name)
		}
		rv = rv.Elem()
	}
	if rv.Type() != m.Type {
		return reflect.Value{}, fmt.Errorf("expected %s, got %s", m.Type, rv.Type())
	}
	return rv, nil
}

func addressable(rv reflect.Value) reflect.Value {
	if rv.CanAddr() {
		return rv
	}
	cp := reflect.New(rv.Type()).Elem()
	cp.Set(rv)
	return cp
}
