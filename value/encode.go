package value

import (
	"encoding/json"
	"reflect"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Encoder is implemented by field types that choose their own database form.
type Encoder interface {
	EncodeValue() (Value, error)
}

// Decoder is implemented by pointer receivers that rebuild themselves from a
// database value.
type Decoder interface {
	DecodeValue(Value) error
}

var (
	encoderType = reflect.TypeOf((*Encoder)(nil)).Elem()
	decoderType = reflect.TypeOf((*Decoder)(nil)).Elem()
	timeType    = reflect.TypeOf(time.Time{})
	uuidType    = reflect.TypeOf(uuid.UUID{})
	rawJSONType = reflect.TypeOf(json.RawMessage(nil))
	valueType   = reflect.TypeOf(Value{})
)

// TimeLayout is the text form used for DateTime extension values.
const TimeLayout = time.RFC3339Nano

// Encode converts a Go value into a Value.
func Encode(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	}
	return EncodeReflect(reflect.ValueOf(v))
}

// MustEncode is Encode for values known to be encodable, such as literals.
func MustEncode(v any) Value {
	out, err := Encode(v)
	if err != nil {
		panic(err)
	}
	return out
}

// EncodeReflect converts rv into a Value.
func EncodeReflect(rv reflect.Value) (Value, error) {
	if !rv.IsValid() {
		return Null(), nil
	}
	t := rv.Type()

	if t == valueType {
		return rv.Interface().(Value), nil
	}
	if t.Implements(encoderType) {
		if (t.Kind() == reflect.Pointer || t.Kind() == reflect.Interface) && rv.IsNil() {
			return Null(), nil
		}
		return rv.Interface().(Encoder).EncodeValue()
	}
	if rv.CanAddr() && reflect.PointerTo(t).Implements(encoderType) {
		return rv.Addr().Interface().(Encoder).EncodeValue()
	}

	switch t {
	case timeType:
		return Ext(TagDateTime, String(rv.Interface().(time.Time).UTC().Format(TimeLayout))), nil
	case uuidType:
		return Ext(TagUUID, String(rv.Interface().(uuid.UUID).String())), nil
	case rawJSONType:
		if rv.IsNil() {
			return Null(), nil
		}
		return Ext(TagJSON, String(string(rv.Bytes()))), nil
	}

	switch t.Kind() {
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int8, reflect.Int16, reflect.Int32:
		return Int32(int32(rv.Int())), nil
	case reflect.Int, reflect.Int64:
		return Int64(rv.Int()), nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return Uint32(uint32(rv.Uint())), nil
	case reflect.Uint, reflect.Uint64, reflect.Uintptr:
		return Uint64(rv.Uint()), nil
	case reflect.Float32:
		return Float32(float32(rv.Float())), nil
	case reflect.Float64:
		return Float64(rv.Float()), nil
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null(), nil
		}
		return EncodeReflect(rv.Elem())
	case reflect.Slice:
		if rv.IsNil() {
			return Null(), nil
		}
		if t.Elem().Kind() == reflect.Uint8 {
			return Binary(append([]byte(nil), rv.Bytes()...)), nil
		}
		return encodeList(rv)
	case reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			b := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(b), rv)
			return Binary(b), nil
		}
		return encodeList(rv)
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return Null(), &EncodeError{Type: t, Reason: "map keys must be strings"}
		}
		if rv.IsNil() {
			return Null(), nil
		}
		return encodeMap(rv)
	case reflect.Struct:
		return Null(), &EncodeError{Type: t, Reason: "struct values need a custom encoder"}
	}
	return Null(), &EncodeError{Type: t, Reason: "unsupported kind " + t.Kind().String()}
}

func encodeList(rv reflect.Value) (Value, error) {
	out := make([]Value, rv.Len())
	for i := range out {
		v, err := EncodeReflect(rv.Index(i))
		if err != nil {
			return Null(), err
		}
		out[i] = v
	}
	return Array(out...), nil
}

func encodeMap(rv reflect.Value) (Value, error) {
	keys := rv.MapKeys()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	m := NewMap()
	for _, k := range keys {
		v, err := EncodeReflect(rv.MapIndex(k))
		if err != nil {
			return Null(), err
		}
		m.Set(k.String(), v)
	}
	return MapOf(m), nil
}
