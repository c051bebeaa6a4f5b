package value

import (
	"errors"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/google/uuid"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// Decode stores v into the value dest points to.
func Decode(v Value, dest any) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return &DecodeError{
			Kind: Unsupported,
			Type: reflect.TypeOf(dest),
			Got:  v.Kind(),
			Err:  errors.New("destination must be a non-nil pointer"),
		}
	}
	return DecodeReflect(v, rv.Elem())
}

// DecodeReflect stores v into dst, which must be settable.
//
// Integer widths and signedness are coerced as long as the number fits. Null
// resets the target to its zero value.
func DecodeReflect(v Value, dst reflect.Value) error {
	t := dst.Type()

	if dst.CanAddr() && reflect.PointerTo(t).Implements(decoderType) {
		return dst.Addr().Interface().(Decoder).DecodeValue(v)
	}

	if t.Kind() == reflect.Pointer {
		if v.IsNull() {
			dst.Set(reflect.Zero(t))
			return nil
		}
		if dst.IsNil() {
			dst.Set(reflect.New(t.Elem()))
		}
		return DecodeReflect(v, dst.Elem())
	}

	if t == valueType {
		dst.Set(reflect.ValueOf(v))
		return nil
	}
	if v.IsNull() {
		dst.Set(reflect.Zero(t))
		return nil
	}

	switch t {
	case timeType:
		tm, err := DecodeTime(v)
		if err != nil {
			return err
		}
		dst.Set(reflect.ValueOf(tm))
		return nil
	case uuidType:
		id, err := DecodeUUID(v)
		if err != nil {
			return err
		}
		dst.Set(reflect.ValueOf(id))
		return nil
	}

	if t.Kind() == reflect.Interface {
		if t.NumMethod() != 0 {
			return decodeErr(Unsupported, v, t, nil)
		}
		dst.Set(reflect.ValueOf(v.Native()))
		return nil
	}

	v = v.Unwrap()

	switch t.Kind() {
	case reflect.Bool:
		if b, ok := v.AsBool(); ok {
			dst.SetBool(b)
			return nil
		}
		if s, ok := v.AsString(); ok {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return decodeErr(InvalidFormat, v, t, err)
			}
			dst.SetBool(b)
			return nil
		}
		return decodeErr(TypeMismatch, v, t, nil)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := toInt64(v, t)
		if err != nil {
			return err
		}
		if dst.OverflowInt(n) {
			return decodeErr(Overflow, v, t, nil)
		}
		dst.SetInt(n)
		return nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, err := toUint64(v, t)
		if err != nil {
			return err
		}
		if dst.OverflowUint(n) {
			return decodeErr(Overflow, v, t, nil)
		}
		dst.SetUint(n)
		return nil

	case reflect.Float32, reflect.Float64:
		f, ok := v.AsFloat64()
		if !ok {
			s, isText := v.AsString()
			if !isText {
				return decodeErr(TypeMismatch, v, t, nil)
			}
			var err error
			if f, err = strconv.ParseFloat(s, t.Bits()); err != nil {
				return decodeErr(InvalidFormat, v, t, err)
			}
		}
		if dst.OverflowFloat(f) {
			return decodeErr(Overflow, v, t, nil)
		}
		dst.SetFloat(f)
		return nil

	case reflect.String:
		s, ok := v.AsString()
		if !ok {
			return decodeErr(TypeMismatch, v, t, nil)
		}
		dst.SetString(s)
		return nil

	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			if b, ok := v.AsBinary(); ok {
				dst.SetBytes(append([]byte(nil), b...))
				return nil
			}
		}
		if v.Kind() != KindArray {
			return decodeErr(ShapeMismatch, v, t, nil)
		}
		out := reflect.MakeSlice(t, len(v.arr), len(v.arr))
		for i, e := range v.arr {
			if err := DecodeReflect(e, out.Index(i)); err != nil {
				return err
			}
		}
		dst.Set(out)
		return nil

	case reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			if b, ok := v.AsBinary(); ok && len(b) == t.Len() {
				reflect.Copy(dst, reflect.ValueOf(b))
				return nil
			}
		}
		if v.Kind() != KindArray || len(v.arr) != t.Len() {
			return decodeErr(ShapeMismatch, v, t, nil)
		}
		for i, e := range v.arr {
			if err := DecodeReflect(e, dst.Index(i)); err != nil {
				return err
			}
		}
		return nil

	case reflect.Map:
		if v.Kind() != KindMap {
			return decodeErr(ShapeMismatch, v, t, nil)
		}
		if t.Key().Kind() != reflect.String {
			return decodeErr(Unsupported, v, t, nil)
		}
		out := reflect.MakeMapWithSize(t, v.m.Len())
		var err error
		v.m.Range(func(k string, e Value) bool {
			elem := reflect.New(t.Elem()).Elem()
			if err = DecodeReflect(e, elem); err != nil {
				return false
			}
			out.SetMapIndex(reflect.ValueOf(k).Convert(t.Key()), elem)
			return true
		})
		if err != nil {
			return err
		}
		dst.Set(out)
		return nil

	case reflect.Struct:
		if v.Kind() == KindArray {
			return decodeErr(ShapeMismatch, v, t, nil)
		}
		return decodeErr(Unsupported, v, t, nil)
	}

	return decodeErr(Unsupported, v, t, nil)
}

func toInt64(v Value, t reflect.Type) (int64, error) {
	switch v.Kind() {
	case KindI32, KindI64, KindU32, KindU64:
		n, ok := v.AsInt64()
		if !ok {
			return 0, decodeErr(Overflow, v, t, nil)
		}
		return n, nil
	case KindBool:
		if v.b {
			return 1, nil
		}
		return 0, nil
	case KindF32, KindF64:
		if v.f != math.Trunc(v.f) || v.f < math.MinInt64 || v.f > math.MaxInt64 {
			return 0, decodeErr(TypeMismatch, v, t, nil)
		}
		return int64(v.f), nil
	case KindString, KindBinary:
		s, _ := v.AsString()
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, decodeErr(InvalidFormat, v, t, err)
		}
		return n, nil
	}
	return 0, decodeErr(TypeMismatch, v, t, nil)
}

func toUint64(v Value, t reflect.Type) (uint64, error) {
	switch v.Kind() {
	case KindI32, KindI64, KindU32, KindU64:
		n, ok := v.AsUint64()
		if !ok {
			return 0, decodeErr(Overflow, v, t, nil)
		}
		return n, nil
	case KindBool:
		if v.b {
			return 1, nil
		}
		return 0, nil
	case KindF32, KindF64:
		if v.f != math.Trunc(v.f) || v.f < 0 || v.f > math.MaxUint64 {
			return 0, decodeErr(TypeMismatch, v, t, nil)
		}
		return uint64(v.f), nil
	case KindString, KindBinary:
		s, _ := v.AsString()
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return 0, decodeErr(InvalidFormat, v, t, err)
		}
		return n, nil
	}
	return 0, decodeErr(TypeMismatch, v, t, nil)
}

// DecodeTime reads a timestamp from a DateTime extension, a text timestamp or
// an integer count of milliseconds since the Unix epoch.
func DecodeTime(v Value) (time.Time, error) {
	u := v.Unwrap()
	if n, ok := u.AsInt64(); ok {
		return time.UnixMilli(n).UTC(), nil
	}
	s, ok := u.AsString()
	if !ok {
		return time.Time{}, decodeErr(TypeMismatch, v, timeType, nil)
	}
	var lastErr error
	for _, layout := range timeLayouts {
		tm, err := time.Parse(layout, s)
		if err == nil {
			return tm, nil
		}
		lastErr = err
	}
	return time.Time{}, decodeErr(InvalidFormat, v, timeType, lastErr)
}

// DecodeUUID reads a UUID from text or from its 16 raw bytes.
func DecodeUUID(v Value) (uuid.UUID, error) {
	u := v.Unwrap()
	if u.Kind() == KindBinary && len(u.bin) == 16 {
		return uuid.FromBytes(u.bin)
	}
	s, ok := u.AsString()
	if !ok {
		return uuid.Nil, decodeErr(TypeMismatch, v, uuidType, nil)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, decodeErr(InvalidFormat, v, uuidType, err)
	}
	return id, nil
}
