package schema

import (
	"encoding"
	"fmt"
	"reflect"
	"strings"

	"github.com/Konsultn-Engineering/ensemble/value"
)

// Enum maps variant names to their stored names. A variant without a rename
// is stored under its own name.
type Enum struct {
	variants []string
	stored   map[string]string
	byStored map[string]string
}

// parseEnum reads "A|B" or "A,B", each entry optionally "Variant=stored".
func parseEnum(spec string) (*Enum, error) {
	sep := ","
	if strings.Contains(spec, "|") {
		sep = "|"
	}
	e := &Enum{stored: map[string]string{}, byStored: map[string]string{}}
	for _, part := range strings.Split(spec, sep) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		variant, stored := part, part
		if idx := strings.IndexByte(part, '='); idx != -1 {
			variant = strings.TrimSpace(part[:idx])
			stored = strings.TrimSpace(part[idx+1:])
		}
		if _, dup := e.stored[variant]; dup {
			return nil, fmt.Errorf("duplicate enum variant %q", variant)
		}
		if _, dup := e.byStored[stored]; dup {
			return nil, fmt.Errorf("duplicate enum value %q", stored)
		}
		e.variants = append(e.variants, variant)
		e.stored[variant] = stored
		e.byStored[stored] = variant
	}
	if len(e.variants) == 0 {
		return nil, fmt.Errorf("enum without variants")
	}
	return e, nil
}

// Variants returns the variant names in declaration order.
func (e *Enum) Variants() []string {
	return append([]string(nil), e.variants...)
}

var textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

// encode stores the variant held by rv. Only string kinds and integer kinds
// implementing fmt.Stringer name a variant; any other shape is rejected.
func (e *Enum) encode(rv reflect.Value) (value.Value, error) {
	var name string
	switch {
	case rv.Kind() == reflect.String:
		name = rv.String()
	case isInteger(rv.Kind()) && rv.Type().Implements(reflect.TypeOf((*fmt.Stringer)(nil)).Elem()):
		name = rv.Interface().(fmt.Stringer).String()
	default:
		return value.Null(), &value.EncodeError{Type: rv.Type(), Reason: "unsupported enum shape " + rv.Kind().String()}
	}
	stored, ok := e.stored[name]
	if !ok {
		return value.Null(), &value.EncodeError{Type: rv.Type(), Reason: fmt.Sprintf("unknown enum variant %q", name)}
	}
	return value.String(stored), nil
}

func (e *Enum) decode(v value.Value, dst reflect.Value) error {
	if v.IsNull() {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	s, ok := v.Unwrap().AsString()
	if !ok {
		return &value.DecodeError{Kind: value.TypeMismatch, Type: dst.Type(), Got: v.Kind()}
	}
	variant, ok := e.byStored[s]
	if !ok {
		return &value.DecodeError{Kind: value.InvalidFormat, Type: dst.Type(), Got: v.Kind(), Err: fmt.Errorf("unknown enum value %q", s)}
	}
	if dst.Kind() == reflect.String {
		dst.SetString(variant)
		return nil
	}
	if dst.CanAddr() && reflect.PointerTo(dst.Type()).Implements(textUnmarshalerType) {
		return dst.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(variant))
	}
	return &value.DecodeError{Kind: value.Unsupported, Type: dst.Type(), Got: v.Kind()}
}

func isInteger(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}
