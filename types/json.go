package types

import (
	"encoding/json"
	"reflect"

	"github.com/Konsultn-Engineering/ensemble/value"
)

// JSON stores Data as a JSON document wrapped in a Json extension value.
type JSON[T any] struct {
	Data T
}

func NewJSON[T any](data T) JSON[T] {
	return JSON[T]{Data: data}
}

func (j JSON[T]) EncodeValue() (value.Value, error) {
	b, err := json.Marshal(j.Data)
	if err != nil {
		return value.Null(), &value.EncodeError{Type: reflect.TypeOf(j), Reason: err.Error()}
	}
	return value.Ext(value.TagJSON, value.String(string(b))), nil
}

// DecodeValue accepts the tagged form, raw text or bytes, and documents a
// driver has already decoded into arrays, maps or scalars.
func (j *JSON[T]) DecodeValue(v value.Value) error {
	var zero T
	if v.IsNull() {
		j.Data = zero
		return nil
	}
	raw, err := jsonDocument(v)
	if err != nil {
		return &value.DecodeError{Kind: value.InvalidFormat, Type: reflect.TypeOf(j).Elem(), Got: v.Kind(), Err: err}
	}
	data := zero
	if err := json.Unmarshal(raw, &data); err != nil {
		return &value.DecodeError{Kind: value.InvalidFormat, Type: reflect.TypeOf(j).Elem(), Got: v.Kind(), Err: err}
	}
	j.Data = data
	return nil
}

// jsonDocument returns the JSON text held by v. Tagged and binary values
// must already be JSON; a plain string that is not valid JSON is a string
// document.
func jsonDocument(v value.Value) ([]byte, error) {
	inner := v.Unwrap()
	if v.HasTag(value.TagJSON) || inner.Kind() == value.KindBinary {
		if raw, ok := inner.AsBinary(); ok {
			return raw, nil
		}
	}
	if s, ok := inner.AsString(); ok && json.Valid([]byte(s)) {
		return []byte(s), nil
	}
	return json.Marshal(inner.Native())
}

func (j JSON[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(j.Data)
}

func (j *JSON[T]) UnmarshalJSON(b []byte) error {
	return json.Unmarshal(b, &j.Data)
}
