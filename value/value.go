// Package value implements the dynamically typed database value that sits
// between driver rows and typed record fields.
package value

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindI32
	KindI64
	KindU32
	KindU64
	KindF32
	KindF64
	KindString
	KindBinary
	KindArray
	KindMap
	KindExt
)

var kindNames = [...]string{
	KindNull:   "null",
	KindBool:   "bool",
	KindI32:    "i32",
	KindI64:    "i64",
	KindU32:    "u32",
	KindU64:    "u64",
	KindF32:    "f32",
	KindF64:    "f64",
	KindString: "string",
	KindBinary: "binary",
	KindArray:  "array",
	KindMap:    "map",
	KindExt:    "ext",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Stable tags carried by extension values.
const (
	TagDateTime = "DateTime"
	TagUUID     = "Uuid"
	TagJSON     = "Json"
)

// Value is a closed variant over the shapes a database can hand back or accept
// as a binding. The zero Value is Null.
type Value struct {
	kind  Kind
	b     bool
	i     int64
	u     uint64
	f     float64
	s     string
	bin   []byte
	arr   []Value
	m     *Map
	inner *Value
}

func Null() Value { return Value{} }
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func Int32(i int32) Value { return Value{kind: KindI32, i: int64(i)} }
func Int64(i int64) Value { return Value{kind: KindI64, i: i} }
func Uint32(u uint32) Value { return Value{kind: KindU32, u: uint64(u)} }
func Uint64(u uint64) Value { return Value{kind: KindU64, u: u} }
func Float32(f float32) Value { return Value{kind: KindF32, f: float64(f)} }
func Float64(f float64) Value { return Value{kind: KindF64, f: f} }
func String(s string) Value { return Value{kind: KindString, s: s} }
func Binary(b []byte) Value { return Value{kind: KindBinary, bin: b} }
func Array(vals ...Value) Value { return Value{kind: KindArray, arr: vals} }

// MapOf wraps m. A nil map yields an empty map value.
func MapOf(m *Map) Value {
	if m == nil {
		m = NewMap()
	}
	return Value{kind: KindMap, m: m}
}

// Ext wraps inner with a stable tag so that custom scalar types survive a
// round trip without losing their identity.
func Ext(tag string, inner Value) Value {
	return Value{kind: KindExt, s: tag, inner: &inner}
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }
func (v Value) Array() []Value { return v.arr }

// Map returns the map payload, or nil when v is not a map.
func (v Value) Map() *Map { return v.m }

// Ext returns the tag and inner value of an extension value.
func (v Value) Ext() (string, Value, bool) {
	if v.kind != KindExt {
		return "", Value{}, false
	}
	return v.s, *v.inner, true
}

// HasTag reports whether v is an extension value carrying tag.
func (v Value) HasTag(tag string) bool {
	return v.kind == KindExt && v.s == tag
}

// Unwrap strips every extension layer.
func (v Value) Unwrap() Value {
	for v.kind == KindExt {
		v = *v.inner
	}
	return v
}

func (v Value) AsBool() (bool, bool) {
	switch v.kind {
	case KindBool:
		return v.b, true
	case KindI32, KindI64:
		return v.i != 0, v.i == 0 || v.i == 1
	case KindU32, KindU64:
		return v.u != 0, v.u <= 1
	}
	return false, false
}

// AsInt64 returns v as int64 when v is an integer that fits.
func (v Value) AsInt64() (int64, bool) {
	switch v.kind {
	case KindI32, KindI64:
		return v.i, true
	case KindU32, KindU64:
		if v.u > math.MaxInt64 {
			return 0, false
		}
		return int64(v.u), true
	}
	return 0, false
}

// AsUint64 returns v as uint64 when v is a non-negative integer.
func (v Value) AsUint64() (uint64, bool) {
	switch v.kind {
	case KindI32, KindI64:
		if v.i < 0 {
			return 0, false
		}
		return uint64(v.i), true
	case KindU32, KindU64:
		return v.u, true
	}
	return 0, false
}

func (v Value) AsFloat64() (float64, bool) {
	switch v.kind {
	case KindF32, KindF64:
		return v.f, true
	case KindI32, KindI64:
		return float64(v.i), true
	case KindU32, KindU64:
		return float64(v.u), true
	}
	return 0, false
}

// AsString returns the text of a string or binary value.
func (v Value) AsString() (string, bool) {
	switch v.kind {
	case KindString:
		return v.s, true
	case KindBinary:
		return string(v.bin), true
	}
	return "", false
}

func (v Value) AsBinary() ([]byte, bool) {
	switch v.kind {
	case KindBinary:
		return v.bin, true
	case KindString:
		return []byte(v.s), true
	}
	return nil, false
}

// Native converts v into plain Go values: nil, bool, int32, int64, uint32,
// uint64, float32, float64, string, []byte, []any and map[string]any.
func (v Value) Native() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindI32:
		return int32(v.i)
	case KindI64:
		return v.i
	case KindU32:
		return uint32(v.u)
	case KindU64:
		return v.u
	case KindF32:
		return float32(v.f)
	case KindF64:
		return v.f
	case KindString:
		return v.s
	case KindBinary:
		return v.bin
	case KindArray:
		out := make([]any, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.Native()
		}
		return out
	case KindMap:
		out := make(map[string]any, v.m.Len())
		v.m.Range(func(k string, e Value) bool {
			out[k] = e.Native()
			return true
		})
		return out
	case KindExt:
		return v.inner.Native()
	}
	return nil
}

// Equal reports structural equality, including variant and width.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindI32, KindI64:
		return a.i == b.i
	case KindU32, KindU64:
		return a.u == b.u
	case KindF32, KindF64:
		return a.f == b.f
	case KindString:
		return a.s == b.s
	case KindBinary:
		return bytes.Equal(a.bin, b.bin)
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindMap:
		return a.m.Equal(b.m)
	case KindExt:
		return a.s == b.s && Equal(*a.inner, *b.inner)
	}
	return false
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindI32, KindI64:
		return strconv.FormatInt(v.i, 10)
	case KindU32, KindU64:
		return strconv.FormatUint(v.u, 10)
	case KindF32:
		return strconv.FormatFloat(v.f, 'g', -1, 32)
	case KindF64:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.s)
	case KindBinary:
		return fmt.Sprintf("0x%x", v.bin)
	case KindArray:
		parts := make([]string, len(v.arr))
		for i, e := range v.arr {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		var sb strings.Builder
		sb.WriteByte('{')
		first := true
		v.m.Range(func(k string, e Value) bool {
			if !first {
				sb.WriteString(", ")
			}
			first = false
			sb.WriteString(k)
			sb.WriteString(": ")
			sb.WriteString(e.String())
			return true
		})
		sb.WriteByte('}')
		return sb.String()
	case KindExt:
		return v.s + "(" + v.inner.String() + ")"
	}
	return "?"
}
