package value

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ToDriver converts v into an argument the database drivers accept.
// DateTime values bind as time.Time, other extension values as their inner
// value; maps bind as JSON text.
func ToDriver(v Value) any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindI32, KindI64:
		return v.i
	case KindU32, KindU64:
		return v.u
	case KindF32, KindF64:
		return v.f
	case KindString:
		return v.s
	case KindBinary:
		return v.bin
	case KindArray:
		out := make([]any, len(v.arr))
		for i, e := range v.arr {
			out[i] = ToDriver(e)
		}
		return out
	case KindMap:
		b, err := json.Marshal(v.Native())
		if err != nil {
			return v.String()
		}
		return string(b)
	case KindExt:
		if v.s == TagDateTime {
			if t, ok := driverTime(*v.inner); ok {
				return t
			}
		}
		return ToDriver(*v.inner)
	}
	return nil
}

func driverTime(inner Value) (time.Time, bool) {
	switch inner.kind {
	case KindString:
		t, err := time.Parse(TimeLayout, inner.s)
		return t.UTC(), err == nil
	case KindI32, KindI64:
		return time.UnixMilli(inner.i).UTC(), true
	}
	return time.Time{}, false
}

// ToDriverArgs converts a binding list.
func ToDriverArgs(vals []Value) []any {
	if len(vals) == 0 {
		return nil
	}
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = ToDriver(v)
	}
	return out
}

// FromDriver converts a value scanned by a driver. Timestamps, UUIDs and
// decoded JSON documents come back as extension values.
func FromDriver(src any) Value {
	switch x := src.(type) {
	case nil:
		return Null()
	case Value:
		return x
	case bool:
		return Bool(x)
	case int:
		return Int64(int64(x))
	case int8:
		return Int32(int32(x))
	case int16:
		return Int32(int32(x))
	case int32:
		return Int32(x)
	case int64:
		return Int64(x)
	case uint:
		return Uint64(uint64(x))
	case uint8:
		return Uint32(uint32(x))
	case uint16:
		return Uint32(uint32(x))
	case uint32:
		return Uint32(x)
	case uint64:
		return Uint64(x)
	case float32:
		return Float32(x)
	case float64:
		return Float64(x)
	case string:
		return String(x)
	case []byte:
		return Binary(append([]byte(nil), x...))
	case time.Time:
		return Ext(TagDateTime, String(x.UTC().Format(TimeLayout)))
	case uuid.UUID:
		return Ext(TagUUID, String(x.String()))
	case [16]byte:
		return Ext(TagUUID, String(uuid.UUID(x).String()))
	case map[string]any:
		b, err := json.Marshal(x)
		if err != nil {
			return String(fmt.Sprint(x))
		}
		return Ext(TagJSON, String(string(b)))
	case []any:
		out := make([]Value, len(x))
		for i, e := range x {
			out[i] = FromDriver(e)
		}
		return Array(out...)
	case driver.Valuer:
		dv, err := x.Value()
		if err != nil {
			return String(fmt.Sprint(x))
		}
		return FromDriver(dv)
	case fmt.Stringer:
		return String(x.String())
	}
	return String(fmt.Sprint(src))
}

// FromJSONColumn converts the value of a json or jsonb column that the
// driver already decoded. Every document comes back as a Json extension
// value holding its text, whatever its top-level shape.
func FromJSONColumn(src any) Value {
	switch x := src.(type) {
	case nil:
		return Null()
	case []byte:
		return Ext(TagJSON, String(string(x)))
	}
	b, err := json.Marshal(src)
	if err != nil {
		return FromDriver(src)
	}
	return Ext(TagJSON, String(string(b)))
}

// FromColumn converts a value scanned through database/sql, using the column's
// database type name to interpret the raw bytes some drivers return for
// numeric and text columns.
func FromColumn(src any, dbType string) Value {
	raw, ok := src.([]byte)
	if !ok {
		return FromDriver(src)
	}
	t := strings.ToUpper(dbType)
	text := string(raw)

	switch {
	case strings.Contains(t, "UNSIGNED"):
		if n, err := strconv.ParseUint(text, 10, 64); err == nil {
			return Uint64(n)
		}
	case isIntegerType(t):
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return Int64(n)
		}
	case t == "FLOAT" || t == "DOUBLE" || t == "REAL" || t == "FLOAT4" || t == "FLOAT8":
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return Float64(f)
		}
	case t == "BOOL" || t == "BOOLEAN":
		if b, err := strconv.ParseBool(text); err == nil {
			return Bool(b)
		}
	case t == "JSON" || t == "JSONB":
		return Ext(TagJSON, String(text))
	case isBinaryType(t):
		return Binary(append([]byte(nil), raw...))
	}
	return String(text)
}

func isIntegerType(t string) bool {
	switch t {
	case "INT", "INTEGER", "TINYINT", "SMALLINT", "MEDIUMINT", "BIGINT", "INT2", "INT4", "INT8", "YEAR":
		return true
	}
	return false
}

func isBinaryType(t string) bool {
	switch t {
	case "BLOB", "TINYBLOB", "MEDIUMBLOB", "LONGBLOB", "BINARY", "VARBINARY", "BYTEA", "BIT", "GEOMETRY":
		return true
	}
	return false
}
