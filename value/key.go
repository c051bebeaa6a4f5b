package value

import (
	"math"
	"strconv"
)

// KeyString returns a canonical form of v for key matching. Two values have
// the same key string exactly when KeyEqual reports them equal. Null has no
// key.
//
// Integers compare by numeric value across widths and signedness, integral
// floats compare equal to the same integer, strings and binaries compare by
// bytes, and extension values compare by their inner value. A number never
// equals a string, so 7 and "007" (or "7") do not match.
func KeyString(v Value) (string, bool) {
	v = v.Unwrap()
	switch v.kind {
	case KindI32, KindI64:
		return "i" + strconv.FormatInt(v.i, 10), true
	case KindU32, KindU64:
		return "i" + strconv.FormatUint(v.u, 10), true
	case KindF32, KindF64:
		if v.f == math.Trunc(v.f) && v.f >= math.MinInt64 && v.f < math.MaxInt64 {
			return "i" + strconv.FormatInt(int64(v.f), 10), true
		}
		return "f" + strconv.FormatFloat(v.f, 'g', -1, 64), true
	case KindString:
		return "s" + v.s, true
	case KindBinary:
		return "s" + string(v.bin), true
	case KindBool:
		if v.b {
			return "b1", true
		}
		return "b0", true
	}
	return "", false
}

// KeyEqual reports whether a and b identify the same row.
func KeyEqual(a, b Value) bool {
	ka, ok := KeyString(a)
	if !ok {
		return false
	}
	kb, ok := KeyString(b)
	return ok && ka == kb
}
