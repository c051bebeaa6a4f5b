package value

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrShapeMismatch matches decode errors where the value had the wrong
// structure for the target, such as an array where a map was expected.
var ErrShapeMismatch = errors.New("shape mismatch")

// DecodeErrorKind classifies a DecodeError.
type DecodeErrorKind uint8

const (
	ShapeMismatch DecodeErrorKind = iota + 1
	TypeMismatch
	Overflow
	InvalidFormat
	Unsupported
)

func (k DecodeErrorKind) String() string {
	switch k {
	case ShapeMismatch:
		return "shape mismatch"
	case TypeMismatch:
		return "type mismatch"
	case Overflow:
		return "overflow"
	case InvalidFormat:
		return "invalid format"
	case Unsupported:
		return "unsupported"
	}
	return "unknown"
}

// DecodeError reports a value that could not be stored in a typed target.
type DecodeError struct {
	Kind  DecodeErrorKind
	Field string
	Type  reflect.Type
	Got   Kind
	Err   error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("cannot decode %s into %v: %s", e.Got, e.Type, e.Kind)
	if e.Field != "" {
		msg = "field " + e.Field + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool {
	return target == ErrShapeMismatch && e.Kind == ShapeMismatch
}

// WithField returns a copy of err naming field, when err is a DecodeError
// without a field yet.
func WithField(err error, field string) error {
	var de *DecodeError
	if errors.As(err, &de) && de.Field == "" {
		cp := *de
		cp.Field = field
		return &cp
	}
	return err
}

// EncodeError reports a Go value the bridge cannot represent.
type EncodeError struct {
	Type   reflect.Type
	Reason string
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("cannot encode %v: %s", e.Type, e.Reason)
}

func decodeErr(kind DecodeErrorKind, v Value, t reflect.Type, cause error) error {
	return &DecodeError{Kind: kind, Type: t, Got: v.Kind(), Err: cause}
}
