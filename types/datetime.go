// Package types provides field types with their own database representation.
package types

import (
	"time"

	"github.com/Konsultn-Engineering/ensemble/value"
)

// DateTime is a timestamp stored as a DateTime extension value.
type DateTime struct {
	time.Time
}

// Now returns the current time in UTC, truncated to microseconds so it
// survives databases with microsecond precision.
func Now() DateTime {
	return DateTime{Time: time.Now().UTC().Truncate(time.Microsecond)}
}

func NewDateTime(t time.Time) DateTime {
	return DateTime{Time: t}
}

func (d DateTime) EncodeValue() (value.Value, error) {
	return value.Ext(value.TagDateTime, value.String(d.UTC().Format(value.TimeLayout))), nil
}

func (d *DateTime) DecodeValue(v value.Value) error {
	if v.IsNull() {
		d.Time = time.Time{}
		return nil
	}
	t, err := value.DecodeTime(v)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}
