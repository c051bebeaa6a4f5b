package types

import (
	"github.com/google/uuid"

	"github.com/Konsultn-Engineering/ensemble/value"
)

// UUID is stored as a Uuid extension value holding the canonical text form.
type UUID struct {
	uuid.UUID
}

// NewUUID returns a random (version 4) UUID.
func NewUUID() UUID {
	return UUID{UUID: uuid.New()}
}

func ParseUUID(s string) (UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return UUID{}, err
	}
	return UUID{UUID: id}, nil
}

func (u UUID) IsZero() bool {
	return u.UUID == uuid.Nil
}

func (u UUID) EncodeValue() (value.Value, error) {
	return value.Ext(value.TagUUID, value.String(u.String())), nil
}

func (u *UUID) DecodeValue(v value.Value) error {
	if v.IsNull() {
		u.UUID = uuid.Nil
		return nil
	}
	id, err := value.DecodeUUID(v)
	if err != nil {
		return err
	}
	u.UUID = id
	return nil
}
