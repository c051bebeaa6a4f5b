package types

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/Konsultn-Engineering/ensemble/value"
)

// Hashed holds the hex SHA-256 digest of a secret. Only the digest is ever
// stored or serialized.
type Hashed string

func Hash(plain string) Hashed {
	sum := sha256.Sum256([]byte(plain))
	return Hashed(hex.EncodeToString(sum[:]))
}

// Matches reports whether plain hashes to h.
func (h Hashed) Matches(plain string) bool {
	want := Hash(plain)
	return subtle.ConstantTimeCompare([]byte(h), []byte(want)) == 1
}

func (h Hashed) EncodeValue() (value.Value, error) {
	return value.String(string(h)), nil
}

func (h *Hashed) DecodeValue(v value.Value) error {
	s, ok := v.Unwrap().AsString()
	if !ok && !v.IsNull() {
		return &value.DecodeError{Kind: value.TypeMismatch, Got: v.Kind()}
	}
	*h = Hashed(s)
	return nil
}
