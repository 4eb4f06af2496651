package crypto

import (
	"encoding/base64"

	"github.com/dasien/bwcli/pkg/errors"
)

// SymmetricKeyLength is the full length of a vault symmetric key: a 32-byte
// encryption key followed by a 32-byte MAC key.
const SymmetricKeyLength = 64

// SymmetricKey is a 64-byte key split into encryption and MAC halves. It is
// the shape of both the user key and the session key.
type SymmetricKey struct {
	key []byte
}

// NewSymmetricKey wraps the given 64 bytes, taking ownership of the slice.
func NewSymmetricKey(key []byte) (*SymmetricKey, error) {
	if len(key) != SymmetricKeyLength {
		return nil, errors.NewMalformedError("symmetric key must be 64 bytes")
	}
	return &SymmetricKey{key: key}, nil
}

// GenerateSymmetricKey returns a fresh 64-byte key from the CSPRNG.
func GenerateSymmetricKey() (*SymmetricKey, error) {
	b, err := RandomBytes(SymmetricKeyLength)
	if err != nil {
		return nil, errors.NewKdfFailedError("generating key material", err)
	}
	return &SymmetricKey{key: b}, nil
}

// SymmetricKeyFromBase64 decodes a standard-base64 64-byte key.
func SymmetricKeyFromBase64(encoded string) (*SymmetricKey, error) {
	b, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.NewMalformedError("symmetric key is not valid base64")
	}
	return NewSymmetricKey(b)
}

// EncKey returns the 32-byte encryption half.
func (k *SymmetricKey) EncKey() []byte {
	return k.key[:32]
}

// MacKey returns the 32-byte MAC half.
func (k *SymmetricKey) MacKey() []byte {
	return k.key[32:]
}

// Bytes returns the full 64-byte key without copying.
func (k *SymmetricKey) Bytes() []byte {
	return k.key
}

// ToBase64 returns the standard-base64 encoding of the key.
func (k *SymmetricKey) ToBase64() string {
	return base64.StdEncoding.EncodeToString(k.key)
}

// Zero wipes the key material.
func (k *SymmetricKey) Zero() {
	if k == nil {
		return
	}
	zeroize(k.key)
	k.key = nil
}

// String implements fmt.Stringer and always redacts.
func (*SymmetricKey) String() string {
	return Redacted
}

// GoString implements fmt.GoStringer so %#v also redacts.
func (*SymmetricKey) GoString() string {
	return Redacted
}
