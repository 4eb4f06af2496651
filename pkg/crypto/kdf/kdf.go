// Package kdf implements the key-derivation side of the vault key
// hierarchy: master key derivation from the master password, the server
// password hash, and the HKDF stretch that protects the user key.
package kdf

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"

	"github.com/dasien/bwcli/pkg/crypto"
	"github.com/dasien/bwcli/pkg/errors"
)

// Algorithm selects the account key-derivation function.
type Algorithm int

// Supported algorithms, numbered as the server reports them.
const (
	PBKDF2   Algorithm = 0
	Argon2id Algorithm = 1
)

// Server-enforced parameter minimums.
const (
	MinPBKDF2Iterations   = 600000
	MinArgon2idIterations = 3
)

// MasterKeyLength is the derived master key size in bytes.
const MasterKeyLength = 32

// Config describes an account's key-derivation parameters as returned by
// the prelogin endpoint. Persisted plaintext in the state file.
type Config struct {
	Algorithm   Algorithm `json:"kdf"`
	Iterations  int       `json:"kdfIterations"`
	Memory      int       `json:"kdfMemory,omitempty"`      // MiB, Argon2id only
	Parallelism int       `json:"kdfParallelism,omitempty"` // Argon2id only
}

// Validate checks the parameters against the server minimums.
func (c Config) Validate() error {
	switch c.Algorithm {
	case PBKDF2:
		if c.Iterations < MinPBKDF2Iterations {
			return errors.NewKdfFailedError("pbkdf2 iteration count is below the server minimum", nil)
		}
	case Argon2id:
		if c.Iterations < MinArgon2idIterations {
			return errors.NewKdfFailedError("argon2id iteration count is below the server minimum", nil)
		}
		if c.Memory <= 0 || c.Parallelism <= 0 {
			return errors.NewKdfFailedError("argon2id requires positive memory and parallelism", nil)
		}
	default:
		return errors.NewKdfFailedError("unknown kdf algorithm", nil)
	}
	return nil
}

// MasterKey is the 32-byte key derived from the master password. It exists
// only for the duration of a login or unlock operation.
type MasterKey struct {
	key []byte
}

// Bytes returns the raw key without copying.
func (m *MasterKey) Bytes() []byte {
	return m.key
}

// Zero wipes the key material.
func (m *MasterKey) Zero() {
	if m == nil {
		return
	}
	for i := range m.key {
		m.key[i] = 0
	}
	m.key = nil
}

// String implements fmt.Stringer and always redacts.
func (*MasterKey) String() string {
	return crypto.Redacted
}

// NormalizeEmail lowercases and trims the email used as the KDF salt.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DeriveMasterKey derives the master key from the password with the
// normalized email as salt. Derivation is CPU-bound for up to several
// seconds, so it runs on its own goroutine and honors ctx cancellation;
// callers typically render progress while waiting.
func DeriveMasterKey(ctx context.Context, password *crypto.Secret, email string, cfg Config) (*MasterKey, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if password.IsEmpty() {
		return nil, errors.NewKdfFailedError("master password must not be empty", nil)
	}

	salt := []byte(NormalizeEmail(email))

	type result struct {
		key []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		key, err := deriveKey(password.ExposeBytes(), salt, cfg)
		done <- result{key, err}
	}()

	select {
	case <-ctx.Done():
		// Wipe the abandoned result whenever the worker finishes.
		go func() {
			if r := <-done; r.key != nil {
				for i := range r.key {
					r.key[i] = 0
				}
			}
		}()
		return nil, errors.NewKdfFailedError("key derivation cancelled", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		return &MasterKey{key: r.key}, nil
	}
}

func deriveKey(password, salt []byte, cfg Config) ([]byte, error) {
	switch cfg.Algorithm {
	case PBKDF2:
		return pbkdf2.Key(password, salt, cfg.Iterations, MasterKeyLength, sha256.New), nil
	case Argon2id:
		memoryKiB := uint32(cfg.Memory) * 1024
		return argon2.IDKey(password, salt, uint32(cfg.Iterations), memoryKiB, uint8(cfg.Parallelism), MasterKeyLength), nil
	default:
		return nil, errors.NewKdfFailedError("unknown kdf algorithm", nil)
	}
}

// PasswordHash computes the server authentication hash: a single PBKDF2
// round over the master key with the password as salt, base64-encoded. The
// hash proves knowledge of the password without revealing the master key.
func PasswordHash(masterKey *MasterKey, password *crypto.Secret) string {
	hash := pbkdf2.Key(masterKey.Bytes(), password.ExposeBytes(), 1, MasterKeyLength, sha256.New)
	return base64.StdEncoding.EncodeToString(hash)
}

// Stretch expands the 32-byte master key into a 64-byte symmetric key using
// HKDF-expand with the "enc" and "mac" info labels.
func Stretch(masterKey *MasterKey) (*crypto.SymmetricKey, error) {
	stretched := make([]byte, crypto.SymmetricKeyLength)
	if err := hkdfExpand(masterKey.Bytes(), "enc", stretched[:32]); err != nil {
		return nil, err
	}
	if err := hkdfExpand(masterKey.Bytes(), "mac", stretched[32:]); err != nil {
		return nil, err
	}
	return crypto.NewSymmetricKey(stretched)
}

func hkdfExpand(prk []byte, info string, out []byte) error {
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, prk, []byte(info)), out); err != nil {
		return errors.NewKdfFailedError("hkdf expansion failed", err)
	}
	return nil
}

// ExportKdfIterations is the PBKDF2 cost for password-protected exports.
const ExportKdfIterations = 100000

// DeriveExportKey derives the symmetric key protecting a password-protected
// export file: PBKDF2 over the password with the given salt, stretched the
// same way as the master key.
func DeriveExportKey(password *crypto.Secret, salt string, iterations int) (*crypto.SymmetricKey, error) {
	if password.IsEmpty() {
		return nil, errors.NewKdfFailedError("export password must not be empty", nil)
	}
	derived := pbkdf2.Key(password.ExposeBytes(), []byte(salt), iterations, MasterKeyLength, sha256.New)

	stretched := make([]byte, crypto.SymmetricKeyLength)
	if err := hkdfExpand(derived, "enc", stretched[:32]); err != nil {
		return nil, err
	}
	if err := hkdfExpand(derived, "mac", stretched[32:]); err != nil {
		return nil, err
	}
	for i := range derived {
		derived[i] = 0
	}
	return crypto.NewSymmetricKey(stretched)
}

// DecryptUserKey recovers the 64-byte user key from its server-supplied
// encrypted form using the stretched master key. A MAC mismatch means the
// password was wrong; the two cases are indistinguishable by design.
func DecryptUserKey(enc *crypto.EncString, masterKey *MasterKey) (*crypto.SymmetricKey, error) {
	stretched, err := Stretch(masterKey)
	if err != nil {
		return nil, err
	}
	defer stretched.Zero()

	plaintext, err := enc.Decrypt(stretched)
	if err != nil {
		if errors.IsMacMismatch(err) {
			return nil, errors.NewInvalidPasswordError()
		}
		return nil, err
	}
	return crypto.NewSymmetricKey(plaintext)
}
