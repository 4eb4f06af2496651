// Package session manages the locally-generated session key that protects
// tokens and the user key at rest. The key is handed to the user as the
// BW_SESSION environment variable; the OS keyring is an opt-in fallback.
package session

import (
	"os"

	"github.com/zalando/go-keyring"

	"github.com/dasien/bwcli/pkg/crypto"
	"github.com/dasien/bwcli/pkg/errors"
	"github.com/dasien/bwcli/pkg/logger"
)

// EnvVar is the environment variable holding the base64 session key.
const EnvVar = "BW_SESSION"

const (
	keyringService = "bwcli"
	keyringUser    = "session"
)

// Generate creates a fresh 64-byte session key.
func Generate() (*crypto.SymmetricKey, error) {
	return crypto.GenerateSymmetricKey()
}

// FromEnvironment resolves the session key from BW_SESSION, falling back to
// the OS keyring when the variable is unset. Returns (nil, nil) when no key
// is available anywhere; a present but malformed value is an error.
func FromEnvironment() (*crypto.SymmetricKey, error) {
	if encoded := os.Getenv(EnvVar); encoded != "" {
		key, err := crypto.SymmetricKeyFromBase64(encoded)
		if err != nil {
			return nil, errors.NewConfigurationError("BW_SESSION does not hold a valid session key", err)
		}
		return key, nil
	}
	return fromKeyring()
}

// SaveToKeyring stores the session key in the OS keyring.
func SaveToKeyring(key *crypto.SymmetricKey) error {
	if err := keyring.Set(keyringService, keyringUser, key.ToBase64()); err != nil {
		return errors.NewStorageIOError("saving session key to keyring", err)
	}
	return nil
}

// DeleteFromKeyring removes any stored session key. A missing entry or an
// absent keyring backend is not an error; there is nothing to remove.
func DeleteFromKeyring() error {
	err := keyring.Delete(keyringService, keyringUser)
	if err != nil && err != keyring.ErrNotFound {
		logger.Debugf("keyring delete skipped: %v", err)
	}
	return nil
}

func fromKeyring() (*crypto.SymmetricKey, error) {
	encoded, err := keyring.Get(keyringService, keyringUser)
	if err == keyring.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		// A missing keyring backend is normal on headless systems.
		logger.Debugf("keyring unavailable: %v", err)
		return nil, nil
	}
	key, err := crypto.SymmetricKeyFromBase64(encoded)
	if err != nil {
		return nil, errors.NewStorageTamperedError("session", err)
	}
	return key, nil
}
