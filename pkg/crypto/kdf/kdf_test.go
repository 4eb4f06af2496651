package kdf

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dasien/bwcli/pkg/crypto"
	"github.com/dasien/bwcli/pkg/errors"
)

// Tests use the minimum iteration counts; pbkdf2 at 600k still runs in well
// under a second.
func pbkdf2Config() Config {
	return Config{Algorithm: PBKDF2, Iterations: MinPBKDF2Iterations}
}

func argon2Config() Config {
	return Config{Algorithm: Argon2id, Iterations: 3, Memory: 16, Parallelism: 1}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid pbkdf2", pbkdf2Config(), false},
		{"valid argon2id", argon2Config(), false},
		{"pbkdf2 below minimum", Config{Algorithm: PBKDF2, Iterations: 599999}, true},
		{"argon2id below minimum", Config{Algorithm: Argon2id, Iterations: 2, Memory: 16, Parallelism: 1}, true},
		{"argon2id missing memory", Config{Algorithm: Argon2id, Iterations: 3, Parallelism: 1}, true},
		{"argon2id missing parallelism", Config{Algorithm: Argon2id, Iterations: 3, Memory: 16}, true},
		{"unknown algorithm", Config{Algorithm: 7, Iterations: 1000000}, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.True(t, errors.IsType(err, errors.ErrKdfFailed), "expected kdf error, got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDeriveMasterKeyDeterminism(t *testing.T) {
	t.Parallel()

	for _, cfg := range []Config{pbkdf2Config(), argon2Config()} {
		first, err := DeriveMasterKey(context.Background(), crypto.NewSecret("CorrectHorse_9!"), "user@example.com", cfg)
		require.NoError(t, err)
		second, err := DeriveMasterKey(context.Background(), crypto.NewSecret("CorrectHorse_9!"), "user@example.com", cfg)
		require.NoError(t, err)

		assert.Len(t, first.Bytes(), MasterKeyLength)
		assert.Equal(t, first.Bytes(), second.Bytes())
	}
}

func TestDeriveMasterKeyNormalizesEmail(t *testing.T) {
	t.Parallel()

	cfg := argon2Config()

	lower, err := DeriveMasterKey(context.Background(), crypto.NewSecret("pw"), "user@example.com", cfg)
	require.NoError(t, err)
	mixed, err := DeriveMasterKey(context.Background(), crypto.NewSecret("pw"), "  User@Example.COM ", cfg)
	require.NoError(t, err)
	other, err := DeriveMasterKey(context.Background(), crypto.NewSecret("pw"), "other@example.com", cfg)
	require.NoError(t, err)

	assert.Equal(t, lower.Bytes(), mixed.Bytes())
	assert.NotEqual(t, lower.Bytes(), other.Bytes())
}

func TestDeriveMasterKeyRejectsEmptyPassword(t *testing.T) {
	t.Parallel()

	_, err := DeriveMasterKey(context.Background(), crypto.NewSecret(""), "user@example.com", argon2Config())
	assert.True(t, errors.IsType(err, errors.ErrKdfFailed))
}

func TestDeriveMasterKeyCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := DeriveMasterKey(ctx, crypto.NewSecret("pw"), "user@example.com",
		Config{Algorithm: Argon2id, Iterations: 10, Memory: 256, Parallelism: 1})
	assert.True(t, errors.IsType(err, errors.ErrKdfFailed))
	assert.Less(t, time.Since(start), 2*time.Second, "cancellation should not wait for derivation")
}

func TestPasswordHashIsNotTheMasterKey(t *testing.T) {
	t.Parallel()

	password := crypto.NewSecret("CorrectHorse_9!")
	masterKey, err := DeriveMasterKey(context.Background(), password, "user@example.com", argon2Config())
	require.NoError(t, err)

	hash := PasswordHash(masterKey, password)
	assert.NotEmpty(t, hash)
	assert.Len(t, hash, 44) // base64 of 32 bytes

	// The hash must never be usable as the master key.
	assert.NotEqual(t, masterKey.Bytes(), []byte(hash))

	// And it is deterministic.
	assert.Equal(t, hash, PasswordHash(masterKey, password))
}

func TestStretch(t *testing.T) {
	t.Parallel()

	masterKey, err := DeriveMasterKey(context.Background(), crypto.NewSecret("pw"), "user@example.com", argon2Config())
	require.NoError(t, err)

	stretched, err := Stretch(masterKey)
	require.NoError(t, err)

	assert.Len(t, stretched.Bytes(), crypto.SymmetricKeyLength)
	// The enc and mac halves come from different info labels.
	assert.NotEqual(t, stretched.EncKey(), stretched.MacKey())

	again, err := Stretch(masterKey)
	require.NoError(t, err)
	assert.Equal(t, stretched.Bytes(), again.Bytes())
}

func TestDecryptUserKey(t *testing.T) {
	t.Parallel()

	masterKey, err := DeriveMasterKey(context.Background(), crypto.NewSecret("pw"), "user@example.com", argon2Config())
	require.NoError(t, err)

	userKey, err := crypto.GenerateSymmetricKey()
	require.NoError(t, err)

	stretched, err := Stretch(masterKey)
	require.NoError(t, err)
	encUserKey, err := crypto.Encrypt(userKey.Bytes(), stretched)
	require.NoError(t, err)

	t.Run("correct password recovers the user key", func(t *testing.T) {
		got, err := DecryptUserKey(encUserKey, masterKey)
		require.NoError(t, err)
		assert.Equal(t, userKey.Bytes(), got.Bytes())
	})

	t.Run("wrong password reports invalid password", func(t *testing.T) {
		wrongKey, err := DeriveMasterKey(context.Background(), crypto.NewSecret("wrong"), "user@example.com", argon2Config())
		require.NoError(t, err)

		_, err = DecryptUserKey(encUserKey, wrongKey)
		assert.True(t, errors.IsInvalidPassword(err), "expected invalid password, got %v", err)
	})
}
