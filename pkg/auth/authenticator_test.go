package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dasien/bwcli/pkg/client"
	"github.com/dasien/bwcli/pkg/crypto"
	"github.com/dasien/bwcli/pkg/crypto/kdf"
	"github.com/dasien/bwcli/pkg/environment"
	"github.com/dasien/bwcli/pkg/errors"
	"github.com/dasien/bwcli/pkg/state"
)

const (
	testEmail    = "user@example.com"
	testPassword = "CorrectHorse_9!"
)

// testKdfConfig keeps derivation fast; argon2id at the server minimum.
var testKdfConfig = kdf.Config{Algorithm: kdf.Argon2id, Iterations: 3, Memory: 16, Parallelism: 1}

// fakeServer scripts the identity and api endpoints a login exercises.
type fakeServer struct {
	t *testing.T

	encryptedUserKey string
	passwordHash     string

	requireTwoFactor bool
	tokenCalls       atomic.Int32
	profileCalls     atomic.Int32
}

// newFakeServer builds the server-side half of the account: the user key
// encrypted under the stretched master key, and the expected password hash.
func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()

	password := crypto.NewSecret(testPassword)
	masterKey, err := kdf.DeriveMasterKey(context.Background(), password, testEmail, testKdfConfig)
	require.NoError(t, err)

	userKey, err := crypto.GenerateSymmetricKey()
	require.NoError(t, err)
	stretched, err := kdf.Stretch(masterKey)
	require.NoError(t, err)
	encUserKey, err := crypto.Encrypt(userKey.Bytes(), stretched)
	require.NoError(t, err)

	return &fakeServer{
		t:                t,
		encryptedUserKey: encUserKey.String(),
		passwordHash:     kdf.PasswordHash(masterKey, password),
	}
}

func (f *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/identity/accounts/prelogin", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email string `json:"email"`
		}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(f.t, testEmail, req.Email)
		json.NewEncoder(w).Encode(map[string]any{
			"kdf":            testKdfConfig.Algorithm,
			"kdfIterations":  testKdfConfig.Iterations,
			"kdfMemory":      testKdfConfig.Memory,
			"kdfParallelism": testKdfConfig.Parallelism,
		})
	})

	mux.HandleFunc("/identity/connect/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		require.NoError(f.t, r.ParseForm())

		assert.Equal(f.t, "cli", r.PostForm.Get("client_id"))
		assert.NotEmpty(f.t, r.PostForm.Get("deviceIdentifier"))
		assert.NotEmpty(f.t, r.PostForm.Get("deviceType"))

		if r.PostForm.Get("password") != f.passwordHash {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{"error": "invalid_grant", "error_description": "invalid username or password"})
			return
		}
		if f.requireTwoFactor && r.PostForm.Get("twoFactorToken") == "" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{"error": "invalid_grant", "TwoFactorProviders": []int{0}})
			return
		}

		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "AT1",
			"refresh_token": "RT1",
			"expires_in":    3600,
			"token_type":    "Bearer",
			"Key":           f.encryptedUserKey,
		})
	})

	mux.HandleFunc("/api/accounts/profile", func(w http.ResponseWriter, r *http.Request) {
		f.profileCalls.Add(1)
		assert.Equal(f.t, "Bearer AT1", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(UserProfile{ID: "u1", Email: testEmail, SecurityStamp: "stamp1"})
	})

	return mux
}

type testFixture struct {
	auth   *Authenticator
	store  *state.Store
	tokens *TokenManager
	server *fakeServer
}

func newFixture(t *testing.T) *testFixture {
	t.Helper()

	server := newFakeServer(t)
	ts := httptest.NewServer(server.handler())
	t.Cleanup(ts.Close)

	env, err := environment.NewBuilder(environment.DefaultCloudBase).
		WithAPI(ts.URL + "/api").
		WithIdentity(ts.URL + "/identity").
		Build()
	require.NoError(t, err)

	store, err := state.Open(filepath.Join(t.TempDir(), "data.json"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	c := client.New(client.NewHTTPClientBuilder().Build(), env, nil)
	tokens := NewTokenManager(store, NewRefreshFunc(c))
	c.SetTokenSource(tokens)

	return &testFixture{
		auth:   NewAuthenticator(c, store, tokens, env),
		store:  store,
		tokens: tokens,
		server: server,
	}
}

func TestLoginWithPassword(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)

	result, err := fx.auth.LoginWithPassword(context.Background(), testEmail, crypto.NewSecret(testPassword), nil)
	require.NoError(t, err)

	// The session key decodes to 64 bytes.
	raw, err := base64.StdEncoding.DecodeString(result.SessionKey)
	require.NoError(t, err)
	assert.Len(t, raw, 64)

	// Tokens and the encrypted user key are protected at rest.
	access, err := fx.store.GetSecure("accessToken")
	require.NoError(t, err)
	assert.Equal(t, "AT1", access.Expose())
	refresh, err := fx.store.GetSecure("refreshToken")
	require.NoError(t, err)
	assert.Equal(t, "RT1", refresh.Expose())
	userKey, err := fx.store.GetSecure("userKey")
	require.NoError(t, err)
	assert.Equal(t, fx.server.encryptedUserKey, userKey.Expose())

	// KDF config and profile persist plaintext.
	var cfg kdf.Config
	found, err := fx.store.Get("kdfConfig", &cfg)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, testKdfConfig, cfg)

	var profile UserProfile
	found, err = fx.store.Get("userProfile", &profile)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, testEmail, profile.Email)

	// The raw state file never contains the plaintext tokens.
	rawFile, err := os.ReadFile(fx.store.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(rawFile), "AT1")
	assert.NotContains(t, string(rawFile), "RT1")
}

func TestLoginWrongPassword(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)

	_, err := fx.auth.LoginWithPassword(context.Background(), testEmail, crypto.NewSecret("not the password"), nil)
	require.Error(t, err)

	var typed *errors.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, errors.ErrClient, typed.Type)
}

func TestLoginTwoFactorEscalation(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.server.requireTwoFactor = true

	// First attempt surfaces the escalation with the provider set.
	_, err := fx.auth.LoginWithPassword(context.Background(), testEmail, crypto.NewSecret(testPassword), nil)
	require.True(t, errors.IsTwoFactorRequired(err), "expected two factor escalation, got %v", err)

	var typed *errors.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, []int{int(TwoFactorAuthenticator)}, typed.Providers)

	// Retrying with the token completes the login.
	result, err := fx.auth.LoginWithPassword(context.Background(), testEmail, crypto.NewSecret(testPassword), &TwoFactorSubmission{
		Provider: TwoFactorAuthenticator,
		Token:    "123456",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.SessionKey)

	access, err := fx.store.GetSecure("accessToken")
	require.NoError(t, err)
	assert.Equal(t, "AT1", access.Expose())
}

func TestUnlock(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)

	first, err := fx.auth.LoginWithPassword(context.Background(), testEmail, crypto.NewSecret(testPassword), nil)
	require.NoError(t, err)

	second, err := fx.auth.Unlock(context.Background(), crypto.NewSecret(testPassword))
	require.NoError(t, err)

	// Unlock rotates the session key.
	assert.NotEqual(t, first.SessionKey, second.SessionKey)

	// Everything protected is readable under the new key.
	access, err := fx.store.GetSecure("accessToken")
	require.NoError(t, err)
	assert.Equal(t, "AT1", access.Expose())
	userKey, err := fx.store.GetSecure("userKey")
	require.NoError(t, err)
	assert.Equal(t, fx.server.encryptedUserKey, userKey.Expose())
}

func TestUnlockWrongPassword(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)

	_, err := fx.auth.LoginWithPassword(context.Background(), testEmail, crypto.NewSecret(testPassword), nil)
	require.NoError(t, err)

	_, err = fx.auth.Unlock(context.Background(), crypto.NewSecret("wrong"))
	assert.True(t, errors.IsInvalidPassword(err), "expected invalid password, got %v", err)
}

func TestUnlockWithoutLogin(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)

	_, err := fx.auth.Unlock(context.Background(), crypto.NewSecret(testPassword))
	assert.True(t, errors.IsAuthentication(err))
}

func TestLogoutRemovesEverythingButTheDevice(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)

	_, err := fx.auth.LoginWithPassword(context.Background(), testEmail, crypto.NewSecret(testPassword), nil)
	require.NoError(t, err)

	var deviceBefore string
	found, err := fx.store.Get("deviceId", &deviceBefore)
	require.NoError(t, err)
	require.True(t, found)

	require.NoError(t, fx.auth.Logout())

	for _, key := range []string{"accessToken", "refreshToken", "userKey"} {
		// Protected reads need a session key; reinstall one to prove the
		// records are gone rather than unreadable.
		fresh, err := crypto.GenerateSymmetricKey()
		require.NoError(t, err)
		fx.store.SetSessionKey(fresh)
		value, err := fx.store.GetSecure(key)
		require.NoError(t, err)
		assert.Nil(t, value, "secure record %q should be removed", key)
	}

	var cfg kdf.Config
	found, err = fx.store.Get("kdfConfig", &cfg)
	require.NoError(t, err)
	assert.False(t, found)

	var deviceAfter string
	found, err = fx.store.Get("deviceId", &deviceAfter)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, deviceBefore, deviceAfter)
}

func TestStatusTransitions(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)

	status, err := fx.auth.Status(false)
	require.NoError(t, err)
	assert.Equal(t, StatusUnauthenticated, status.Status)

	_, err = fx.auth.LoginWithPassword(context.Background(), testEmail, crypto.NewSecret(testPassword), nil)
	require.NoError(t, err)

	status, err = fx.auth.Status(true)
	require.NoError(t, err)
	assert.Equal(t, StatusUnlocked, status.Status)
	assert.Equal(t, testEmail, status.UserEmail)

	status, err = fx.auth.Status(false)
	require.NoError(t, err)
	assert.Equal(t, StatusLocked, status.Status)
}

func TestEnsureDeviceIsStable(t *testing.T) {
	t.Parallel()

	store, err := state.Open(filepath.Join(t.TempDir(), "data.json"), nil)
	require.NoError(t, err)
	defer store.Close()

	first, err := EnsureDevice(store)
	require.NoError(t, err)
	assert.NotEmpty(t, first.Identifier)
	assert.NotZero(t, first.Type)

	second, err := EnsureDevice(store)
	require.NoError(t, err)
	assert.Equal(t, first.Identifier, second.Identifier)
}
