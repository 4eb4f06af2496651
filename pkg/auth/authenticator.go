package auth

import (
	"context"
	"net/url"
	"strconv"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dasien/bwcli/pkg/client"
	"github.com/dasien/bwcli/pkg/crypto"
	"github.com/dasien/bwcli/pkg/crypto/kdf"
	"github.com/dasien/bwcli/pkg/environment"
	"github.com/dasien/bwcli/pkg/errors"
	"github.com/dasien/bwcli/pkg/logger"
	"github.com/dasien/bwcli/pkg/session"
	"github.com/dasien/bwcli/pkg/state"
)

// Authenticator drives the auth session state machine: logged out, locked,
// and unlocked.
type Authenticator struct {
	client *client.Client
	store  *state.Store
	tokens *TokenManager
	env    *environment.Environment
}

// NewAuthenticator wires the authenticator over its collaborators.
func NewAuthenticator(c *client.Client, store *state.Store, tokens *TokenManager, env *environment.Environment) *Authenticator {
	return &Authenticator{client: c, store: store, tokens: tokens, env: env}
}

// Prelogin fetches the account's KDF configuration.
func (a *Authenticator) Prelogin(ctx context.Context, email string) (kdf.Config, error) {
	resp, err := client.Post[PreloginResponse](ctx, a.client, "/identity/accounts/prelogin", preloginRequest{
		Email: kdf.NormalizeEmail(email),
	})
	if err != nil {
		return kdf.Config{}, err
	}
	cfg := resp.Config()
	if err := cfg.Validate(); err != nil {
		return kdf.Config{}, err
	}
	return cfg, nil
}

// LoginWithPassword performs a password-grant login. When the server
// demands a second factor the returned error is a TwoFactorRequired
// escalation; the caller re-invokes with the submission filled in.
func (a *Authenticator) LoginWithPassword(ctx context.Context, email string, password *crypto.Secret, twoFactor *TwoFactorSubmission) (*LoginResult, error) {
	cfg, err := a.Prelogin(ctx, email)
	if err != nil {
		return nil, err
	}

	masterKey, err := kdf.DeriveMasterKey(ctx, password, email, cfg)
	if err != nil {
		return nil, err
	}
	defer masterKey.Zero()

	device, err := EnsureDevice(a.store)
	if err != nil {
		return nil, err
	}

	form := url.Values{
		"grant_type":       {"password"},
		"username":         {kdf.NormalizeEmail(email)},
		"password":         {kdf.PasswordHash(masterKey, password)},
		"scope":            {"api offline_access"},
		"client_id":        {"cli"},
		"deviceType":       {strconv.Itoa(device.Type)},
		"deviceName":       {device.Name},
		"deviceIdentifier": {device.Identifier},
	}
	if twoFactor != nil {
		form.Set("twoFactorToken", twoFactor.Token)
		form.Set("twoFactorProvider", strconv.Itoa(int(twoFactor.Provider)))
		if twoFactor.Remember {
			form.Set("twoFactorRemember", "1")
		}
	}

	resp, err := client.PostForm[TokenResponse](ctx, a.client, "/identity/connect/token", form)
	if err != nil {
		return nil, err
	}

	encUserKey, err := crypto.ParseEncString(resp.Key)
	if err != nil {
		return nil, err
	}
	userKey, err := kdf.DecryptUserKey(encUserKey, masterKey)
	if err != nil {
		return nil, err
	}
	defer userKey.Zero()

	sessionKey, err := session.Generate()
	if err != nil {
		return nil, err
	}
	a.store.SetSessionKey(sessionKey)

	if err := a.persistLogin(&resp, resp.Key, cfg); err != nil {
		return nil, err
	}
	if err := a.fetchProfile(ctx); err != nil {
		return nil, err
	}

	logger.Infow("logged in", "email", kdf.NormalizeEmail(email))
	return &LoginResult{SessionKey: sessionKey.ToBase64()}, nil
}

// LoginWithAPIKey performs a client-credentials login. No master or user
// key is available afterwards; vault decryption requires a later unlock.
func (a *Authenticator) LoginWithAPIKey(ctx context.Context, clientID string, clientSecret *crypto.Secret) (*LoginResult, error) {
	device, err := EnsureDevice(a.store)
	if err != nil {
		return nil, err
	}

	form := url.Values{
		"grant_type":       {"client_credentials"},
		"scope":            {"api"},
		"client_id":        {clientID},
		"client_secret":    {clientSecret.Expose()},
		"deviceType":       {strconv.Itoa(device.Type)},
		"deviceName":       {device.Name},
		"deviceIdentifier": {device.Identifier},
	}

	resp, err := client.PostForm[TokenResponse](ctx, a.client, "/identity/connect/token", form)
	if err != nil {
		return nil, err
	}

	sessionKey, err := session.Generate()
	if err != nil {
		return nil, err
	}
	a.store.SetSessionKey(sessionKey)

	if err := a.tokens.SaveTokens(resp.AccessToken, resp.RefreshToken, resp.ExpiresIn); err != nil {
		return nil, err
	}
	if err := a.fetchProfile(ctx); err != nil {
		return nil, err
	}

	return &LoginResult{SessionKey: sessionKey.ToBase64()}, nil
}

// Unlock re-derives the master key from the password and reissues a fresh
// session key, re-protecting every secure record under it. Requires the
// stored encrypted user key to be readable, so a session key (environment
// or keyring) must still be present.
func (a *Authenticator) Unlock(ctx context.Context, password *crypto.Secret) (*LoginResult, error) {
	var cfg kdf.Config
	found, err := a.store.Get(recordKdfConfig, &cfg)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.NewAuthenticationError("you are not logged in", nil)
	}

	var profile UserProfile
	if _, err := a.store.Get(recordUserProfile, &profile); err != nil {
		return nil, err
	}

	wrappedUserKey, err := a.store.GetSecure(secureUserKey)
	if err != nil {
		return nil, err
	}
	if wrappedUserKey.IsEmpty() {
		return nil, errors.NewAuthenticationError("no user key is stored; log in again", nil)
	}
	accessToken, err := a.store.GetSecure(secureAccessToken)
	if err != nil {
		return nil, err
	}
	refreshToken, err := a.store.GetSecure(secureRefreshToken)
	if err != nil {
		return nil, err
	}

	masterKey, err := kdf.DeriveMasterKey(ctx, password, profile.Email, cfg)
	if err != nil {
		return nil, err
	}
	defer masterKey.Zero()

	encUserKey, err := crypto.ParseEncString(wrappedUserKey.Expose())
	if err != nil {
		return nil, err
	}
	userKey, err := kdf.DecryptUserKey(encUserKey, masterKey)
	if err != nil {
		return nil, err
	}
	defer userKey.Zero()

	// Password verified; rotate the session key and re-protect everything
	// that was readable under the old one.
	sessionKey, err := session.Generate()
	if err != nil {
		return nil, err
	}
	a.store.SetSessionKey(sessionKey)

	if err := a.store.SetSecure(secureUserKey, wrappedUserKey.Expose()); err != nil {
		return nil, err
	}
	if !accessToken.IsEmpty() {
		if err := a.store.SetSecure(secureAccessToken, accessToken.Expose()); err != nil {
			return nil, err
		}
	}
	if !refreshToken.IsEmpty() {
		if err := a.store.SetSecure(secureRefreshToken, refreshToken.Expose()); err != nil {
			return nil, err
		}
	}

	return &LoginResult{SessionKey: sessionKey.ToBase64()}, nil
}

// Lock drops the in-memory session key and any keyring copy. The encrypted
// user key stays on disk; unlock re-derives access from the password.
func (a *Authenticator) Lock() error {
	a.store.SetSessionKey(nil)
	return session.DeleteFromKeyring()
}

// Logout removes every account record except the device identifier.
func (a *Authenticator) Logout() error {
	for _, key := range []string{secureAccessToken, secureRefreshToken, secureUserKey} {
		if err := a.store.RemoveSecure(key); err != nil {
			return err
		}
	}
	for _, key := range []string{recordKdfConfig, recordUserProfile} {
		if err := a.store.Remove(key); err != nil {
			return err
		}
	}
	a.store.SetSessionKey(nil)
	return session.DeleteFromKeyring()
}

// Status reports the vault session state without touching the network.
func (a *Authenticator) Status(sessionKeyPresent bool) (*Status, error) {
	status := &Status{ServerURL: a.env.Base, Status: StatusUnauthenticated}

	var profile UserProfile
	found, err := a.store.Get(recordUserProfile, &profile)
	if err != nil {
		return nil, err
	}
	if !found {
		return status, nil
	}

	status.UserEmail = profile.Email
	status.UserID = profile.ID
	status.Status = StatusLocked

	if !sessionKeyPresent {
		return status, nil
	}
	// A readable user key means the session key is the live one.
	if _, err := a.store.GetSecure(secureUserKey); err != nil {
		return status, nil
	}
	status.Status = StatusUnlocked
	return status, nil
}

// TokenExpiry decodes the persisted access token's exp claim. The token is
// an opaque JWT; no signature verification happens client-side.
func (a *Authenticator) TokenExpiry() (int64, error) {
	token, err := a.tokens.AccessToken()
	if err != nil {
		return 0, err
	}
	if token.IsEmpty() {
		return 0, errors.NewAuthenticationError("not authenticated", nil)
	}
	defer token.Zero()

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token.Expose(), claims); err != nil {
		return 0, errors.NewSerializationError("decoding access token", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0, errors.NewSerializationError("access token has no expiry", err)
	}
	return exp.Unix(), nil
}

func (a *Authenticator) persistLogin(resp *TokenResponse, encryptedUserKey string, cfg kdf.Config) error {
	if err := a.tokens.SaveTokens(resp.AccessToken, resp.RefreshToken, resp.ExpiresIn); err != nil {
		return err
	}
	if err := a.store.SetSecure(secureUserKey, encryptedUserKey); err != nil {
		return err
	}
	if err := a.store.Set(recordKdfConfig, cfg); err != nil {
		return err
	}
	return a.store.Set(recordEnvironment, a.env)
}

func (a *Authenticator) fetchProfile(ctx context.Context) error {
	profile, err := client.GetWithAuth[UserProfile](ctx, a.client, "/accounts/profile")
	if err != nil {
		return err
	}
	return a.store.Set(recordUserProfile, profile)
}
