// Package auth orchestrates the account session: login, two-factor
// escalation, unlock, lock, logout, and the token lifecycle that keeps
// authenticated requests flowing.
package auth

import (
	"github.com/dasien/bwcli/pkg/crypto/kdf"
)

// TwoFactorProvider identifies a two-step login method, numbered as the
// service numbers them.
type TwoFactorProvider int

// Two-factor providers. Authenticator and Email are interactive in this
// client; the rest are surfaced for the caller to handle.
const (
	TwoFactorAuthenticator   TwoFactorProvider = 0
	TwoFactorEmail           TwoFactorProvider = 1
	TwoFactorDuo             TwoFactorProvider = 2
	TwoFactorYubiKey         TwoFactorProvider = 3
	TwoFactorU2F             TwoFactorProvider = 4
	TwoFactorRemember        TwoFactorProvider = 5
	TwoFactorOrganizationDuo TwoFactorProvider = 6
	TwoFactorWebAuthn        TwoFactorProvider = 7
)

// TwoFactorSubmission carries a second-factor answer on a login retry.
type TwoFactorSubmission struct {
	Provider TwoFactorProvider
	Token    string
	Remember bool
}

// preloginRequest asks the identity service for an account's KDF settings.
type preloginRequest struct {
	Email string `json:"email"`
}

// PreloginResponse is the account's key-derivation configuration.
type PreloginResponse struct {
	Kdf            kdf.Algorithm `json:"kdf"`
	KdfIterations  int           `json:"kdfIterations"`
	KdfMemory      int           `json:"kdfMemory"`
	KdfParallelism int           `json:"kdfParallelism"`
}

// Config converts the prelogin response into a kdf.Config.
func (p PreloginResponse) Config() kdf.Config {
	return kdf.Config{
		Algorithm:   p.Kdf,
		Iterations:  p.KdfIterations,
		Memory:      p.KdfMemory,
		Parallelism: p.KdfParallelism,
	}
}

// TokenResponse is the body of a successful /connect/token call.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`

	// Key is the user key encrypted under the master key, present on
	// password-grant responses.
	Key string `json:"Key"`
	// PrivateKey is the RSA private key encrypted under the user key.
	PrivateKey string `json:"PrivateKey"`

	Kdf            kdf.Algorithm `json:"Kdf"`
	KdfIterations  int           `json:"KdfIterations"`
	KdfMemory      int           `json:"KdfMemory"`
	KdfParallelism int           `json:"KdfParallelism"`

	// TwoFactorToken is a remember-me token returned when the caller asked
	// to skip future two-factor prompts on this device.
	TwoFactorToken string `json:"TwoFactorToken"`
}

// UserProfile is the account profile persisted plaintext in state.
type UserProfile struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name,omitempty"`
	Premium       bool   `json:"premium"`
	SecurityStamp string `json:"securityStamp"`
}

// VaultStatus describes the session state of the local vault.
type VaultStatus string

// Vault states as reported by the status operation.
const (
	StatusUnauthenticated VaultStatus = "unauthenticated"
	StatusLocked          VaultStatus = "locked"
	StatusUnlocked        VaultStatus = "unlocked"
)

// Status is the result of the status operation.
type Status struct {
	ServerURL string      `json:"serverUrl"`
	UserEmail string      `json:"userEmail,omitempty"`
	UserID    string      `json:"userId,omitempty"`
	Status    VaultStatus `json:"status"`
}

// LoginResult is returned by login and unlock: the fresh session key for
// the caller to export as BW_SESSION.
type LoginResult struct {
	SessionKey string
}

// State record keys owned by this package.
const (
	recordDeviceID    = "deviceId"
	recordUserProfile = "userProfile"
	recordKdfConfig   = "kdfConfig"
	recordEnvironment = "environmentUrls"

	secureAccessToken  = "accessToken"
	secureRefreshToken = "refreshToken"
	secureUserKey      = "userKey"
)
