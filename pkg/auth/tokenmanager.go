package auth

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/dasien/bwcli/pkg/client"
	"github.com/dasien/bwcli/pkg/crypto"
	"github.com/dasien/bwcli/pkg/errors"
	"github.com/dasien/bwcli/pkg/logger"
	"github.com/dasien/bwcli/pkg/state"
)

// RefreshFunc exchanges a refresh token for a new token pair at the
// identity service.
type RefreshFunc func(ctx context.Context, refreshToken *crypto.Secret) (*TokenResponse, error)

// TokenManager owns token persistence and coordinates refresh so that at
// most one refresh is in flight per process. Every concurrent caller that
// hits an expired token observes the same post-refresh access token.
type TokenManager struct {
	store   *state.Store
	refresh RefreshFunc
	group   singleflight.Group

	mu   sync.Mutex
	last *oauth2.Token
}

// NewTokenManager creates a token manager over the given store.
func NewTokenManager(store *state.Store, refresh RefreshFunc) *TokenManager {
	return &TokenManager{store: store, refresh: refresh}
}

// NewRefreshFunc returns the standard refresh exchange against the
// identity service's token endpoint.
func NewRefreshFunc(c *client.Client) RefreshFunc {
	return func(ctx context.Context, refreshToken *crypto.Secret) (*TokenResponse, error) {
		form := url.Values{
			"grant_type":    {"refresh_token"},
			"client_id":     {"cli"},
			"refresh_token": {refreshToken.Expose()},
		}
		resp, err := client.PostForm[TokenResponse](ctx, c, "/identity/connect/token", form)
		if err != nil {
			return nil, err
		}
		return &resp, nil
	}
}

// AccessToken returns the persisted access token, or nil when absent.
func (m *TokenManager) AccessToken() (*crypto.Secret, error) {
	return m.store.GetSecure(secureAccessToken)
}

// RefreshTokenValue returns the persisted refresh token, or nil when absent.
func (m *TokenManager) RefreshTokenValue() (*crypto.Secret, error) {
	return m.store.GetSecure(secureRefreshToken)
}

// SaveTokens persists a token pair; expiresIn is the access token lifetime
// in seconds.
func (m *TokenManager) SaveTokens(accessToken, refreshToken string, expiresIn int) error {
	if err := m.store.SetSecure(secureAccessToken, accessToken); err != nil {
		return err
	}
	if err := m.store.SetSecure(secureRefreshToken, refreshToken); err != nil {
		return err
	}

	m.mu.Lock()
	m.last = &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Duration(expiresIn) * time.Second),
	}
	m.mu.Unlock()
	return nil
}

// ClearTokens removes both tokens.
func (m *TokenManager) ClearTokens() error {
	if err := m.store.RemoveSecure(secureAccessToken); err != nil {
		return err
	}
	if err := m.store.RemoveSecure(secureRefreshToken); err != nil {
		return err
	}

	m.mu.Lock()
	m.last = nil
	m.mu.Unlock()
	return nil
}

// Expiry returns the access token expiry recorded at the last save or
// refresh in this process, and whether one is known.
func (m *TokenManager) Expiry() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return time.Time{}, false
	}
	return m.last.Expiry, true
}

// Refresh exchanges the refresh token for a fresh access token. Concurrent
// callers are collapsed into a single exchange; all of them receive the
// same new token or the same failure. If the response carries a new
// refresh token it replaces the old one, otherwise the old one is kept.
func (m *TokenManager) Refresh(ctx context.Context) (*crypto.Secret, error) {
	result, err, shared := m.group.Do("refresh", func() (any, error) {
		refreshToken, err := m.RefreshTokenValue()
		if err != nil {
			return nil, err
		}
		if refreshToken.IsEmpty() {
			return nil, errors.NewAuthenticationError("no refresh token is available", nil)
		}
		defer refreshToken.Zero()

		resp, err := m.refresh(ctx, refreshToken)
		if err != nil {
			return nil, err
		}

		newRefresh := resp.RefreshToken
		if newRefresh == "" {
			newRefresh = refreshToken.Expose()
		}
		if err := m.SaveTokens(resp.AccessToken, newRefresh, resp.ExpiresIn); err != nil {
			return nil, err
		}
		return resp.AccessToken, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logger.Debug("token refresh shared with a concurrent caller")
	}
	return crypto.NewSecret(result.(string)), nil
}
