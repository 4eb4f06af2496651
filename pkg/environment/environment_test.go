package environment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dasien/bwcli/pkg/errors"
)

func TestFromBaseURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		base    string
		wantErr bool
		want    *Environment
	}{
		{
			name: "https base derives every service",
			base: "https://vault.example.com",
			want: &Environment{
				Base:          "https://vault.example.com",
				API:           "https://vault.example.com/api",
				Identity:      "https://vault.example.com/identity",
				WebVault:      "https://vault.example.com",
				Icons:         "https://vault.example.com/icons",
				Notifications: "https://vault.example.com/notifications",
				Events:        "https://vault.example.com/events",
			},
		},
		{
			name: "trailing slash is stripped",
			base: "https://vault.example.com/",
			want: &Environment{
				Base:          "https://vault.example.com",
				API:           "https://vault.example.com/api",
				Identity:      "https://vault.example.com/identity",
				WebVault:      "https://vault.example.com",
				Icons:         "https://vault.example.com/icons",
				Notifications: "https://vault.example.com/notifications",
				Events:        "https://vault.example.com/events",
			},
		},
		{
			name: "http localhost is allowed",
			base: "http://localhost:8080",
			want: &Environment{
				Base:          "http://localhost:8080",
				API:           "http://localhost:8080/api",
				Identity:      "http://localhost:8080/identity",
				WebVault:      "http://localhost:8080",
				Icons:         "http://localhost:8080/icons",
				Notifications: "http://localhost:8080/notifications",
				Events:        "http://localhost:8080/events",
			},
		},
		{
			name:    "http loopback ip is allowed",
			base:    "http://127.0.0.1:8080",
			wantErr: false,
			want: &Environment{
				Base:          "http://127.0.0.1:8080",
				API:           "http://127.0.0.1:8080/api",
				Identity:      "http://127.0.0.1:8080/identity",
				WebVault:      "http://127.0.0.1:8080",
				Icons:         "http://127.0.0.1:8080/icons",
				Notifications: "http://127.0.0.1:8080/notifications",
				Events:        "http://127.0.0.1:8080/events",
			},
		},
		{name: "http non-loopback is rejected", base: "http://example.com", wantErr: true},
		{name: "empty is rejected", base: "", wantErr: true},
		{name: "missing host is rejected", base: "https://", wantErr: true},
		{name: "non-http scheme is rejected", base: "ftp://example.com", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env, err := FromBaseURL(tt.base)
			if tt.wantErr {
				assert.True(t, errors.IsType(err, errors.ErrConfiguration), "expected configuration error, got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, env)
		})
	}
}

func TestBuilderOverrides(t *testing.T) {
	t.Parallel()

	env, err := NewBuilder("https://vault.example.com").
		WithAPI("https://api.example.com").
		WithIdentity("https://identity.example.com/").
		Build()
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", env.API)
	assert.Equal(t, "https://identity.example.com", env.Identity)
	assert.Equal(t, "https://vault.example.com/icons", env.Icons)
}

func TestBuilderRejectsInvalidOverride(t *testing.T) {
	t.Parallel()

	_, err := NewBuilder("https://vault.example.com").
		WithAPI("http://api.example.com").
		Build()
	assert.True(t, errors.IsType(err, errors.ErrConfiguration))
}

func TestDefaultCloud(t *testing.T) {
	t.Parallel()

	env := DefaultCloud()
	assert.Equal(t, DefaultCloudBase, env.Base)
	assert.Equal(t, DefaultCloudBase+"/api", env.API)
}
