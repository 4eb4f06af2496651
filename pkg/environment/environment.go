// Package environment resolves the vault server base URL into the set of
// per-service endpoints used by the HTTP client.
package environment

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/dasien/bwcli/pkg/errors"
)

// DefaultCloudBase is the official hosted service.
const DefaultCloudBase = "https://vault.bitwarden.com"

// Environment holds the resolved service URLs. None carry a trailing slash.
type Environment struct {
	Base          string `json:"base"`
	API           string `json:"api"`
	Identity      string `json:"identity"`
	WebVault      string `json:"webVault"`
	Icons         string `json:"icons"`
	Notifications string `json:"notifications"`
	Events        string `json:"events,omitempty"`
}

// FromBaseURL derives every service URL from a single base. The scheme must
// be https unless the host is localhost or 127.0.0.1.
func FromBaseURL(base string) (*Environment, error) {
	return NewBuilder(base).Build()
}

// DefaultCloud returns the environment for the official hosted service.
func DefaultCloud() *Environment {
	env, err := FromBaseURL(DefaultCloudBase)
	if err != nil {
		// The constant is known valid.
		panic(err)
	}
	return env
}

// Builder assembles an Environment with optional per-service overrides.
type Builder struct {
	base          string
	api           string
	identity      string
	webVault      string
	icons         string
	notifications string
	events        string
}

// NewBuilder starts a builder from the given base URL.
func NewBuilder(base string) *Builder {
	return &Builder{base: base}
}

// WithAPI overrides the API service URL.
func (b *Builder) WithAPI(u string) *Builder { b.api = u; return b }

// WithIdentity overrides the identity service URL.
func (b *Builder) WithIdentity(u string) *Builder { b.identity = u; return b }

// WithWebVault overrides the web vault URL.
func (b *Builder) WithWebVault(u string) *Builder { b.webVault = u; return b }

// WithIcons overrides the icons service URL.
func (b *Builder) WithIcons(u string) *Builder { b.icons = u; return b }

// WithNotifications overrides the notifications service URL.
func (b *Builder) WithNotifications(u string) *Builder { b.notifications = u; return b }

// WithEvents overrides the events service URL.
func (b *Builder) WithEvents(u string) *Builder { b.events = u; return b }

// Build validates the base and every override, then fills the defaults.
func (b *Builder) Build() (*Environment, error) {
	base, err := normalize(b.base)
	if err != nil {
		return nil, err
	}

	env := &Environment{
		Base:          base,
		API:           base + "/api",
		Identity:      base + "/identity",
		WebVault:      base,
		Icons:         base + "/icons",
		Notifications: base + "/notifications",
		Events:        base + "/events",
	}

	overrides := []struct {
		value  string
		target *string
	}{
		{b.api, &env.API},
		{b.identity, &env.Identity},
		{b.webVault, &env.WebVault},
		{b.icons, &env.Icons},
		{b.notifications, &env.Notifications},
		{b.events, &env.Events},
	}
	for _, o := range overrides {
		if o.value == "" {
			continue
		}
		normalized, err := normalize(o.value)
		if err != nil {
			return nil, err
		}
		*o.target = normalized
	}
	return env, nil
}

func normalize(raw string) (string, error) {
	if raw == "" {
		return "", errors.NewConfigurationError("server URL must not be empty", nil)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", errors.NewConfigurationError(fmt.Sprintf("invalid server URL %q", raw), err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", errors.NewConfigurationError(fmt.Sprintf("server URL %q must use http or https", raw), nil)
	}
	if u.Host == "" {
		return "", errors.NewConfigurationError(fmt.Sprintf("server URL %q has no host", raw), nil)
	}
	if u.Scheme == "http" && !isLoopbackHost(u.Hostname()) {
		return "", errors.NewConfigurationError(fmt.Sprintf("server URL %q must use https", raw), nil)
	}

	return strings.TrimRight(u.String(), "/"), nil
}

func isLoopbackHost(host string) bool {
	return host == "localhost" || host == "127.0.0.1"
}
