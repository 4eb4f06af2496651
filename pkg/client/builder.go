// Package client implements the HTTP pipeline against the vault service: a
// single pooled transport, typed request helpers, bearer injection with a
// one-shot refresh retry on 401, and mapping of responses into the error
// taxonomy.
package client

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// Transport defaults.
const (
	// HTTPTimeout is the overall request deadline.
	HTTPTimeout = 60 * time.Second
	// ConnectTimeout bounds TCP connection establishment.
	ConnectTimeout = 30 * time.Second
	// MaxRedirects bounds redirect chains.
	MaxRedirects = 10
)

// HTTPClientBuilder constructs the shared pooled http.Client. One client
// instance is built per process so connection pooling and proxy detection
// are shared by every request.
type HTTPClientBuilder struct {
	clientTimeout       time.Duration
	connectTimeout      time.Duration
	tlsHandshakeTimeout time.Duration
}

// NewHTTPClientBuilder creates a builder with the default timeouts.
func NewHTTPClientBuilder() *HTTPClientBuilder {
	return &HTTPClientBuilder{
		clientTimeout:       HTTPTimeout,
		connectTimeout:      ConnectTimeout,
		tlsHandshakeTimeout: 10 * time.Second,
	}
}

// WithTimeout overrides the overall request deadline.
func (b *HTTPClientBuilder) WithTimeout(d time.Duration) *HTTPClientBuilder {
	b.clientTimeout = d
	return b
}

// WithConnectTimeout overrides the connection deadline.
func (b *HTTPClientBuilder) WithConnectTimeout(d time.Duration) *HTTPClientBuilder {
	b.connectTimeout = d
	return b
}

// Build assembles the http.Client. Proxy configuration comes from
// HTTP_PROXY, HTTPS_PROXY, and NO_PROXY.
func (b *HTTPClientBuilder) Build() *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   b.connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		TLSHandshakeTimeout: b.tlsHandshakeTimeout,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
	}

	return &http.Client{
		Timeout:   b.clientTimeout,
		Transport: transport,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= MaxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}
