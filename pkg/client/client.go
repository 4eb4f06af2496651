package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	goerrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dasien/bwcli/pkg/crypto"
	"github.com/dasien/bwcli/pkg/environment"
	"github.com/dasien/bwcli/pkg/errors"
	"github.com/dasien/bwcli/pkg/logger"
	"github.com/dasien/bwcli/pkg/versions"
)

// identityPrefix routes a request path to the identity service instead of
// the API service.
const identityPrefix = "/identity"

// TokenSource supplies bearer tokens to authenticated requests. The token
// manager implements it.
type TokenSource interface {
	// AccessToken returns the current access token, or nil when not
	// authenticated.
	AccessToken() (*crypto.Secret, error)
	// Refresh obtains a fresh access token, coordinating so at most one
	// refresh is in flight per process.
	Refresh(ctx context.Context) (*crypto.Secret, error)
}

// Client executes typed requests against the vault service.
type Client struct {
	http      *http.Client
	env       *environment.Environment
	tokens    TokenSource
	userAgent string
}

// New creates a client over the shared transport. tokens may be nil for a
// client that only performs unauthenticated calls.
func New(httpClient *http.Client, env *environment.Environment, tokens TokenSource) *Client {
	return &Client{
		http:      httpClient,
		env:       env,
		tokens:    tokens,
		userAgent: fmt.Sprintf("Bitwarden_CLI/%s (Go)", versions.GetVersionInfo().Version),
	}
}

// SetTokenSource installs the token source after construction. The token
// manager needs the client for its refresh call, so wiring is two-phase.
func (c *Client) SetTokenSource(tokens TokenSource) {
	c.tokens = tokens
}

// Get performs an unauthenticated GET.
func Get[Resp any](ctx context.Context, c *Client, path string) (Resp, error) {
	return run[Resp](ctx, c, http.MethodGet, path, nil, false)
}

// Post performs an unauthenticated JSON POST.
func Post[Resp any](ctx context.Context, c *Client, path string, body any) (Resp, error) {
	return runJSON[Resp](ctx, c, http.MethodPost, path, body, false)
}

// GetWithAuth performs a bearer-authenticated GET.
func GetWithAuth[Resp any](ctx context.Context, c *Client, path string) (Resp, error) {
	return run[Resp](ctx, c, http.MethodGet, path, nil, true)
}

// PostWithAuth performs a bearer-authenticated JSON POST.
func PostWithAuth[Resp any](ctx context.Context, c *Client, path string, body any) (Resp, error) {
	return runJSON[Resp](ctx, c, http.MethodPost, path, body, true)
}

// PutWithAuth performs a bearer-authenticated JSON PUT.
func PutWithAuth[Resp any](ctx context.Context, c *Client, path string, body any) (Resp, error) {
	return runJSON[Resp](ctx, c, http.MethodPut, path, body, true)
}

// DeleteWithAuth performs a bearer-authenticated DELETE. An empty response
// body is allowed.
func DeleteWithAuth(ctx context.Context, c *Client, path string) error {
	_, err := run[struct{}](ctx, c, http.MethodDelete, path, nil, true)
	return err
}

// PostForm performs a form-encoded POST, as required by the OAuth2 token
// endpoint.
func PostForm[Resp any](ctx context.Context, c *Client, path string, form url.Values) (Resp, error) {
	body := []byte(form.Encode())
	return run[Resp](ctx, c, http.MethodPost, path, &payload{
		data:        body,
		contentType: "application/x-www-form-urlencoded",
	}, false)
}

type payload struct {
	data        []byte
	contentType string
}

func runJSON[Resp any](ctx context.Context, c *Client, method, path string, body any, auth bool) (Resp, error) {
	var zero Resp
	data, err := json.Marshal(body)
	if err != nil {
		return zero, errors.NewSerializationError("encoding request body", err)
	}
	return run[Resp](ctx, c, method, path, &payload{data: data, contentType: "application/json"}, auth)
}

func run[Resp any](ctx context.Context, c *Client, method, path string, body *payload, auth bool) (Resp, error) {
	var zero Resp

	var token *crypto.Secret
	if auth {
		if c.tokens == nil {
			return zero, errors.NewAuthenticationError("not authenticated", nil)
		}
		t, err := c.tokens.AccessToken()
		if err != nil {
			return zero, err
		}
		if t.IsEmpty() {
			// Fail before touching the network.
			return zero, errors.NewAuthenticationError("not authenticated", nil)
		}
		token = t
	}

	resp, err := c.execute(ctx, method, path, body, token)
	if err != nil {
		return zero, err
	}

	// A 401 on an authenticated call means the access token expired.
	// Refresh once (coordinated across concurrent callers) and replay the
	// original request with the new token, exactly once.
	if resp.StatusCode == http.StatusUnauthorized && auth {
		drain(resp)
		fresh, err := c.tokens.Refresh(ctx)
		if err != nil {
			return zero, err
		}
		resp, err = c.execute(ctx, method, path, body, fresh)
		if err != nil {
			return zero, err
		}
	}

	return decode[Resp](resp, method)
}

func (c *Client) execute(ctx context.Context, method, path string, body *payload, token *crypto.Secret) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body.data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), reader)
	if err != nil {
		return nil, errors.NewConfigurationError(fmt.Sprintf("building request for %s", path), err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", body.contentType)
	}
	if token != nil {
		req.Header.Set("Authorization", "Bearer "+token.Expose())
	}

	logger.Debugw("request", "method", method, "path", path)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, mapTransportError(err)
	}
	return resp, nil
}

// resolve picks the service base by path: identity-prefixed paths go to the
// identity service, everything else to the API service.
func (c *Client) resolve(path string) string {
	if rest, found := strings.CutPrefix(path, identityPrefix); found {
		return c.env.Identity + rest
	}
	return c.env.API + path
}

func decode[Resp any](resp *http.Response, method string) (Resp, error) {
	var zero Resp
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return zero, errors.NewNetworkError("reading response body", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if len(data) == 0 {
			if method == http.MethodDelete {
				return zero, nil
			}
			return zero, errors.NewSerializationError("server returned an empty body", nil)
		}
		if err := json.Unmarshal(data, &zero); err != nil {
			return zero, errors.NewSerializationError("decoding response body", err)
		}
		return zero, nil
	}

	return zero, mapStatusError(resp, data)
}

// serverErrorBody is the error shape the service uses across endpoints.
type serverErrorBody struct {
	Message            string           `json:"Message"`
	ValidationErrors   map[string][]any `json:"ValidationErrors"`
	ErrorCode          string           `json:"error"`
	ErrorDescription   string           `json:"error_description"`
	TwoFactorProviders []json.Number    `json:"TwoFactorProviders"`
}

func (b *serverErrorBody) message() string {
	switch {
	case b.Message != "":
		return b.Message
	case b.ErrorDescription != "":
		return b.ErrorDescription
	case b.ErrorCode != "":
		return b.ErrorCode
	default:
		return ""
	}
}

func mapStatusError(resp *http.Response, data []byte) error {
	var body serverErrorBody
	_ = json.Unmarshal(data, &body)

	switch {
	case resp.StatusCode == http.StatusBadRequest && body.ErrorCode == "invalid_grant" && len(body.TwoFactorProviders) > 0:
		providers := make([]int, 0, len(body.TwoFactorProviders))
		for _, p := range body.TwoFactorProviders {
			if n, err := p.Int64(); err == nil {
				providers = append(providers, int(n))
			}
		}
		return errors.NewTwoFactorRequiredError(providers)

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		msg := body.message()
		if msg == "" {
			msg = "authentication required"
		}
		return errors.NewAuthenticationError(msg, nil)

	case resp.StatusCode == http.StatusNotFound:
		return errors.NewNotFoundError(resp.Request.URL.Path, nil)

	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		return errors.NewRateLimitError(retryAfter)

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		msg := body.message()
		if msg == "" {
			msg = fmt.Sprintf("request failed with status %d", resp.StatusCode)
		}
		return errors.NewClientError(resp.StatusCode, msg)

	default:
		msg := body.message()
		if msg == "" {
			msg = fmt.Sprintf("server error %d", resp.StatusCode)
		}
		return errors.NewServerError(resp.StatusCode, msg)
	}
}

func mapTransportError(err error) error {
	var urlErr *url.Error
	if goerrors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return errors.NewTimeoutError("request timed out", err)
		}
		var certErr *tls.CertificateVerificationError
		var unknownAuthority x509.UnknownAuthorityError
		var hostnameErr x509.HostnameError
		if goerrors.As(err, &certErr) || goerrors.As(err, &unknownAuthority) || goerrors.As(err, &hostnameErr) {
			return errors.NewTLSError("could not verify the server certificate", err)
		}
	}
	return errors.NewNetworkError("could not reach the server", err)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
