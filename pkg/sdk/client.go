package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// APIRoot is the path segment under which the API is mounted on the server.
	APIRoot = "api"
	// DefaultTimeout bounds every HTTP call issued by the client.
	DefaultTimeout = 20 * time.Second
	// RequestIDHeader correlates a request with its refresh-triggered replay.
	RequestIDHeader = "X-Request-ID"

	maxErrorBody = 64 << 10
)

// Client is the entry point to the Mamutes API. It owns the session (authentication state)
// and an HTTP client whose transport attaches credentials and renews them on 401.
type Client struct {
	root      *url.URL
	http      *http.Client
	raw       *http.Client
	transport *Transport
	session   *Session
	logger    *slog.Logger
}

// ClientOptions configures SDK client construction.
type ClientOptions struct {
	// HTTPClient supplies the base transport. Its Timeout is ignored in favour of Timeout.
	HTTPClient *http.Client
	// Store persists the token pair. Defaults to a MemoryStore.
	Store CredentialStore
	// Timeout bounds each HTTP call. Defaults to DefaultTimeout.
	Timeout time.Duration
	Logger  *slog.Logger
	// OnLoginRequired runs after the session has been dropped because it could not be renewed.
	OnLoginRequired func()
	// OnRetry runs just before a request is replayed with a renewed token.
	OnRetry func(*http.Request)
}

// ClientOption mutates ClientOptions.
type ClientOption func(*ClientOptions)

// WithHTTPClient overrides the HTTP client whose transport performs the actual calls.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(opts *ClientOptions) {
		opts.HTTPClient = client
	}
}

// WithCredentialStore sets the durable store used to seed and mirror the session tokens.
func WithCredentialStore(store CredentialStore) ClientOption {
	return func(opts *ClientOptions) {
		opts.Store = store
	}
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(opts *ClientOptions) {
		opts.Timeout = d
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(opts *ClientOptions) {
		opts.Logger = logger
	}
}

// WithLoginRedirect registers the callback invoked when the user must log in again.
func WithLoginRedirect(fn func()) ClientOption {
	return func(opts *ClientOptions) {
		opts.OnLoginRequired = fn
	}
}

// WithRetryObserver registers a callback invoked before each refresh-triggered replay.
func WithRetryObserver(fn func(*http.Request)) ClientOption {
	return func(opts *ClientOptions) {
		opts.OnRetry = fn
	}
}

// NewClient creates a client for the server at serverURL (e.g. https://mamutes.example.com).
// The API root ("/api") is appended unless serverURL already ends with it.
// Tokens are read from the credential store once, here.
func NewClient(serverURL string, optFns ...ClientOption) (*Client, error) {
	opts := ClientOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	root, err := apiRoot(serverURL)
	if err != nil {
		return nil, err
	}

	var base http.RoundTripper = http.DefaultTransport
	if opts.HTTPClient != nil && opts.HTTPClient.Transport != nil {
		base = opts.HTTPClient.Transport
	}

	c := &Client{
		root:   root,
		raw:    &http.Client{Transport: base, Timeout: opts.Timeout},
		logger: opts.Logger,
	}
	c.session = newSession(opts.Store, c, opts.Logger)
	c.transport = &Transport{
		Base:            base,
		session:         c.session,
		onLoginRequired: opts.OnLoginRequired,
		onRetry:         opts.OnRetry,
		logger:          opts.Logger,
	}
	c.http = &http.Client{Transport: c.transport, Timeout: opts.Timeout}

	return c, nil
}

func apiRoot(serverURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(serverURL))
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q: scheme and host are required", serverURL)
	}
	p := strings.TrimSuffix(u.Path, "/")
	if !strings.HasSuffix(p, "/"+APIRoot) {
		p += "/" + APIRoot
	}
	u.Path = p
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// Session returns the authentication state shared by the transport and navigation guards.
func (c *Client) Session() *Session {
	return c.session
}

// HTTPClient returns the intercepted client for callers that build their own requests.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// BaseURL returns the API root all request paths are resolved against.
func (c *Client) BaseURL() string {
	return c.root.String()
}

// URL resolves an API path against the API root.
func (c *Client) URL(path string, query url.Values) string {
	u := c.root.JoinPath(normalizePath(path))
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// normalizePath strips a redundant API-root prefix so "/api/accounts/me/",
// "api/accounts/me/" and "accounts/me/" all address the same endpoint.
func normalizePath(p string) string {
	switch {
	case strings.HasPrefix(p, "/"+APIRoot+"/"):
		p = p[len(APIRoot)+1:]
	case strings.HasPrefix(p, APIRoot+"/"):
		p = p[len(APIRoot):]
	}
	return strings.TrimPrefix(p, "/")
}

// Get issues a GET and decodes the JSON response into out (which may be nil).
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, nil, body, out)
}

// Put issues a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, nil, body, out)
}

// Patch issues a PATCH with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPatch, path, nil, body, out)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// Do sends a request through the intercepted client.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	return c.do(ctx, c.http, method, path, query, body, out)
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, query url.Values, body, out any) error {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}

	c.logger.Debug("api request", "method", method, "path", req.URL.Path, "request_id", req.Header.Get(RequestIDHeader))

	resp, err := hc.Do(req)
	if err != nil {
		return transportError(req, err)
	}
	defer resp.Body.Close()

	return decodeResponse(req, resp, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		// bytes.Reader lets net/http populate GetBody, which makes the request replayable.
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path, query), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(RequestIDHeader, uuid.NewString())
	return req, nil
}

// transportError unwraps the *url.Error produced by http.Client. A RefreshExpiredError raised
// by the transport is returned as-is; everything else becomes a TransportError.
func transportError(req *http.Request, err error) error {
	var expired *RefreshExpiredError
	if errors.As(err, &expired) {
		return expired
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	return &TransportError{Method: req.Method, URL: req.URL.Redacted(), Err: err}
}

func decodeResponse(req *http.Request, resp *http.Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Method:     req.Method,
			Path:       req.URL.Path,
			StatusCode: resp.StatusCode,
			Detail:     errorDetail(data),
			Body:       data,
		}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to decode %s %s response: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

// errorDetail extracts the human-readable message from a DRF-style error body:
// {"detail": "..."} or a field map such as {"current_password": "..."}.
func errorDetail(data []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}
	if detail, ok := payload["detail"].(string); ok {
		return detail
	}
	parts := make([]string, 0, len(payload))
	for field, v := range payload {
		switch msg := v.(type) {
		case string:
			parts = append(parts, field+": "+msg)
		case []any:
			for _, m := range msg {
				parts = append(parts, fmt.Sprintf("%s: %v", field, m))
			}
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}
