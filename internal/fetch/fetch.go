// Package fetch performs bounded HTTP requests and maps failures onto the
// plugin error taxonomy.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"pluginstore.shikanime.studio/internal/plugin"
)

const (
	// DefaultTimeout bounds every request.
	DefaultTimeout = 10 * time.Second
	// DefaultUserAgent identifies requests made by this module.
	DefaultUserAgent = "pluginstore/1.0"

	maxErrorBody = 4 << 10
)

// Response is a successful GET.
type Response struct {
	Body []byte
	// Validator is the ETag of the response, or its Content-Length when no ETag is sent.
	Validator string
}

// Options configures a Client.
type Options struct {
	timeout   time.Duration
	userAgent string
	transport http.RoundTripper
}

// Option applies a configuration to Options.
type Option func(*Options)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.timeout = d }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *Options) { o.userAgent = ua }
}

// WithTransport sets the underlying round tripper. It is wrapped with otelhttp.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *Options) { o.transport = rt }
}

// Client issues GET and HEAD requests.
type Client struct {
	c         *http.Client
	userAgent string
}

// NewClient returns a Client with a 10s timeout and traced transport by default.
func NewClient(opts ...Option) *Client {
	o := Options{timeout: DefaultTimeout, userAgent: DefaultUserAgent, transport: http.DefaultTransport}
	for _, opt := range opts {
		opt(&o)
	}
	return &Client{
		c: &http.Client{
			Timeout:   o.timeout,
			Transport: otelhttp.NewTransport(o.transport),
		},
		userAgent: o.userAgent,
	}
}

// HTTPClient returns the underlying traced http.Client.
func (c *Client) HTTPClient() *http.Client { return c.c }

// Get downloads url. Non-2xx statuses return a *plugin.ProtocolError.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	resp, err := c.do(ctx, http.MethodGet, url)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %w", plugin.ErrTransport, url, err)
	}
	validator := validatorOf(resp)
	if validator == "" {
		validator = strconv.Itoa(len(body))
	}
	slog.DebugContext(ctx, "Fetched resource", "url", url, "bytes", len(body), "validator", validator)
	return &Response{Body: body, Validator: validator}, nil
}

// Validator issues a HEAD request and returns the resource's current validator.
// It returns an empty string when the server sends neither ETag nor Content-Length.
func (c *Client) Validator(ctx context.Context, url string) (string, error) {
	resp, err := c.do(ctx, http.MethodHead, url)
	if err != nil {
		return "", err
	}
	_ = resp.Body.Close()
	return validatorOf(resp), nil
}

func (c *Client) do(ctx context.Context, method, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, plugin.Validationf("invalid url %q: %v", url, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", plugin.ErrTransport, method, url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer func() { _ = resp.Body.Close() }()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &plugin.ProtocolError{
			URL:    url,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(body)),
		}
	}
	return resp, nil
}

func validatorOf(resp *http.Response) string {
	if etag := resp.Header.Get("ETag"); etag != "" {
		return etag
	}
	if resp.ContentLength >= 0 {
		return strconv.FormatInt(resp.ContentLength, 10)
	}
	return ""
}
