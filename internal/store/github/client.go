package github

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v75/github"
	"golang.org/x/time/rate"
	"k8s.io/utils/ptr"

	"pluginstore.shikanime.studio/internal/plugin"
)

// NewGitHubLimiter returns a rate limiter tuned for authenticated or unauthenticated GitHub API usage.
func NewGitHubLimiter(authenticated bool) *rate.Limiter {
	var limiter *rate.Limiter
	if authenticated {
		limiter = rate.NewLimiter(rate.Every(time.Hour/5000), 10)
		slog.Info(
			"Created authenticated GitHub rate limiter",
			"rate",
			"5000 requests/hour",
			"burst",
			10,
		)
	} else {
		limiter = rate.NewLimiter(rate.Every(time.Hour/60), 1)
		slog.Info("Created unauthenticated GitHub rate limiter", "rate", "60 requests/hour", "burst", 1)
	}
	return limiter
}

// Client wraps the GitHub API client with rate limiting.
type Client struct {
	c *github.Client
	l *rate.Limiter
}

// GitHubClientOptions configures the GitHub client.
type GitHubClientOptions struct {
	token      string
	limiter    *rate.Limiter
	httpClient *http.Client
	baseURL    string
}

// GitHubClientOption applies a configuration to GitHubClientOptions.
type GitHubClientOption func(*GitHubClientOptions)

// WithToken sets the personal access token for authenticated requests.
func WithToken(token string) GitHubClientOption {
	return func(o *GitHubClientOptions) { o.token = token }
}

// WithLimiter sets the rate limiter used for API calls.
func WithLimiter(l *rate.Limiter) GitHubClientOption {
	return func(o *GitHubClientOptions) { o.limiter = l }
}

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(c *http.Client) GitHubClientOption {
	return func(o *GitHubClientOptions) { o.httpClient = c }
}

// WithBaseURL points the client at a GitHub Enterprise or test API endpoint.
func WithBaseURL(u string) GitHubClientOption {
	return func(o *GitHubClientOptions) { o.baseURL = u }
}

// NewClient constructs a GitHub Client with the given options.
func NewClient(opts ...GitHubClientOption) (*Client, error) {
	var o GitHubClientOptions
	for _, opt := range opts {
		opt(&o)
	}
	c := github.NewClient(o.httpClient)
	if o.token != "" {
		slog.Info("Using authenticated GitHub client")
		c = c.WithAuthToken(o.token)
	} else {
		slog.Warn("Using unauthenticated GitHub client (rate limited)")
	}
	if o.baseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(o.baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub base URL: %w", err)
		}
		c.BaseURL = u
	}
	if o.limiter == nil {
		o.limiter = NewGitHubLimiter(o.token != "")
	}
	return &Client{c: c, l: o.limiter}, nil
}

// Readme retrieves and decodes the README of owner/name.
func (c *Client) Readme(ctx context.Context, owner, name string) ([]byte, error) {
	if err := c.l.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter wait failed: %w", plugin.ErrTransport, err)
	}
	file, _, err := c.c.Repositories.GetReadme(ctx, owner, name, nil)
	if err != nil {
		return nil, classify(owner, name, err)
	}
	switch enc := ptr.Deref(file.Encoding, ""); enc {
	case "base64":
		data, err := base64.StdEncoding.DecodeString(ptr.Deref(file.Content, ""))
		if err != nil {
			return nil, plugin.Parsef("README of %s/%s: %v", owner, name, err)
		}
		return data, nil
	case "":
		return []byte(ptr.Deref(file.Content, "")), nil
	default:
		return nil, plugin.Parsef("README of %s/%s: unsupported encoding %q", owner, name, enc)
	}
}

func classify(owner, name string, err error) error {
	var rle *github.RateLimitError
	if errors.As(err, &rle) && rle.Response != nil {
		return protocolError(rle.Response, rle.Message)
	}
	var ere *github.ErrorResponse
	if errors.As(err, &ere) && ere.Response != nil {
		return protocolError(ere.Response, ere.Message)
	}
	return fmt.Errorf("%w: README of %s/%s: %w", plugin.ErrTransport, owner, name, err)
}

func protocolError(resp *http.Response, msg string) *plugin.ProtocolError {
	pe := &plugin.ProtocolError{Status: resp.StatusCode, Body: msg}
	if resp.Request != nil {
		pe.URL = resp.Request.URL.String()
	}
	return pe
}
