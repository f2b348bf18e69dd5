// Package google implements connectors for Google Calendar, Gmail and Drive
// on top of the google.golang.org/api clients.
package google

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"github.com/becomeliminal/nim-recall/connector"
)

// Option configures a Google connector.
type Option func(*clientConfig)

type clientConfig struct {
	endpoint string
	base     *http.Client
}

// WithEndpoint overrides the API base URL.
func WithEndpoint(url string) Option {
	return func(c *clientConfig) {
		c.endpoint = url
	}
}

// WithHTTPClient sets the client that carries authorized requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *clientConfig) {
		c.base = hc
	}
}

func newClientConfig(opts []Option) clientConfig {
	var c clientConfig
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// clientOptions authorizes every request with creds. Tokens are used as
// given and never refreshed.
func (c clientConfig) clientOptions(ctx context.Context, creds connector.Credentials) []option.ClientOption {
	if c.base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.base)
	}
	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, creds.TokenSource()))}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}
	return opts
}

// parseTime accepts the RFC 3339 timestamps and all-day dates the Google
// APIs return. Unparseable values yield the zero time.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t
	}
	return time.Time{}
}
