// Package base holds settings shared by provider REST clients.
package base

import (
	"net/http"
)

// Config is embedded into a provider client.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Model      string
	// UsageListener receives token usage after each successful call.
	UsageListener UsageListener
}

// ClientOption mutates Config.
type ClientOption func(*Config)

// WithBaseURL overrides the provider endpoint; blank keeps the default.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Config) {
		if baseURL != "" {
			c.BaseURL = baseURL
		}
	}
}

// WithHTTPClient replaces the HTTP client, e.g. with an httptest server client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Config) {
		if client != nil {
			c.HTTPClient = client
		}
	}
}

// WithUsageListener registers the usage callback.
func WithUsageListener(l UsageListener) ClientOption {
	return func(c *Config) {
		c.UsageListener = l
	}
}
