package httpclient

import (
	"fmt"
	"net/url"
	"time"
)

const (
	defaultTimeout = 30 * time.Second
	defaultMaxResponseBytes = 10 << 20
)

// Config configures the HTTP transport.
type Config struct {
	// BaseURL is prepended to request paths that are not absolute URLs.
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`

	// Timeout bounds each individual exchange. Defaults to 30s.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// Headers are default headers applied to all requests.
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`

	// UserAgent is sent on every request when set.
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`

	// TLS configures TLS settings for the transport.
	TLS *TLSConfig `yaml:"tls" mapstructure:"tls"`

	// H2C speaks cleartext HTTP/2 with prior knowledge. Requires an http://
	// BaseURL and no TLS settings.
	H2C bool `yaml:"h2c" mapstructure:"h2c"`

	// MaxResponseBytes bounds how much of a response body is buffered.
	// Larger bodies fail with *ResponseTooLargeError. Defaults to 10 MiB.
	MaxResponseBytes int64 `yaml:"max_response_bytes" mapstructure:"max_response_bytes" validate:"gte=0"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = defaultMaxResponseBytes
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("httpclient: timeout must be positive")
	}
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("httpclient: base_url %q is not an absolute URL", c.BaseURL)
		}
	}
	if err := c.TLS.Validate(); err != nil {
		return err
	}
	if c.H2C {
		if c.TLS != nil {
			return fmt.Errorf("httpclient: h2c cannot be combined with tls")
		}
		if u, err := url.Parse(c.BaseURL); err == nil && u.Scheme == "https" {
			return fmt.Errorf("httpclient: h2c requires an http base_url")
		}
	}
	return nil
}
