// Package httpclient builds the HTTP clients outbound integrations share.
// Every client carries a hard timeout; a stuck endpoint must never hold a
// call slot hostage.
package httpclient

import (
	"net/http"
	"time"
)

type Config struct {
	Timeout   time.Duration
	Transport http.RoundTripper
}

type Option func(*Config)

func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

const (
	// TimeoutShort suits fire-and-forget posts such as webhooks.
	TimeoutShort = 10 * time.Second
	// TimeoutMedium covers audio uploads to the transcription endpoint.
	TimeoutMedium = 30 * time.Second
)

func New(opts ...Option) *http.Client {
	cfg := &Config{
		Timeout:   TimeoutMedium,
		Transport: http.DefaultTransport,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: cfg.Transport,
	}
}

func NewShort(opts ...Option) *http.Client {
	return New(append([]Option{WithTimeout(TimeoutShort)}, opts...)...)
}
