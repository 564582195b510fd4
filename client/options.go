package client

// Functional options that configure the Client during construction.

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Andrew920528/vibe-30/client/internal/shardqueue"
)

type options struct {
	timeout   time.Duration
	debug     bool
	transport http.RoundTripper
	queue     shardqueue.Config
}

// Option configures a Client during construction in New.
type Option func(*options) error

// WithHTTPTimeout bounds a single HTTP request. Prefer per-call context
// deadlines; this is a coarse safety net. The value must be greater than zero.
func WithHTTPTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return fmt.Errorf("http timeout must be > 0")
		}
		o.timeout = d
		return nil
	}
}

// WithDebugLogging logs each request and response. Bodies and headers,
// including the bearer token, end up in the log.
func WithDebugLogging(enabled bool) Option {
	return func(o *options) error {
		o.debug = o.debug || enabled
		return nil
	}
}

// WithRetries lets queued writes retry recoverable failures (network errors,
// 5xx, 408, 429) up to n extra times with exponential backoff. Writes are
// not idempotent: a retried add can land twice if the first response was lost.
func WithRetries(n int) Option {
	return func(o *options) error {
		if n < 0 {
			return fmt.Errorf("retries must be >= 0")
		}
		o.queue.MaxAttempts = n + 1
		return nil
	}
}

// WithTransport replaces the base HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) error {
		if rt == nil {
			return fmt.Errorf("transport cannot be nil")
		}
		o.transport = rt
		return nil
	}
}
