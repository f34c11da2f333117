package executor

import (
	"fmt"
	"time"

	"github.com/kbukum/streamfetch/resilience"
)

const (
	defaultConnectTimeout = 30 * time.Second
	defaultReadTimeout    = 30 * time.Second
	defaultWriteTimeout   = 30 * time.Second
	defaultUserAgent      = "streamfetch"
)

// Config configures the outbound HTTP executor.
type Config struct {
	// ConnectTimeout bounds dialing and the TLS handshake. Defaults to 30s.
	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`
	// ReadTimeout bounds the wait for response headers and every single
	// read from the connection afterwards. Defaults to 30s.
	ReadTimeout time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	// WriteTimeout bounds every single write of the request. Defaults to 30s.
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`

	// UserAgent is sent when the request carries none.
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`
	// Headers are applied before the request's own headers.
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`

	// TLS configures upstream verification.
	TLS *TLSConfig `yaml:"tls" mapstructure:"tls"`

	// Retry retries failures that happen before response headers. Nil
	// disables it. Nothing is retried once headers have arrived.
	Retry *resilience.RetryConfig `yaml:"retry" mapstructure:"retry"`
	// CircuitBreaker fails requests fast while upstreams keep failing. Nil
	// disables it.
	CircuitBreaker *resilience.CircuitBreakerConfig `yaml:"circuit_breaker" mapstructure:"circuit_breaker"`
	// RateLimit throttles request starts. Nil disables it.
	RateLimit *resilience.RateLimiterConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = defaultReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.Retry != nil {
		c.Retry.ApplyDefaults()
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.ConnectTimeout <= 0 || c.ReadTimeout <= 0 || c.WriteTimeout <= 0 {
		return fmt.Errorf("executor: timeouts must be positive")
	}
	return c.TLS.Validate()
}
