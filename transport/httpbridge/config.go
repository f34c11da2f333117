package httpbridge

import (
	"fmt"
	"time"

	"github.com/kbukum/streamfetch/protocol"
)

// DefaultKeepAlive is the interval of keep-alive comments on event streams.
// It stays below the executor's default read timeout so an idle stream is
// not mistaken for a stalled one.
const DefaultKeepAlive = 15 * time.Second

// Config configures the server side of the HTTP bridge.
type Config struct {
	// Codec selects the chunk encoding on event streams: "base64" (default)
	// or "bytes".
	Codec string `yaml:"codec" mapstructure:"codec"`
	// KeepAlive is the interval between keep-alive comments.
	KeepAlive time.Duration `yaml:"keep_alive" mapstructure:"keep_alive"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.Codec == "" {
		c.Codec = protocol.CodecBase64
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = DefaultKeepAlive
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if _, err := protocol.CodecByName(c.Codec); err != nil {
		return fmt.Errorf("httpbridge: %w", err)
	}
	return nil
}
