package plugin

import (
	"fmt"
	"time"

	"github.com/kbukum/streamfetch/relay"
)

// Config configures the plugin side of the bridge.
type Config struct {
	// MaxInFlight bounds concurrently relayed streams. 0 disables the limit.
	MaxInFlight int `yaml:"max_in_flight" mapstructure:"max_in_flight"`
	// AcquireWait is how long a submission waits for a free stream slot
	// before it is rejected. 0 rejects immediately.
	AcquireWait time.Duration `yaml:"acquire_wait" mapstructure:"acquire_wait"`
	// Relay configures chunking.
	Relay relay.Config `yaml:"relay" mapstructure:"relay"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	c.Relay.ApplyDefaults()
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.MaxInFlight < 0 {
		return fmt.Errorf("plugin.max_in_flight must be non-negative (got: %d)", c.MaxInFlight)
	}
	if c.AcquireWait < 0 {
		return fmt.Errorf("plugin.acquire_wait must be non-negative (got: %v)", c.AcquireWait)
	}
	return nil
}
