package main

import (
	"fmt"

	"github.com/kbukum/streamfetch/config"
	"github.com/kbukum/streamfetch/executor"
	"github.com/kbukum/streamfetch/observability"
	"github.com/kbukum/streamfetch/plugin"
	"github.com/kbukum/streamfetch/server"
	"github.com/kbukum/streamfetch/transport/httpbridge"
)

// Config is the daemon configuration. Every section can be overridden
// with STREAMFETCH_<SECTION>_<KEY> environment variables.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server        server.Config        `yaml:"server" mapstructure:"server"`
	Executor      executor.Config      `yaml:"executor" mapstructure:"executor"`
	Plugin        plugin.Config        `yaml:"plugin" mapstructure:"plugin"`
	Bridge        httpbridge.Config    `yaml:"bridge" mapstructure:"bridge"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
}

// ApplyDefaults fills in every section.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = serviceName
	}
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Executor.ApplyDefaults()
	c.Plugin.ApplyDefaults()
	c.Bridge.ApplyDefaults()

	c.Observability.ServiceName = c.Name
	c.Observability.ServiceVersion = c.Version
	c.Observability.Environment = c.Environment
	c.Observability.ApplyDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Executor.Validate(); err != nil {
		return err
	}
	if err := c.Plugin.Validate(); err != nil {
		return err
	}
	if err := c.Bridge.Validate(); err != nil {
		return err
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("config.observability: %w", err)
	}
	return nil
}
