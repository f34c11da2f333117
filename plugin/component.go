package plugin

import (
	"context"
	"fmt"

	"github.com/kbukum/streamfetch/component"
)

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// Component wraps a Plugin as a lifecycle-managed component.
type Component struct {
	plugin *Plugin
}

// NewComponent wraps p.
func NewComponent(p *Plugin) *Component {
	return &Component{plugin: p}
}

// Plugin returns the wrapped plugin.
func (c *Component) Plugin() *Plugin { return c.plugin }

// Name returns the component name.
func (c *Component) Name() string { return "plugin" }

// Start is a no-op; the plugin accepts submissions from construction.
func (c *Component) Start(_ context.Context) error { return nil }

// Stop cancels live requests and waits for their relays.
func (c *Component) Stop(ctx context.Context) error {
	return c.plugin.Close(ctx)
}

// Health reports degraded while every stream slot is taken.
func (c *Component) Health(_ context.Context) component.Health {
	p := c.plugin
	if p.closed.Load() {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "closed"}
	}
	msg := fmt.Sprintf("%d streams in flight", p.InFlight())
	if p.bulkhead != nil && p.bulkhead.Available() == 0 {
		return component.Health{Name: c.Name(), Status: component.StatusDegraded, Message: msg + ", at capacity"}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy, Message: msg}
}

// Describe returns startup summary info.
func (c *Component) Describe() component.Description {
	cfg := c.plugin.cfg
	limit := "unbounded"
	if cfg.MaxInFlight > 0 {
		limit = fmt.Sprint(cfg.MaxInFlight)
	}
	return component.Description{
		Name:    "Stream Plugin",
		Type:    "plugin",
		Details: fmt.Sprintf("max_in_flight=%s chunk=%d", limit, cfg.Relay.ChunkSize),
	}
}
