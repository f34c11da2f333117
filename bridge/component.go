package bridge

import (
	"context"
	"fmt"

	"github.com/kbukum/streamfetch/component"
)

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// Component wraps a Hub as a lifecycle-managed component.
type Component struct {
	hub *Hub
}

// NewComponent wraps hub.
func NewComponent(hub *Hub) *Component {
	return &Component{hub: hub}
}

// Hub returns the underlying hub.
func (c *Component) Hub() *Hub { return c.hub }

// Name returns the component name.
func (c *Component) Name() string { return "bridge" }

// Start is a no-op; the hub accepts listeners from construction.
func (c *Component) Start(_ context.Context) error { return nil }

// Stop removes every listener and waits for their delivery goroutines.
func (c *Component) Stop(ctx context.Context) error {
	return c.hub.Stop(ctx)
}

// Health returns the health status of the hub.
func (c *Component) Health(_ context.Context) component.Health {
	return component.Health{
		Name:    c.Name(),
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("%d listeners", c.hub.Count()),
	}
}

// Describe returns startup summary info.
func (c *Component) Describe() component.Description {
	return component.Description{Name: "Bridge Hub", Type: "hub", Details: "in-process event channel"}
}
