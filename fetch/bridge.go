package fetch

import (
	"context"

	"github.com/kbukum/streamfetch/bridge"
	apperrors "github.com/kbukum/streamfetch/errors"
	"github.com/kbukum/streamfetch/plugin"
	"github.com/kbukum/streamfetch/protocol"
)

// Listener is a registration for stream events.
type Listener interface {
	// ID is the listener id submissions are routed by.
	ID() string
	// Done is closed once the listener is gone, whoever removed it.
	Done() <-chan struct{}
	// Remove unregisters the listener.
	Remove()
}

// Bridge is the channel to the native side that executes requests.
type Bridge interface {
	// Listen registers handler for the events of every request submitted
	// under the returned listener. Events for one request arrive in order on
	// a single goroutine. The listener lives until ctx ends or it is removed.
	Listen(ctx context.Context, handler func(protocol.Event)) (Listener, error)
	// StreamFetch submits req and returns once headers have arrived.
	StreamFetch(ctx context.Context, listenerID string, req protocol.Request) (protocol.InitialResponse, error)
	// Cancel stops the upstream read for id.
	Cancel(ctx context.Context, id protocol.RequestID) error
}

// Local adapts an in-process plugin to Bridge.
func Local(p *plugin.Plugin) Bridge {
	return localBridge{p: p}
}

type localBridge struct {
	p *plugin.Plugin
}

func (b localBridge) Listen(ctx context.Context, handler func(protocol.Event)) (Listener, error) {
	sub, err := b.p.AddListener(ctx, bridge.Handler(handler))
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (b localBridge) StreamFetch(ctx context.Context, listenerID string, req protocol.Request) (protocol.InitialResponse, error) {
	return b.p.StreamFetch(ctx, listenerID, req)
}

func (b localBridge) Cancel(_ context.Context, id protocol.RequestID) error {
	if !b.p.Cancel(id) {
		return apperrors.NotFound("request", id.String())
	}
	return nil
}
