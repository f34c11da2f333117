package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/streamfetch/protocol"
)

type collector struct {
	mu     sync.Mutex
	events []protocol.Event
	got    chan struct{}
}

func newCollector() *collector {
	return &collector{got: make(chan struct{}, 1<<16)}
}

func (c *collector) handle(ev protocol.Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
	c.got <- struct{}{}
}

func (c *collector) wait(t *testing.T, n int) []protocol.Event {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-c.got:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d of %d events", i, n)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.Event(nil), c.events...)
}

func TestHub_AddListener(t *testing.T) {
	hub := NewHub(nil)
	sub, err := hub.AddListener(context.Background(), func(protocol.Event) {})
	if err != nil {
		t.Fatalf("AddListener: %v", err)
	}
	if sub.ID() == "" {
		t.Error("expected listener id")
	}
	if !hub.Has(sub.ID()) || hub.Count() != 1 {
		t.Errorf("expected 1 listener, got %d", hub.Count())
	}
	if _, err := hub.AddListener(context.Background(), nil); err == nil {
		t.Error("expected error for nil handler")
	}
}

func TestHub_PreservesOrder(t *testing.T) {
	hub := NewHub(nil)
	c := newCollector()
	sub, _ := hub.AddListener(context.Background(), c.handle)

	const n = 5000
	for i := 0; i < n; i++ {
		if err := hub.Emit(sub.ID(), protocol.ChunkEvent(protocol.RequestID(i), []byte{1})); err != nil {
			t.Fatalf("Emit: %v", err)
		}
	}
	events := c.wait(t, n)
	for i, ev := range events {
		if ev.RequestID != protocol.RequestID(i) {
			t.Fatalf("expected event %d in order, got %d", i, ev.RequestID)
		}
	}
}

func TestHub_EmitDoesNotBlockOnSlowHandler(t *testing.T) {
	hub := NewHub(nil)
	release := make(chan struct{})
	sub, _ := hub.AddListener(context.Background(), func(protocol.Event) { <-release })
	defer close(release)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			_ = hub.Emit(sub.ID(), protocol.EndEvent(1, nil))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected emit not to block on a slow handler")
	}
}

func TestHub_RoutesByListener(t *testing.T) {
	hub := NewHub(nil)
	a, b := newCollector(), newCollector()
	subA, _ := hub.AddListener(context.Background(), a.handle)
	subB, _ := hub.AddListener(context.Background(), b.handle)

	_ = hub.Emit(subA.ID(), protocol.EndEvent(1, nil))
	_ = hub.Emit(subB.ID(), protocol.EndEvent(2, nil))
	_ = hub.Emit(subB.ID(), protocol.EndEvent(3, nil))

	if got := a.wait(t, 1); len(got) != 1 || got[0].RequestID != 1 {
		t.Errorf("expected listener a to get id 1 only, got %+v", got)
	}
	if got := b.wait(t, 2); len(got) != 2 || got[0].RequestID != 2 || got[1].RequestID != 3 {
		t.Errorf("expected listener b to get ids 2,3, got %+v", got)
	}
}

func TestHub_EmitUnknownListener(t *testing.T) {
	hub := NewHub(nil)
	if err := hub.Emit("nope", protocol.EndEvent(1, nil)); !errors.Is(err, ErrNoListener) {
		t.Errorf("expected ErrNoListener, got %v", err)
	}
}

func TestSubscription_Remove(t *testing.T) {
	hub := NewHub(nil)
	sub, _ := hub.AddListener(context.Background(), func(protocol.Event) {})
	sub.Remove()
	sub.Remove()

	select {
	case <-sub.Done():
	default:
		t.Error("expected Done closed after Remove")
	}
	if hub.Count() != 0 {
		t.Errorf("expected 0 listeners, got %d", hub.Count())
	}
	if err := hub.Emit(sub.ID(), protocol.EndEvent(1, nil)); !errors.Is(err, ErrNoListener) {
		t.Errorf("expected ErrNoListener after remove, got %v", err)
	}
}

func TestSubscription_RemoveFromHandler(t *testing.T) {
	hub := NewHub(nil)
	var sub *Subscription
	removed := make(chan struct{})
	sub, _ = hub.AddListener(context.Background(), func(protocol.Event) {
		sub.Remove()
		close(removed)
	})
	_ = hub.Emit(sub.ID(), protocol.EndEvent(1, nil))

	select {
	case <-removed:
	case <-time.After(2 * time.Second):
		t.Fatal("expected handler to run")
	}
	if hub.Has(sub.ID()) {
		t.Error("expected listener removed")
	}
}

func TestHub_ContextRemovesListener(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	sub, _ := hub.AddListener(ctx, func(protocol.Event) {})
	cancel()

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("expected listener removed on context cancel")
	}
}

func TestHub_HandlerPanicKeepsListener(t *testing.T) {
	hub := NewHub(nil)
	c := newCollector()
	first := true
	sub, _ := hub.AddListener(context.Background(), func(ev protocol.Event) {
		if first {
			first = false
			panic("boom")
		}
		c.handle(ev)
	})
	_ = hub.Emit(sub.ID(), protocol.EndEvent(1, nil))
	_ = hub.Emit(sub.ID(), protocol.EndEvent(2, nil))

	if got := c.wait(t, 1); got[0].RequestID != 2 {
		t.Errorf("expected delivery to continue after panic, got %+v", got)
	}
}

func TestHub_RemoveAllAndStop(t *testing.T) {
	hub := NewHub(nil)
	for i := 0; i < 3; i++ {
		_, _ = hub.AddListener(context.Background(), func(protocol.Event) {})
	}
	if n := hub.RemoveAll(); n != 3 {
		t.Errorf("expected 3 removed, got %d", n)
	}
	if len(hub.IDs()) != 0 {
		t.Errorf("expected no ids, got %v", hub.IDs())
	}

	_, _ = hub.AddListener(context.Background(), func(protocol.Event) {})
	if err := hub.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, err := hub.AddListener(context.Background(), func(protocol.Event) {}); !errors.Is(err, ErrHubStopped) {
		t.Errorf("expected ErrHubStopped, got %v", err)
	}
}

func TestComponent(t *testing.T) {
	c := NewComponent(NewHub(nil))
	if c.Name() != "bridge" {
		t.Errorf("expected bridge, got %q", c.Name())
	}
	_, _ = c.Hub().AddListener(context.Background(), func(protocol.Event) {})
	if h := c.Health(context.Background()); h.Message != "1 listeners" {
		t.Errorf("expected 1 listeners, got %q", h.Message)
	}
	if err := c.Stop(context.Background()); err != nil {
		t.Errorf("Stop: %v", err)
	}
}
