package bridge

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/kbukum/streamfetch/logger"
	"github.com/kbukum/streamfetch/protocol"
)

var (
	// ErrNoListener is returned by Emit when the target listener does not
	// exist or has been removed.
	ErrNoListener = errors.New("bridge: no such listener")
	// ErrHubStopped is returned by AddListener after Stop.
	ErrHubStopped = errors.New("bridge: hub stopped")
)

// Handler receives the events routed to one listener. Calls for a listener
// happen on that listener's own delivery goroutine, one at a time, in emit
// order.
type Handler func(ev protocol.Event)

// listener owns an unbounded FIFO and the goroutine draining it. Emit never
// blocks and never drops while the listener is registered.
type listener struct {
	id      string
	handler Handler

	mu      sync.Mutex
	queue   []protocol.Event
	removed bool

	wake chan struct{}
	done chan struct{}
}

func newListener(handler Handler) *listener {
	return &listener{
		id:      uuid.NewString(),
		handler: handler,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (l *listener) push(ev protocol.Event) bool {
	l.mu.Lock()
	if l.removed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, ev)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// close marks the listener removed. It reports whether this call did it.
func (l *listener) close() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.removed {
		return false
	}
	l.removed = true
	l.queue = nil
	close(l.done)
	return true
}

func (l *listener) pump(log *logger.Logger) {
	for {
		select {
		case <-l.done:
			return
		case <-l.wake:
		}

		for {
			l.mu.Lock()
			if l.removed || len(l.queue) == 0 {
				l.mu.Unlock()
				break
			}
			batch := l.queue
			l.queue = nil
			l.mu.Unlock()

			for _, ev := range batch {
				select {
				case <-l.done:
					return
				default:
				}
				l.deliver(ev, log)
			}
		}
	}
}

func (l *listener) deliver(ev protocol.Event, log *logger.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("listener handler panicked", logger.Fields(
				logger.FieldListenerID, l.id,
				logger.FieldRequestID, int64(ev.RequestID),
				logger.FieldError, fmt.Sprint(r),
			))
		}
	}()
	l.handler(ev)
}

// Hub is the in-process bridge channel. Producers address events to a
// listener id; each listener sees its events in emit order.
type Hub struct {
	mu        sync.RWMutex
	listeners map[string]*listener
	stopped   bool
	wg        sync.WaitGroup
	log       *logger.Logger
}

// NewHub creates an empty hub.
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		listeners: make(map[string]*listener),
		log:       log.WithComponent("bridge"),
	}
}

// AddListener registers handler under a fresh listener id. The listener is
// removed when ctx is done or the returned Subscription is removed.
func (h *Hub) AddListener(ctx context.Context, handler Handler) (*Subscription, error) {
	if handler == nil {
		return nil, errors.New("bridge: nil handler")
	}
	l := newListener(handler)

	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return nil, ErrHubStopped
	}
	h.listeners[l.id] = l
	count := len(h.listeners)
	h.wg.Add(1)
	h.mu.Unlock()

	go func() {
		defer h.wg.Done()
		l.pump(h.log)
	}()

	sub := &Subscription{id: l.id, hub: h, done: l.done}
	sub.stopWatch = context.AfterFunc(ctx, func() { h.Remove(l.id) })

	h.log.Debug("listener added", logger.Fields(logger.FieldListenerID, l.id, "listeners", count))
	return sub, nil
}

// Emit queues ev for target. It returns ErrNoListener when target is not
// registered.
func (h *Hub) Emit(target string, ev protocol.Event) error {
	h.mu.RLock()
	l, ok := h.listeners[target]
	h.mu.RUnlock()
	if !ok || !l.push(ev) {
		return ErrNoListener
	}
	return nil
}

// Remove unregisters the listener. Queued events are discarded. It reports
// whether the listener existed.
func (h *Hub) Remove(id string) bool {
	h.mu.Lock()
	l, ok := h.listeners[id]
	delete(h.listeners, id)
	h.mu.Unlock()
	if !ok || !l.close() {
		return false
	}
	h.log.Debug("listener removed", logger.Fields(logger.FieldListenerID, id))
	return true
}

// RemoveAll unregisters every listener and returns how many there were.
func (h *Hub) RemoveAll() int {
	h.mu.Lock()
	all := h.listeners
	h.listeners = make(map[string]*listener)
	h.mu.Unlock()

	n := 0
	for _, l := range all {
		if l.close() {
			n++
		}
	}
	return n
}

// Has reports whether id is registered.
func (h *Hub) Has(id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.listeners[id]
	return ok
}

// Count returns the number of registered listeners.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

// IDs returns the registered listener ids, sorted.
func (h *Hub) IDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.listeners))
	for id := range h.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Stop removes every listener, rejects new ones and waits for delivery
// goroutines to exit or ctx to end.
func (h *Hub) Stop(ctx context.Context) error {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
	h.RemoveAll()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
