package correlator

import (
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/kbukum/streamfetch/protocol"
)

// ErrDuplicate is returned when an id is registered twice.
var ErrDuplicate = errors.New("request id already registered")

// Table maps live request ids to per-request state.
type Table[V any] struct {
	mu      sync.RWMutex
	entries map[protocol.RequestID]V
}

// NewTable creates an empty table.
func NewTable[V any]() *Table[V] {
	return &Table[V]{entries: make(map[protocol.RequestID]V)}
}

// Register stores v under id.
func (t *Table[V]) Register(id protocol.RequestID, v V) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[id]; ok {
		return ErrDuplicate
	}
	t.entries[id] = v
	return nil
}

// LoadOrStore returns the value registered under id, or stores v and
// returns it. loaded reports whether the value was already present.
func (t *Table[V]) LoadOrStore(id protocol.RequestID, v V) (actual V, loaded bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.entries[id]; ok {
		return cur, true
	}
	t.entries[id] = v
	return v, false
}

// Get returns the value for id.
func (t *Table[V]) Get(id protocol.RequestID) (V, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.entries[id]
	return v, ok
}

// Remove deletes id and returns the value it held.
func (t *Table[V]) Remove(id protocol.RequestID) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	return v, ok
}

// Len returns the number of live entries.
func (t *Table[V]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// IDs returns the live ids in ascending order.
func (t *Table[V]) IDs() []protocol.RequestID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Sorted(maps.Keys(t.entries))
}
