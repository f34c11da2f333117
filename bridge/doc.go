// Package bridge provides the in-process event channel between the plugin
// side, which executes requests, and the consumer side, which assembles
// responses.
//
// Each listener gets an unbounded FIFO drained by its own goroutine, so
// Emit never blocks the producer, never drops an event and preserves the
// order events were emitted in. Events for different listeners never
// interleave on a handler.
//
//	hub := bridge.NewHub(log)
//	sub, _ := hub.AddListener(ctx, func(ev protocol.Event) { ... })
//	defer sub.Remove()
//	_ = hub.Emit(sub.ID(), protocol.ChunkEvent(id, data))
package bridge
