// Package plugin is the executing side of the bridge.
//
// StreamFetch validates a request, assigns it an id, executes it and
// returns the initial response once headers arrive. The body is relayed to
// the submitting listener as chunk events followed by one end event, all
// after the response event for the same id.
//
//	hub := bridge.NewHub(log)
//	p, _ := plugin.New(cfg, exec, hub, plugin.WithLogger(log))
//	sub, _ := p.AddListener(ctx, handle)
//	resp, err := p.StreamFetch(ctx, sub.ID(), protocol.Request{URL: u})
package plugin
