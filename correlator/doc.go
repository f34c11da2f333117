// Package correlator assigns request ids and tracks in-flight requests.
//
// Ids come from an injected Generator, by default an atomic Sequence, so a
// process never reuses one. Submit registers the id before the request is
// executed, binds the caller's context to the wait for headers only and
// hands back a per-request context that later governs the body read.
//
// Table is the generic id-keyed map shared with the consumer side.
package correlator
