// Package relay turns an open response body into ordered stream events.
//
// For one request id the relay emits a chunk event per non-empty read and
// then a single end event. Chunks are copies; a chunk event never aliases
// the read buffer. When the receiving listener is gone the relay stops
// reading and closes the body, which aborts the upstream request.
package relay
