// Package protocol defines the messages exchanged between the native fetch
// side and the consuming side of the bridge: the request descriptor, the
// initial response, the per-request event sequence and the codecs that put
// those events on a text channel.
//
// Events for one RequestID always arrive as
//
//	response, chunk*, end
//
// and an end event always carries StatusEnd.
package protocol
