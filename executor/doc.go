// Package executor performs the outbound HTTP request behind every stream.
//
// Execute returns as soon as response headers arrive; the body is handed
// back unread for the relay to stream. Connect, write and read timeouts
// are enforced per operation, so a stream that keeps producing data can run
// indefinitely while a stalled one fails with a typed read timeout.
//
// Request bodies are sent for POST, PUT, PATCH and DELETE only, with
// Content-Type defaulting to application/json; charset=utf-8.
//
// Retry, circuit breaking and rate limiting from the resilience package
// apply to the header phase only.
package executor
