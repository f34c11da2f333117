package protocol

import (
	"net/http"
	"strconv"
	"strings"
)

// EventName is the channel name stream events are published under.
const EventName = "streamResponse"

const (
	// StatusEnd is the status carried by every end event.
	StatusEnd = 0
	// StatusBridgeFailure is the synthetic status reported when a request
	// could not be submitted across the bridge.
	StatusBridgeFailure = 599
	// StatusTextBridgeFailure accompanies StatusBridgeFailure.
	StatusTextBridgeFailure = "Network Error"
)

// InitialResponse is the response metadata returned once headers arrive.
type InitialResponse struct {
	RequestID  RequestID         `json:"requestId"`
	Status     int               `json:"status"`
	StatusText string            `json:"statusText"`
	Headers    map[string]string `json:"headers"`
}

// StatusTextFor returns reason, or the canonical text for status when the
// server sent none.
func StatusTextFor(status int, reason string) string {
	if reason != "" {
		return reason
	}
	return http.StatusText(status)
}

// ResponseStatusText returns the reason phrase of resp's status line,
// falling back to the canonical text.
func ResponseStatusText(resp *http.Response) string {
	reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	return StatusTextFor(resp.StatusCode, reason)
}

// Kind discriminates stream events.
type Kind uint8

const (
	KindResponse Kind = iota + 1
	KindChunk
	KindEnd
)

func (k Kind) String() string {
	switch k {
	case KindResponse:
		return "response"
	case KindChunk:
		return "chunk"
	case KindEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Event is one message on the bridge channel. For a given RequestID the
// channel carries exactly one response event, zero or more chunk events and
// one end event, in that order.
type Event struct {
	Kind      Kind
	RequestID RequestID
	// Response is set on KindResponse.
	Response *InitialResponse
	// Chunk is set on KindChunk and is never empty.
	Chunk []byte
	// Error is set on KindEnd when the stream terminated abnormally.
	Error string
}

// ResponseEvent wraps the initial response metadata.
func ResponseEvent(r InitialResponse) Event {
	return Event{Kind: KindResponse, RequestID: r.RequestID, Response: &r}
}

// ChunkEvent carries one slice of the body. The event takes ownership of b.
func ChunkEvent(id RequestID, b []byte) Event {
	return Event{Kind: KindChunk, RequestID: id, Chunk: b}
}

// EndEvent terminates the stream for id. A nil err is a normal end.
func EndEvent(id RequestID, err error) Event {
	ev := Event{Kind: KindEnd, RequestID: id}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}

// Status returns the wire status of the event: the HTTP status for response
// events and StatusEnd for end events.
func (e Event) Status() int {
	if e.Kind == KindResponse && e.Response != nil {
		return e.Response.Status
	}
	return StatusEnd
}
