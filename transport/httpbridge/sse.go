package httpbridge

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// EventConnected is the first event of every stream. Its data is
// {"listenerId":"..."}.
const EventConnected = "connected"

// maxEventSize bounds one event line. A 16 KiB chunk in the byte-array
// form takes up to 64 KiB, over bufio.Scanner's default.
const maxEventSize = 1 << 20

var errStreamClosed = errors.New("httpbridge: event stream closed")

type connectedEvent struct {
	ListenerID string `json:"listenerId"`
}

// Event is a single server-sent event.
type Event struct {
	// Event is the event type from the "event:" line.
	Event string
	// Data is the payload; multi-line data is joined with newlines.
	Data string
	// ID is the event id from the "id:" line.
	ID string
}

// Reader reads server-sent events from a stream.
type Reader struct {
	scanner *bufio.Scanner
	body    io.ReadCloser
}

// NewReader creates an SSE reader over body.
func NewReader(body io.ReadCloser) *Reader {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	return &Reader{scanner: sc, body: body}
}

// Next returns the next event, or io.EOF when the stream ends.
func (r *Reader) Next() (*Event, error) {
	var event Event
	var hasData bool

	for r.scanner.Scan() {
		line := r.scanner.Text()

		// Blank line ends the event.
		if line == "" {
			if hasData {
				return &event, nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := parseLine(line)
		switch field {
		case "data":
			if hasData {
				event.Data += "\n" + value
			} else {
				event.Data = value
				hasData = true
			}
		case "event":
			event.Event = value
		case "id":
			event.ID = value
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if hasData {
		return &event, nil
	}
	return nil, io.EOF
}

// Close releases the underlying stream.
func (r *Reader) Close() error {
	return r.body.Close()
}

func parseLine(line string) (field, value string) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return line, ""
	}
	field = line[:idx]
	value = line[idx+1:]
	// A single leading space is not part of the value.
	if value != "" && value[0] == ' ' {
		value = value[1:]
	}
	return field, value
}

// eventWriter serialises writes to one event stream. The listener's
// delivery goroutine and the keep-alive loop both write through it, and
// nothing is written after close.
type eventWriter struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
	closed  bool
}

func (ew *eventWriter) send(event string, data []byte) error {
	ew.mu.Lock()
	defer ew.mu.Unlock()
	if ew.closed {
		return errStreamClosed
	}
	if _, err := fmt.Fprintf(ew.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	ew.flusher.Flush()
	return nil
}

func (ew *eventWriter) comment(text string) error {
	ew.mu.Lock()
	defer ew.mu.Unlock()
	if ew.closed {
		return errStreamClosed
	}
	if _, err := fmt.Fprintf(ew.w, ": %s\n\n", text); err != nil {
		return err
	}
	ew.flusher.Flush()
	return nil
}

func (ew *eventWriter) close() {
	ew.mu.Lock()
	ew.closed = true
	ew.mu.Unlock()
}
