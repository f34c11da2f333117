package assembler

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/kbukum/streamfetch/protocol"
)

var (
	// ErrCanceled is reported by Sink.Err after the consumer canceled the
	// stream. It is diagnostic only; reads simply end.
	ErrCanceled = errors.New("stream canceled")
	// ErrForceClosed is reported by Sink.Err when an error response body was
	// cut off after the configured timeout.
	ErrForceClosed = errors.New("stream force-closed")
)

// StreamError is a failure reported by the producer in the end event after
// the response had already been handed out.
type StreamError struct {
	RequestID protocol.RequestID
	Message   string
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream %d: %s", e.RequestID, e.Message)
}

// Sink is the response body being assembled from chunk events. Chunks are
// queued without bound, so the delivery goroutine never waits for a slow
// reader.
type Sink struct {
	mu      sync.Mutex
	queue   [][]byte
	cur     []byte
	done    bool
	aborted bool
	err     error
	notify  chan struct{}
	ended   chan struct{}

	onClose func()
	once    sync.Once
}

func newSink(onClose func()) *Sink {
	return &Sink{notify: make(chan struct{}, 1), ended: make(chan struct{}), onClose: onClose}
}

// Read implements io.Reader. It blocks until a chunk is available and
// returns io.EOF once the stream has ended, failed or been canceled.
func (s *Sink) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		s.mu.Lock()
		if s.aborted {
			s.mu.Unlock()
			return 0, io.EOF
		}
		if len(s.cur) == 0 && len(s.queue) > 0 {
			s.cur = s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
		}
		if len(s.cur) > 0 {
			n := copy(p, s.cur)
			s.cur = s.cur[n:]
			s.mu.Unlock()
			return n, nil
		}
		if s.done {
			s.mu.Unlock()
			return 0, io.EOF
		}
		s.mu.Unlock()
		select {
		case <-s.notify:
		case <-s.ended:
		}
	}
}

// Close cancels the stream from the consumer side. Buffered data is
// discarded and later reads return io.EOF. Close after the end event only
// releases the buffer.
func (s *Sink) Close() error {
	s.abort(ErrCanceled)
	s.once.Do(func() {
		if s.onClose != nil {
			s.onClose()
		}
	})
	return nil
}

// Err returns the out-of-band stream error: nil for a complete stream, a
// *StreamError for a producer failure, ErrCanceled or ErrForceClosed.
func (s *Sink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Buffered returns the number of bytes queued and not yet read.
func (s *Sink) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.cur)
	for _, c := range s.queue {
		n += len(c)
	}
	return n
}

func (s *Sink) push(chunk []byte) bool {
	s.mu.Lock()
	if s.done || s.aborted {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, chunk)
	s.mu.Unlock()
	s.wake()
	return true
}

// finish ends the stream normally; buffered chunks stay readable.
func (s *Sink) finish(err error) bool {
	s.mu.Lock()
	if s.done || s.aborted {
		s.mu.Unlock()
		return false
	}
	s.done = true
	s.err = err
	close(s.ended)
	s.mu.Unlock()
	return true
}

// abort ends the stream and discards whatever is buffered.
func (s *Sink) abort(err error) bool {
	s.mu.Lock()
	if s.aborted {
		s.mu.Unlock()
		return false
	}
	wasDone := s.done
	s.aborted = true
	s.queue = nil
	s.cur = nil
	if !wasDone {
		s.done = true
		s.err = err
		close(s.ended)
	}
	s.mu.Unlock()
	return !wasDone
}

func (s *Sink) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}
