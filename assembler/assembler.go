package assembler

import (
	"context"
	"sync"
	"time"

	"github.com/kbukum/streamfetch/correlator"
	"github.com/kbukum/streamfetch/logger"
	"github.com/kbukum/streamfetch/protocol"
)

// DefaultErrorBodyTimeout is how long the body of a response with status
// 300 or above may stream before it is force-closed.
const DefaultErrorBodyTimeout = 30 * time.Second

// Config configures the assembler.
type Config struct {
	// ErrorBodyTimeout bounds error response bodies. Defaults to 30s.
	ErrorBodyTimeout time.Duration `yaml:"error_body_timeout" mapstructure:"error_body_timeout"`
	// DisableForceClose lets error response bodies stream without limit.
	DisableForceClose bool `yaml:"disable_force_close" mapstructure:"disable_force_close"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.ErrorBodyTimeout <= 0 {
		c.ErrorBodyTimeout = DefaultErrorBodyTimeout
	}
}

// Stream is a claimed response: metadata plus a body that may still be
// arriving.
type Stream struct {
	Response protocol.InitialResponse
	Body     *Sink
}

// state is the consumer-side record of one request id. It may be created
// by Await before the response event has been dispatched, and it stays in
// the table until it is both claimed and ended, so a stream that finishes
// before Await runs can still be claimed.
type state struct {
	ready chan struct{}
	once  sync.Once
	// dead is closed, with reason set, when the state is terminated before
	// its response event.
	dead   chan struct{}
	reason error

	resp  protocol.InitialResponse
	sink  *Sink
	timer *time.Timer

	mu      sync.Mutex
	claimed bool
	ended   bool
}

func newState() *state {
	return &state{ready: make(chan struct{}), dead: make(chan struct{})}
}

// Assembler rebuilds responses from the events on one listener.
type Assembler struct {
	cfg      Config
	table    *correlator.Table[*state]
	onCancel func(protocol.RequestID)
	log      *logger.Logger

	mu        sync.Mutex
	abandoned map[protocol.RequestID]struct{}
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithCanceler sets the hook invoked when the consumer cancels a stream
// that has not ended, so the producer can stop reading upstream.
func WithCanceler(fn func(protocol.RequestID)) Option {
	return func(a *Assembler) { a.onCancel = fn }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(a *Assembler) { a.log = l }
}

// New creates an assembler.
func New(cfg Config, opts ...Option) *Assembler {
	cfg.ApplyDefaults()
	a := &Assembler{
		cfg:       cfg,
		table:     correlator.NewTable[*state](),
		log:       logger.Nop(),
		abandoned: make(map[protocol.RequestID]struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.WithComponent("assembler")
	return a
}

// Dispatch routes ev to OnInitial, OnChunk or OnEnd. It is meant to be the
// listener handler.
func (a *Assembler) Dispatch(ev protocol.Event) {
	switch ev.Kind {
	case protocol.KindResponse:
		if ev.Response != nil {
			a.OnInitial(*ev.Response)
		}
	case protocol.KindChunk:
		a.OnChunk(ev.RequestID, ev.Chunk)
	case protocol.KindEnd:
		a.OnEnd(ev.RequestID, ev.Error)
	}
}

// OnInitial opens the stream for resp.RequestID. A repeated response event
// is ignored.
func (a *Assembler) OnInitial(resp protocol.InitialResponse) {
	id := resp.RequestID
	if a.takeAbandoned(id) {
		a.cancelUpstream(id)
		return
	}

	s, _ := a.table.LoadOrStore(id, newState())
	s.once.Do(func() {
		s.resp = resp
		s.sink = newSink(func() { a.Cancel(id) })
		if resp.Status >= 300 && !a.cfg.DisableForceClose {
			s.timer = time.AfterFunc(a.cfg.ErrorBodyTimeout, func() { a.forceClose(id) })
		}
		close(s.ready)
	})
}

// OnChunk appends chunk to the stream. Chunks for unknown or finished ids
// are dropped.
func (a *Assembler) OnChunk(id protocol.RequestID, chunk []byte) {
	s, ok := a.table.Get(id)
	if !ok || !s.opened() || len(chunk) == 0 {
		return
	}
	s.sink.push(chunk)
}

// OnEnd finishes the stream. A non-empty errMsg becomes the sink's Err.
// Only the first end for an id has any effect. An unclaimed stream stays
// claimable with its buffered body until Await takes it.
func (a *Assembler) OnEnd(id protocol.RequestID, errMsg string) {
	a.takeAbandoned(id)
	s, ok := a.table.Get(id)
	if !ok || !s.opened() {
		return
	}
	claimed, first := s.end()
	if !first {
		return
	}
	if claimed {
		a.table.Remove(id)
	}
	s.stopTimer()

	var err error
	if errMsg != "" {
		err = &StreamError{RequestID: id, Message: errMsg}
		a.log.Warn("stream failed after response", logger.Fields(
			logger.FieldRequestID, int64(id),
			logger.FieldError, errMsg,
		))
	}
	s.sink.finish(err)
}

// Await claims the stream for id, waiting for its response event if it has
// not been dispatched yet. If ctx ends first the stream is abandoned.
func (a *Assembler) Await(ctx context.Context, id protocol.RequestID) (*Stream, error) {
	s, _ := a.table.LoadOrStore(id, newState())
	select {
	case <-s.ready:
		if s.claim() {
			a.table.Remove(id)
		}
		return &Stream{Response: s.resp, Body: s.sink}, nil
	case <-s.dead:
		return nil, s.reason
	case <-ctx.Done():
		a.abandon(id, s)
		return nil, ctx.Err()
	}
}

// Cancel aborts the stream for id: buffered data is dropped, reads end and
// Err reports ErrCanceled. The canceler hook runs if the stream had not
// ended. It reports whether id was live.
func (a *Assembler) Cancel(id protocol.RequestID) bool {
	return a.terminate(id, ErrCanceled)
}

// Abandon gives up on id before its stream was claimed. A response event
// arriving later is dropped and the producer is asked to cancel.
func (a *Assembler) Abandon(id protocol.RequestID) {
	if a.terminate(id, ErrCanceled) {
		return
	}
	a.tombstone(id)
}

// abandon is Abandon for a state Await already holds. No tombstone is left
// once the response event has been seen, since nothing would consume it.
func (a *Assembler) abandon(id protocol.RequestID, s *state) {
	if a.terminate(id, ErrCanceled) || s.opened() {
		return
	}
	a.tombstone(id)
}

// CancelAll aborts every live stream.
func (a *Assembler) CancelAll() {
	a.AbortAll(ErrCanceled)
}

// AbortAll aborts every live stream with reason as the sink's Err.
func (a *Assembler) AbortAll(reason error) {
	for _, id := range a.table.IDs() {
		a.terminate(id, reason)
	}
	a.mu.Lock()
	clear(a.abandoned)
	a.mu.Unlock()
}

// Len returns the number of live streams.
func (a *Assembler) Len() int {
	return a.table.Len()
}

func (a *Assembler) forceClose(id protocol.RequestID) {
	s, ok := a.table.Get(id)
	if !ok {
		return
	}
	claimed, first := s.end()
	if !first {
		return
	}
	// An unclaimed stream stays in the table so Await can still claim it
	// and see ErrForceClosed.
	if claimed {
		a.table.Remove(id)
	}
	s.sink.abort(ErrForceClosed)
	a.cancelUpstream(id)
	a.log.Debug("error response body force-closed", logger.Fields(
		logger.FieldRequestID, int64(id),
		"timeout", a.cfg.ErrorBodyTimeout.String(),
	))
}

func (a *Assembler) terminate(id protocol.RequestID, reason error) bool {
	s, ok := a.table.Remove(id)
	if !ok {
		return false
	}
	if s.opened() {
		s.stopTimer()
		s.sink.abort(reason)
	} else {
		// Drop the response event when it comes.
		s.reason = reason
		close(s.dead)
		a.tombstone(id)
	}
	if !s.finished() {
		a.cancelUpstream(id)
	}
	return true
}

func (a *Assembler) tombstone(id protocol.RequestID) {
	a.mu.Lock()
	a.abandoned[id] = struct{}{}
	a.mu.Unlock()
}

func (a *Assembler) cancelUpstream(id protocol.RequestID) {
	if a.onCancel != nil {
		a.onCancel(id)
	}
}

func (a *Assembler) takeAbandoned(id protocol.RequestID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.abandoned[id]; ok {
		delete(a.abandoned, id)
		return true
	}
	return false
}

func (s *state) opened() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

// claim marks the stream taken by a consumer and reports whether it had
// already ended.
func (s *state) claim() (ended bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claimed = true
	return s.ended
}

// end marks the stream ended. first is false when it already was.
func (s *state) end() (claimed, first bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	first = !s.ended
	s.ended = true
	return s.claimed, first
}

func (s *state) finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

func (s *state) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
	}
}
