package relay

import (
	"bytes"
	"context"
	"errors"
	"io"
	"iter"
	"time"

	"github.com/kbukum/streamfetch/logger"
	"github.com/kbukum/streamfetch/protocol"
)

// DefaultChunkSize is the read buffer size used when Config.ChunkSize is unset.
const DefaultChunkSize = 16 * 1024

// ErrCanceled is reported in the end event of a stream whose request was
// canceled before the body finished.
var ErrCanceled = errors.New("request canceled")

// Config configures the relay.
type Config struct {
	// ChunkSize caps the size of a single chunk event. Defaults to 16 KiB.
	ChunkSize int `yaml:"chunk_size" mapstructure:"chunk_size"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
}

// Emitter delivers events to a listener. An error means the listener is
// gone and nothing further can be delivered to it.
type Emitter interface {
	Emit(target string, ev protocol.Event) error
}

// Result summarises a finished relay.
type Result struct {
	Chunks int64
	Bytes  int64
	// Err is the stream failure reported in the end event, if any.
	Err error
	// EmitErr is set when the listener went away mid-stream. No end event
	// was delivered in that case.
	EmitErr  error
	Duration time.Duration
}

// Chunks yields successive reads of r, each in a freshly allocated slice of
// at most size bytes. Empty reads are skipped. Iteration stops at EOF, or
// after yielding the first read error.
func Chunks(r io.Reader, size int) iter.Seq2[[]byte, error] {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return func(yield func([]byte, error) bool) {
		buf := make([]byte, size)
		for {
			n, err := r.Read(buf)
			if n > 0 && !yield(bytes.Clone(buf[:n]), nil) {
				return
			}
			if err == nil {
				continue
			}
			if !errors.Is(err, io.EOF) {
				yield(nil, err)
			}
			return
		}
	}
}

// Relay pumps response bodies onto the bridge as chunk and end events.
type Relay struct {
	cfg  Config
	emit Emitter
	log  *logger.Logger
}

// New creates a relay that delivers through emit.
func New(cfg Config, emit Emitter, log *logger.Logger) *Relay {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.Nop()
	}
	return &Relay{cfg: cfg, emit: emit, log: log.WithComponent("relay")}
}

// Run streams body to target as chunk events for id, followed by exactly
// one end event. The end event carries an error when reading failed or ctx
// was canceled. Run closes body before returning and must be the only
// producer of events for id once the response event has been emitted.
func (r *Relay) Run(ctx context.Context, id protocol.RequestID, target string, body io.ReadCloser) Result {
	start := time.Now()
	defer body.Close()

	var res Result
	for chunk, err := range Chunks(body, r.cfg.ChunkSize) {
		if err != nil {
			res.Err = err
			break
		}
		if ctx.Err() != nil {
			break
		}
		n := int64(len(chunk))
		if emitErr := r.emit.Emit(target, protocol.ChunkEvent(id, chunk)); emitErr != nil {
			res.EmitErr = emitErr
			res.Duration = time.Since(start)
			r.log.Debug("listener gone, abandoning stream", logger.Fields(
				logger.FieldRequestID, int64(id),
				logger.FieldListenerID, target,
				logger.FieldError, emitErr.Error(),
			))
			return res
		}
		res.Chunks++
		res.Bytes += n
	}
	if ctx.Err() != nil {
		res.Err = ErrCanceled
	}

	if emitErr := r.emit.Emit(target, protocol.EndEvent(id, res.Err)); emitErr != nil {
		res.EmitErr = emitErr
	}
	res.Duration = time.Since(start)

	fields := logger.StreamFields(int64(id), res.Chunks, res.Bytes, res.Duration)
	if res.Err != nil && !errors.Is(res.Err, ErrCanceled) {
		r.log.Warn("stream ended with error", logger.MergeWithError(fields, res.Err))
	} else {
		r.log.Debug("stream ended", fields)
	}
	return res
}
