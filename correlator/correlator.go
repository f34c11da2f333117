package correlator

import (
	"context"
	"errors"

	apperrors "github.com/kbukum/streamfetch/errors"
	"github.com/kbukum/streamfetch/executor"
	"github.com/kbukum/streamfetch/logger"
	"github.com/kbukum/streamfetch/protocol"
	"github.com/kbukum/streamfetch/validation"
)

// Executor performs the outbound request and returns once headers are in.
type Executor interface {
	Execute(ctx context.Context, req protocol.Request) (*executor.Response, error)
}

// Submission is a request whose headers have arrived.
type Submission struct {
	ID         protocol.RequestID
	ListenerID string
	// Context governs the body read. It is canceled by Cancel, Release
	// and CancelAll, never by the context passed to Submit.
	Context  context.Context
	Response *executor.Response
}

type pending struct {
	listenerID string
	cancel     context.CancelFunc
}

// Correlator assigns request ids and tracks every request until its stream
// is released.
type Correlator struct {
	exec  Executor
	gen   Generator
	table *Table[*pending]
	log   *logger.Logger

	root context.Context
	stop context.CancelFunc
}

// Option configures a Correlator.
type Option func(*Correlator)

// WithGenerator replaces the default Sequence starting at 1.
func WithGenerator(g Generator) Option {
	return func(c *Correlator) { c.gen = g }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Correlator) { c.log = l }
}

// New creates a correlator around exec.
func New(exec Executor, opts ...Option) *Correlator {
	c := &Correlator{
		exec:  exec,
		gen:   NewSequence(1),
		table: NewTable[*pending](),
		log:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithComponent("correlator")
	c.root, c.stop = context.WithCancel(context.Background())
	return c
}

// Submit validates req, allocates an id, registers it and executes the
// request. ctx bounds the wait for headers only. On failure nothing stays
// registered and the returned error is an *errors.AppError, or ctx's error
// when the caller gave up.
func (c *Correlator) Submit(ctx context.Context, listenerID string, req protocol.Request) (*Submission, error) {
	req = req.Normalize()
	if err := validation.Validate(req); err != nil {
		return nil, err
	}

	id := c.gen.Next()
	streamCtx, cancel := context.WithCancel(c.root)
	if err := c.table.Register(id, &pending{listenerID: listenerID, cancel: cancel}); err != nil {
		cancel()
		return nil, apperrors.Internal(err).WithDetail("request_id", id.String())
	}

	stopWatch := context.AfterFunc(ctx, cancel)
	resp, err := c.exec.Execute(streamCtx, req)
	detached := stopWatch()

	if err == nil && !detached {
		// ctx fired after headers arrived but before the watch was removed.
		resp.Body.Close()
		err = ctx.Err()
	}
	if err != nil {
		c.drop(id)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.log.Debug("submission failed", logger.Fields(
			logger.FieldRequestID, int64(id),
			logger.FieldListenerID, listenerID,
			logger.FieldError, err.Error(),
		))
		return nil, toAppError(err)
	}

	return &Submission{ID: id, ListenerID: listenerID, Context: streamCtx, Response: resp}, nil
}

// Cancel aborts the request for id. It reports whether id was live.
func (c *Correlator) Cancel(id protocol.RequestID) bool {
	if !c.drop(id) {
		return false
	}
	c.log.Debug("request canceled", logger.Fields(logger.FieldRequestID, int64(id)))
	return true
}

// Release forgets id once its stream has ended.
func (c *Correlator) Release(id protocol.RequestID) {
	c.drop(id)
}

// ListenerOf returns the listener id was submitted for.
func (c *Correlator) ListenerOf(id protocol.RequestID) (string, bool) {
	p, ok := c.table.Get(id)
	if !ok {
		return "", false
	}
	return p.listenerID, true
}

// Pending returns the number of live requests.
func (c *Correlator) Pending() int {
	return c.table.Len()
}

// CancelAll aborts every live request.
func (c *Correlator) CancelAll() {
	for _, id := range c.table.IDs() {
		c.drop(id)
	}
}

// CancelListener aborts every live request submitted for listenerID and
// returns how many there were.
func (c *Correlator) CancelListener(listenerID string) int {
	n := 0
	for _, id := range c.table.IDs() {
		if p, ok := c.table.Get(id); ok && p.listenerID == listenerID && c.drop(id) {
			n++
		}
	}
	return n
}

// Close aborts every live request. Requests submitted afterwards fail
// immediately.
func (c *Correlator) Close() {
	c.stop()
	c.CancelAll()
}

func (c *Correlator) drop(id protocol.RequestID) bool {
	p, ok := c.table.Remove(id)
	if ok {
		p.cancel()
	}
	return ok
}

func toAppError(err error) error {
	var ee *executor.Error
	if errors.As(err, &ee) {
		return ee.AppError()
	}
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.RequestFailed(err)
}
