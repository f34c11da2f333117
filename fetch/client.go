package fetch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/kbukum/streamfetch/assembler"
	apperrors "github.com/kbukum/streamfetch/errors"
	"github.com/kbukum/streamfetch/logger"
	"github.com/kbukum/streamfetch/protocol"
	"github.com/kbukum/streamfetch/validation"
)

var (
	// ErrClosed is returned by Fetch after Close.
	ErrClosed = errors.New("fetch: client closed")
	// ErrListenerRemoved is the stream error of bodies still streaming when
	// the client's listener went away.
	ErrListenerRemoved = errors.New("fetch: listener removed")
)

const defaultCancelTimeout = 5 * time.Second

// Client issues fetches through a Bridge, or directly through an
// *http.Client when it has none. A Client owns one listener, registered on
// the first Fetch.
type Client struct {
	bridge Bridge
	http   *http.Client
	asm    *assembler.Assembler
	log    *logger.Logger

	cancelTimeout time.Duration

	ctx    context.Context
	stop   context.CancelFunc
	mu     sync.Mutex
	sub    Listener
	closed bool
}

// Option configures a Client.
type Option func(*options)

type options struct {
	http          *http.Client
	assembler     assembler.Config
	log           *logger.Logger
	cancelTimeout time.Duration
}

// WithHTTPClient sets the client used when there is no bridge.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.http = hc }
}

// WithAssemblerConfig configures body reassembly.
func WithAssemblerConfig(cfg assembler.Config) Option {
	return func(o *options) { o.assembler = cfg }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithCancelTimeout bounds upstream cancel calls. Defaults to 5s.
func WithCancelTimeout(d time.Duration) Option {
	return func(o *options) { o.cancelTimeout = d }
}

// New creates a client that fetches through b. A nil b makes a fallback
// client.
func New(b Bridge, opts ...Option) *Client {
	o := options{log: logger.Nop(), cancelTimeout: defaultCancelTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.http == nil {
		o.http = http.DefaultClient
	}

	c := &Client{
		bridge:        b,
		http:          o.http,
		log:           o.log.WithComponent("fetch"),
		cancelTimeout: o.cancelTimeout,
	}
	c.ctx, c.stop = context.WithCancel(context.Background())
	if b != nil {
		c.asm = assembler.New(o.assembler,
			assembler.WithCanceler(c.cancelUpstream),
			assembler.WithLogger(o.log),
		)
	}
	return c
}

// NewFallback creates a client that fetches directly with hc.
func NewFallback(hc *http.Client, opts ...Option) *Client {
	return New(nil, append(opts, WithHTTPClient(hc))...)
}

// Bridged reports whether fetches go through a bridge.
func (c *Client) Bridged() bool {
	return c.bridge != nil
}

// Fetch requests url and returns once headers have arrived. ctx covers the
// whole exchange: cancelling it after Fetch returned aborts the body.
func (c *Client) Fetch(ctx context.Context, url string, opts *Options) (*Response, error) {
	req := opts.request(url)
	if c.bridge == nil {
		return c.fallback(ctx, req)
	}

	sub, err := c.listen()
	if err != nil {
		return nil, err
	}

	init, err := c.bridge.StreamFetch(ctx, sub.ID(), req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if appErr, ok := apperrors.AsAppError(err); ok && apperrors.IsValidationCode(appErr.Code) {
			return nil, err
		}
		c.log.Warn("fetch failed before response", logger.Fields(
			logger.FieldMethod, req.Method,
			logger.FieldURL, req.URL,
			logger.FieldError, err.Error(),
		))
		return networkError(err), nil
	}

	st, err := c.asm.Await(ctx, init.RequestID)
	if err != nil {
		return nil, err
	}

	stopWatch := context.AfterFunc(ctx, func() { st.Body.Close() })
	return &Response{
		RequestID:  init.RequestID,
		Status:     st.Response.Status,
		StatusText: st.Response.StatusText,
		Headers:    st.Response.Headers,
		Body:       &streamBody{Sink: st.Body, stopWatch: stopWatch},
		stream:     st.Body,
	}, nil
}

// Close aborts every body still streaming and removes the listener.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()

	if c.asm != nil {
		c.asm.CancelAll()
	}
	if sub != nil {
		sub.Remove()
	}
	c.stop()
	return nil
}

// listen returns the current listener, registering one if there is none
// or the previous one was removed.
func (c *Client) listen() (Listener, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, apperrors.ListenerFailed(ErrClosed)
	}
	if c.sub != nil {
		select {
		case <-c.sub.Done():
			c.sub = nil
		default:
			return c.sub, nil
		}
	}

	sub, err := c.bridge.Listen(c.ctx, c.asm.Dispatch)
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.ListenerFailed(err)
	}
	c.sub = sub
	go c.watch(sub)
	c.log.Debug("listener registered", logger.Fields(logger.FieldListenerID, sub.ID()))
	return sub, nil
}

// watch aborts the streams of sub once it is gone, since their end events
// can no longer arrive.
func (c *Client) watch(sub Listener) {
	select {
	case <-sub.Done():
	case <-c.ctx.Done():
		return
	}
	c.mu.Lock()
	if c.sub == sub {
		c.sub = nil
	}
	c.mu.Unlock()

	c.log.Warn("listener removed", logger.Fields(
		logger.FieldListenerID, sub.ID(),
		"streams", c.asm.Len(),
	))
	c.asm.AbortAll(ErrListenerRemoved)
}

func (c *Client) cancelUpstream(id protocol.RequestID) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.cancelTimeout)
		defer cancel()
		if err := c.bridge.Cancel(ctx, id); err != nil && !apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
			c.log.Debug("upstream cancel failed", logger.Fields(
				logger.FieldRequestID, int64(id),
				logger.FieldError, err.Error(),
			))
		}
	}()
}

func (c *Client) fallback(ctx context.Context, req protocol.Request) (*Response, error) {
	if err := validation.Validate(req); err != nil {
		return nil, err
	}

	var payload io.Reader
	if req.SendsBody() {
		payload = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, payload)
	if err != nil {
		return nil, apperrors.InvalidInput("url", err.Error())
	}
	req.Headers.Apply(httpReq.Header)
	if payload != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", protocol.DefaultContentType)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return networkError(apperrors.RequestFailed(err)), nil
	}
	return &Response{
		Status:     resp.StatusCode,
		StatusText: protocol.ResponseStatusText(resp),
		Headers:    protocol.FlattenHeaders(resp.Header),
		Body:       resp.Body,
	}, nil
}

// streamBody detaches the context watch once the caller closes the body.
type streamBody struct {
	*assembler.Sink
	stopWatch func() bool
}

func (b *streamBody) Close() error {
	b.stopWatch()
	return b.Sink.Close()
}
