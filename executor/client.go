package executor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/kbukum/streamfetch/protocol"
	"github.com/kbukum/streamfetch/resilience"
)

// Response is an upstream response whose headers have arrived. Body
// streams the payload and must be closed.
type Response struct {
	Status     int
	StatusText string
	Headers    map[string]string
	Proto      string
	Body       io.ReadCloser
}

// Client executes protocol requests over net/http with per-operation
// connect, write and read timeouts.
type Client struct {
	httpClient *http.Client
	config     Config
	cb         *resilience.CircuitBreaker
	rl         *resilience.RateLimiter
}

// New creates a new executor with the given configuration.
func New(cfg Config) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout, KeepAlive: 30 * time.Second}
	transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		return &deadlineConn{Conn: conn, read: cfg.ReadTimeout, write: cfg.WriteTimeout}, nil
	}
	transport.TLSHandshakeTimeout = cfg.ConnectTimeout
	transport.ResponseHeaderTimeout = cfg.ReadTimeout

	tlsCfg, err := cfg.TLS.Build()
	if err != nil {
		return nil, err
	}
	if tlsCfg != nil {
		transport.TLSClientConfig = tlsCfg
	}

	c := &Client{
		// No overall timeout: a stream may legitimately run for hours.
		httpClient: &http.Client{Transport: transport},
		config:     cfg,
	}
	if cfg.CircuitBreaker != nil {
		c.cb = resilience.NewCircuitBreaker(*cfg.CircuitBreaker)
	}
	if cfg.RateLimit != nil {
		c.rl = resilience.NewRateLimiter(*cfg.RateLimit)
	}
	return c, nil
}

// Execute sends req and returns once response headers have arrived. Any
// HTTP status is a successful result. Cancelling ctx aborts the request,
// including a body that is still being read.
func (c *Client) Execute(ctx context.Context, req protocol.Request) (*Response, error) {
	req = req.Normalize()
	if c.rl != nil {
		if err := c.rl.Wait(ctx); err != nil {
			return nil, classify(ctx, err, PhaseConnect)
		}
	}
	if c.config.Retry == nil {
		return c.executeOnce(ctx, req)
	}

	retry := *c.config.Retry
	base := retry.RetryIf
	retry.RetryIf = func(err error) bool {
		return IsRetryable(err) && (base == nil || base(err))
	}
	return resilience.Retry(ctx, retry, func() (*Response, error) {
		return c.executeOnce(ctx, req)
	})
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// HTTPClient exposes the configured *http.Client.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

func (c *Client) executeOnce(ctx context.Context, req protocol.Request) (*Response, error) {
	if c.cb == nil {
		return c.send(ctx, req)
	}
	var resp *Response
	err := c.cb.Execute(func() error {
		var sendErr error
		resp, sendErr = c.send(ctx, req)
		return sendErr
	})
	if err != nil {
		return nil, classify(ctx, err, PhaseRead)
	}
	return resp, nil
}

func (c *Client) send(ctx context.Context, req protocol.Request) (*Response, error) {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classify(ctx, err, PhaseRead)
	}

	return &Response{
		Status:     resp.StatusCode,
		StatusText: protocol.ResponseStatusText(resp),
		Headers:    protocol.FlattenHeaders(resp.Header),
		Proto:      resp.Proto,
		Body:       &body{rc: resp.Body, ctx: ctx},
	}, nil
}

// buildRequest constructs the *http.Request. Configured headers apply
// first so the request's own headers override them.
func (c *Client) buildRequest(ctx context.Context, req protocol.Request) (*http.Request, error) {
	var payload io.Reader
	if req.SendsBody() {
		payload = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, payload)
	if err != nil {
		return nil, NewValidationError("create request: " + err.Error())
	}

	for k, v := range c.config.Headers {
		httpReq.Header.Set(k, v)
	}
	req.Headers.Apply(httpReq.Header)

	if payload != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", protocol.DefaultContentType)
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", c.config.UserAgent)
	}
	return httpReq, nil
}

// body classifies read errors so a stalled upstream surfaces as a typed
// read timeout.
type body struct {
	rc   io.ReadCloser
	ctx  context.Context
	once sync.Once
}

func (b *body) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		err = classify(b.ctx, err, PhaseRead)
	}
	return n, err
}

func (b *body) Close() error {
	var err error
	b.once.Do(func() { err = b.rc.Close() })
	return err
}

// deadlineConn arms a fresh deadline before every read and write, giving
// per-operation timeouts rather than a single whole-request deadline.
type deadlineConn struct {
	net.Conn
	read, write time.Duration
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	_ = c.Conn.SetReadDeadline(time.Now().Add(c.read))
	n, err := c.Conn.Read(p)
	if err != nil && isNetTimeout(err) {
		err = &phaseError{phase: PhaseRead, err: err}
	}
	return n, err
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	_ = c.Conn.SetWriteDeadline(time.Now().Add(c.write))
	n, err := c.Conn.Write(p)
	if err != nil && isNetTimeout(err) {
		err = &phaseError{phase: PhaseWrite, err: err}
	}
	return n, err
}
