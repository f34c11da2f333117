package httpbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	apperrors "github.com/kbukum/streamfetch/errors"
	"github.com/kbukum/streamfetch/executor"
	"github.com/kbukum/streamfetch/fetch"
	"github.com/kbukum/streamfetch/logger"
	"github.com/kbukum/streamfetch/protocol"
	"github.com/kbukum/streamfetch/server/middleware"
)

var _ fetch.Bridge = (*Client)(nil)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// Client reaches a remote Handler. It implements fetch.Bridge, so a
// fetch.Client can run against a bridge in another process.
type Client struct {
	baseURL string
	exec    *executor.Client
	log     *logger.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientLogger sets the client's logger.
func WithClientLogger(l *logger.Logger) ClientOption {
	return func(c *Client) { c.log = l }
}

// NewClient creates a client for the bridge served at baseURL.
func NewClient(baseURL string, exec *executor.Client, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, apperrors.InvalidInput("base_url", "must be an absolute http(s) URL")
	}
	if exec == nil {
		return nil, apperrors.MissingField("executor")
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		exec:    exec,
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithComponent("httpbridge-client")
	return c, nil
}

// Listen opens an event stream and returns once the server has assigned
// the listener id.
func (c *Client) Listen(ctx context.Context, handler func(protocol.Event)) (fetch.Listener, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	resp, err := c.exec.Execute(streamCtx, protocol.Request{
		URL:     c.baseURL + PathEvents,
		Method:  http.MethodGet,
		Headers: protocol.NewHeaders("Accept", "text/event-stream"),
	})
	if err != nil {
		cancel()
		return nil, c.transportError(ctx, err)
	}
	if resp.Status != http.StatusOK {
		defer cancel()
		return nil, decodeError(resp)
	}

	r := NewReader(resp.Body)
	first, err := r.Next()
	if err != nil {
		cancel()
		_ = r.Close()
		return nil, apperrors.BridgeUnavailable(fmt.Errorf("read connected event: %w", err))
	}
	var hello connectedEvent
	if first.Event != EventConnected || json.Unmarshal([]byte(first.Data), &hello) != nil || hello.ListenerID == "" {
		cancel()
		_ = r.Close()
		return nil, apperrors.BridgeUnavailable(fmt.Errorf("unexpected first event %q", first.Event))
	}

	l := &remoteListener{id: hello.ListenerID, cancel: cancel, done: make(chan struct{})}
	go l.read(r, handler, c.log)
	return l, nil
}

// StreamFetch submits req under listenerID.
func (c *Client) StreamFetch(ctx context.Context, listenerID string, req protocol.Request) (protocol.InitialResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return protocol.InitialResponse{}, apperrors.InvalidInput("request", err.Error())
	}
	resp, err := c.exec.Execute(ctx, protocol.Request{
		URL:    c.baseURL + PathFetch,
		Method: http.MethodPost,
		Headers: protocol.NewHeaders(
			"Content-Type", "application/json",
			middleware.HeaderListenerID, listenerID,
		),
		Body: body,
	})
	if err != nil {
		return protocol.InitialResponse{}, c.transportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.Status != http.StatusOK {
		return protocol.InitialResponse{}, decodeError(resp)
	}
	var out protocol.InitialResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return protocol.InitialResponse{}, apperrors.BridgeUnavailable(fmt.Errorf("decode response: %w", err))
	}
	return out, nil
}

// Cancel asks the server to stop the upstream read for id.
func (c *Client) Cancel(ctx context.Context, id protocol.RequestID) error {
	resp, err := c.exec.Execute(ctx, protocol.Request{
		URL:    c.baseURL + PathFetch + "/" + id.String(),
		Method: http.MethodDelete,
	})
	if err != nil {
		return c.transportError(ctx, err)
	}
	defer resp.Body.Close()
	if resp.Status == http.StatusNoContent || resp.Status == http.StatusOK {
		return nil
	}
	return decodeError(resp)
}

func (c *Client) transportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return apperrors.BridgeUnavailable(err)
}

// decodeError turns a non-success response into an *AppError, using the
// server's error body when it has one.
func decodeError(resp *executor.Response) error {
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body apperrors.ErrorResponse
	if err := json.Unmarshal(data, &body); err == nil && body.Error.Code != "" {
		return apperrors.FromResponse(body, resp.Status)
	}
	return apperrors.BridgeUnavailable(fmt.Errorf("unexpected status %d: %s", resp.Status, strings.TrimSpace(string(data))))
}

// remoteListener is a listener whose events arrive over an SSE stream.
type remoteListener struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
}

func (l *remoteListener) ID() string            { return l.id }
func (l *remoteListener) Done() <-chan struct{} { return l.done }

// Remove closes the stream; the server drops the listener when it sees
// the disconnect.
func (l *remoteListener) Remove() { l.cancel() }

func (l *remoteListener) read(r *Reader, handler func(protocol.Event), log *logger.Logger) {
	defer close(l.done)
	defer l.cancel()
	defer r.Close()

	for {
		ev, err := r.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) && !executor.IsCanceled(err) {
				log.Warn("Event stream ended", logger.Fields(
					logger.FieldListenerID, l.id,
					logger.FieldError, err.Error(),
				))
			}
			return
		}
		if ev.Event != protocol.EventName {
			continue
		}
		decoded, err := protocol.Base64{}.Decode([]byte(ev.Data))
		if err != nil {
			log.Error("Malformed stream event", logger.Fields(
				logger.FieldListenerID, l.id,
				logger.FieldError, err.Error(),
			))
			continue
		}
		handler(decoded)
	}
}
