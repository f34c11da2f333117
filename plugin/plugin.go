package plugin

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/streamfetch/bridge"
	"github.com/kbukum/streamfetch/correlator"
	apperrors "github.com/kbukum/streamfetch/errors"
	"github.com/kbukum/streamfetch/logger"
	"github.com/kbukum/streamfetch/observability"
	"github.com/kbukum/streamfetch/protocol"
	"github.com/kbukum/streamfetch/relay"
	"github.com/kbukum/streamfetch/resilience"
)

// ErrClosed is the cause reported for submissions after Close.
var ErrClosed = errors.New("plugin closed")

// Plugin executes requests and relays their bodies to listeners on the hub.
type Plugin struct {
	cfg      Config
	hub      *bridge.Hub
	corr     *correlator.Correlator
	relay    *relay.Relay
	bulkhead *resilience.Bulkhead
	metrics  *observability.StreamMetrics
	log      *logger.Logger

	wg     sync.WaitGroup
	closed atomic.Bool
}

// Option configures a Plugin.
type Option func(*options)

type options struct {
	log     *logger.Logger
	metrics *observability.StreamMetrics
	gen     correlator.Generator
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMetrics records stream metrics.
func WithMetrics(m *observability.StreamMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithGenerator replaces the request id generator.
func WithGenerator(g correlator.Generator) Option {
	return func(o *options) { o.gen = g }
}

// New creates a plugin that executes through exec and delivers on hub.
func New(cfg Config, exec correlator.Executor, hub *bridge.Hub, opts ...Option) (*Plugin, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{log: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	corrOpts := []correlator.Option{correlator.WithLogger(o.log)}
	if o.gen != nil {
		corrOpts = append(corrOpts, correlator.WithGenerator(o.gen))
	}

	p := &Plugin{
		cfg:     cfg,
		hub:     hub,
		corr:    correlator.New(exec, corrOpts...),
		relay:   relay.New(cfg.Relay, hub, o.log),
		metrics: o.metrics,
		log:     o.log.WithComponent("plugin"),
	}
	if cfg.MaxInFlight > 0 {
		p.bulkhead = resilience.NewBulkhead(resilience.BulkheadConfig{
			Name:          "streams",
			MaxConcurrent: cfg.MaxInFlight,
			MaxWait:       cfg.AcquireWait,
		})
	}
	return p, nil
}

// AddListener registers handler on the hub. Removing the listener cancels
// every request still streaming to it.
func (p *Plugin) AddListener(ctx context.Context, handler bridge.Handler) (*bridge.Subscription, error) {
	if p.closed.Load() {
		return nil, apperrors.ListenerFailed(ErrClosed)
	}
	sub, err := p.hub.AddListener(ctx, handler)
	if err != nil {
		return nil, apperrors.ListenerFailed(err)
	}
	go func() {
		<-sub.Done()
		if n := p.corr.CancelListener(sub.ID()); n > 0 {
			p.log.Debug("canceled streams of removed listener", logger.Fields(
				logger.FieldListenerID, sub.ID(),
				"streams", n,
			))
		}
	}()
	return sub, nil
}

// RemoveAllListeners removes every listener and cancels their requests.
func (p *Plugin) RemoveAllListeners() int {
	n := p.hub.RemoveAll()
	p.corr.CancelAll()
	return n
}

// StreamFetch submits req on behalf of listenerID and returns once headers
// have arrived. The response event is on the hub before StreamFetch
// returns; chunk and end events follow from a relay goroutine. ctx bounds
// the wait for headers only.
func (p *Plugin) StreamFetch(ctx context.Context, listenerID string, req protocol.Request) (resp protocol.InitialResponse, err error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanSubmit)
	span.SetAttributes(
		attribute.String(observability.AttrListenerID, listenerID),
		attribute.String(observability.AttrMethod, req.Method),
		attribute.String(observability.AttrURL, req.URL),
	)
	defer func() { observability.EndSpan(span, err) }()

	if p.closed.Load() {
		p.metrics.RecordSubmit(ctx, observability.OutcomeRejected)
		return resp, apperrors.ServiceUnavailable("plugin").WithCause(ErrClosed)
	}
	if !p.hub.Has(listenerID) {
		p.metrics.RecordSubmit(ctx, observability.OutcomeRejected)
		return resp, apperrors.ListenerFailed(bridge.ErrNoListener).WithDetail("listener_id", listenerID)
	}

	release := func() {}
	if p.bulkhead != nil {
		release, err = p.bulkhead.Acquire(ctx)
		if err != nil {
			p.metrics.RecordSubmit(ctx, observability.OutcomeRejected)
			p.log.Warn("stream capacity exhausted", logger.Fields(
				logger.FieldListenerID, listenerID,
				"max_in_flight", p.cfg.MaxInFlight,
			))
			return resp, apperrors.ServiceUnavailable("stream capacity").WithCause(err)
		}
	}

	sub, err := p.corr.Submit(ctx, listenerID, req)
	if err != nil {
		release()
		p.recordSubmitFailure(ctx, listenerID, req, err)
		return resp, err
	}

	resp = protocol.InitialResponse{
		RequestID:  sub.ID,
		Status:     sub.Response.Status,
		StatusText: sub.Response.StatusText,
		Headers:    sub.Response.Headers,
	}
	span.SetAttributes(
		attribute.Int64(observability.AttrRequestID, int64(sub.ID)),
		attribute.Int(observability.AttrStatus, resp.Status),
	)

	if emitErr := p.hub.Emit(listenerID, protocol.ResponseEvent(resp)); emitErr != nil {
		p.corr.Cancel(sub.ID)
		sub.Response.Body.Close()
		release()
		p.metrics.RecordSubmit(ctx, observability.OutcomeRejected)
		return protocol.InitialResponse{}, apperrors.ListenerFailed(emitErr).WithDetail("listener_id", listenerID)
	}

	p.metrics.RecordSubmit(ctx, observability.OutcomeOK)
	p.metrics.StreamStarted(ctx)
	p.log.Debug("stream started", logger.Fields(
		logger.FieldRequestID, int64(sub.ID),
		logger.FieldListenerID, listenerID,
		logger.FieldStatus, resp.Status,
	))

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer release()
		p.pump(sub)
	}()
	return resp, nil
}

func (p *Plugin) pump(sub *correlator.Submission) {
	res := p.relay.Run(sub.Context, sub.ID, sub.ListenerID, sub.Response.Body)
	p.corr.Release(sub.ID)

	outcome := observability.EndComplete
	switch {
	case res.EmitErr != nil:
		outcome = observability.EndAbandon
	case errors.Is(res.Err, relay.ErrCanceled):
		outcome = observability.EndCanceled
	case res.Err != nil:
		outcome = observability.EndError
	}
	p.metrics.StreamEnded(context.Background(), res.Chunks, res.Bytes, res.Duration, outcome)
}

func (p *Plugin) recordSubmitFailure(ctx context.Context, listenerID string, req protocol.Request, err error) {
	outcome := observability.OutcomeFailed
	if apperrors.IsCode(err, apperrors.ErrCodeInvalidInput) || apperrors.IsCode(err, apperrors.ErrCodeMissingField) {
		outcome = observability.OutcomeInvalid
	}
	p.metrics.RecordSubmit(ctx, outcome)
	p.log.Warn("submission failed", logger.Fields(
		logger.FieldListenerID, listenerID,
		logger.FieldMethod, req.Method,
		logger.FieldURL, req.URL,
		logger.FieldError, err.Error(),
	))
}

// Cancel aborts the request id. The relay emits an end event carrying
// relay.ErrCanceled if the listener is still registered. It reports whether
// id was live.
func (p *Plugin) Cancel(id protocol.RequestID) bool {
	return p.corr.Cancel(id)
}

// InFlight returns the number of live requests.
func (p *Plugin) InFlight() int {
	return p.corr.Pending()
}

// Hub returns the hub events are delivered on.
func (p *Plugin) Hub() *bridge.Hub {
	return p.hub
}

// Close cancels every live request, rejects new submissions and waits for
// relay goroutines to finish or ctx to end.
func (p *Plugin) Close(ctx context.Context) error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.corr.Close()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
