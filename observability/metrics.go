package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Submission outcomes recorded on streamfetch.requests.
const (
	OutcomeOK       = "ok"
	OutcomeInvalid  = "invalid"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Stream end outcomes recorded on streamfetch.stream.duration.
const (
	EndComplete = "complete"
	EndError    = "error"
	EndCanceled = "canceled"
	EndAbandon  = "abandoned"
)

// StreamMetrics holds the instruments for streamed requests. A nil
// *StreamMetrics records nothing.
type StreamMetrics struct {
	requests metric.Int64Counter
	active   metric.Int64UpDownCounter
	chunks   metric.Int64Counter
	bytes    metric.Int64Counter
	duration metric.Float64Histogram
}

// NewStreamMetrics creates the instruments on meter.
func NewStreamMetrics(meter metric.Meter) (*StreamMetrics, error) {
	requests, err := meter.Int64Counter("streamfetch.requests",
		metric.WithDescription("Submitted requests by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating streamfetch.requests counter: %w", err)
	}

	active, err := meter.Int64UpDownCounter("streamfetch.streams.active",
		metric.WithDescription("Streams whose body is still being relayed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating streamfetch.streams.active counter: %w", err)
	}

	chunks, err := meter.Int64Counter("streamfetch.chunks",
		metric.WithDescription("Chunk events emitted"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating streamfetch.chunks counter: %w", err)
	}

	bytes, err := meter.Int64Counter("streamfetch.bytes",
		metric.WithDescription("Body bytes relayed"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating streamfetch.bytes counter: %w", err)
	}

	duration, err := meter.Float64Histogram("streamfetch.stream.duration",
		metric.WithDescription("Time from headers to end event in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating streamfetch.stream.duration histogram: %w", err)
	}

	return &StreamMetrics{
		requests: requests,
		active:   active,
		chunks:   chunks,
		bytes:    bytes,
		duration: duration,
	}, nil
}

// RecordSubmit counts a submission with its outcome.
func (m *StreamMetrics) RecordSubmit(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// StreamStarted marks a stream active.
func (m *StreamMetrics) StreamStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.active.Add(ctx, 1)
}

// StreamEnded records a finished stream and marks it inactive.
func (m *StreamMetrics) StreamEnded(ctx context.Context, chunks, bytes int64, d time.Duration, outcome string) {
	if m == nil {
		return
	}
	m.active.Add(ctx, -1)
	m.chunks.Add(ctx, chunks)
	m.bytes.Add(ctx, bytes)
	m.duration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))
}
