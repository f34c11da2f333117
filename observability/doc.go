// Package observability provides OpenTelemetry tracing and metrics for
// streamed requests.
//
// Init installs both OTLP providers when export is enabled and leaves the
// global no-op providers in place otherwise:
//
//	providers, err := observability.Init(ctx, cfg)
//	defer providers.Shutdown(ctx)
//
// Tracing:
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanSubmit)
//	defer observability.EndSpan(span, err)
//
// Metrics:
//
//	m, err := observability.NewStreamMetrics(observability.Meter("streamfetch"))
//	m.RecordSubmit(ctx, observability.OutcomeOK)
package observability
