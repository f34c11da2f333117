// Package server provides the HTTP server of the bridge daemon, using Gin
// with cleartext HTTP/2 (h2c) support on a single port.
//
// The server follows the component pattern with lifecycle management,
// health endpoints and configurable middleware.
//
// # Middleware
//
// Applied around the whole mux (server/middleware):
//
//   - Recovery: Panic recovery with structured logging
//   - RequestID: Request ID generation and propagation
//   - CORS: Cross-origin resource sharing configuration
//   - BodySizeLimit: Request body size limits
//   - RequestLogger: Request logging with duration tracking
//
// RateLimit is a Gin middleware for the bridge routes, keyed by listener.
//
// # Endpoints
//
// Built-in endpoints (server/endpoint):
//
//   - /health: Health check aggregation
//   - /livez: Liveness probe
//   - /readyz: Readiness probe
//   - /metrics: Runtime and stream counters
//   - /version: Build version information
package server
