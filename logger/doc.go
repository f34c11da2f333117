// Package logger provides structured logging using zerolog.
//
// Every bridge component takes a *Logger and tags itself with
// WithComponent. Stream-scoped lines carry request_id and listener_id.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.GetGlobalLogger().WithComponent("relay")
//	log.Info("stream ended", logger.StreamFields(id, chunks, bytes, elapsed))
package logger
