package logger

import (
	"time"
)

// Standard field key constants for structured logging.
const (
	FieldService       = "service"
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldListenerID    = "listener_id"
	FieldHTTPRequestID = "http_request_id"
	FieldURL           = "url"
	FieldMethod        = "method"
	FieldStatus        = "status"
	FieldChunks        = "chunks"
	FieldBytes         = "bytes"
	FieldError         = "error"
	FieldDuration      = "duration_ms"
	FieldPhase         = "phase"
)

// Fields builds a map[string]interface{} from alternating key-value pairs.
//
//	log.Info("stream ended", logger.Fields(logger.FieldRequestID, id, logger.FieldChunks, n))
func Fields(kvs ...interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kvs)/2)
	for i := 0; i < len(kvs)-1; i += 2 {
		if key, ok := kvs[i].(string); ok {
			m[key] = kvs[i+1]
		}
	}
	return m
}

// StreamFields creates the fields logged when a stream finishes.
func StreamFields(id int64, chunks, bytes int64, d time.Duration) map[string]interface{} {
	return map[string]interface{}{
		FieldRequestID: id,
		FieldChunks:    chunks,
		FieldBytes:     bytes,
		FieldDuration:  d.Milliseconds(),
	}
}

// MergeWithError adds an error field to an existing map.
func MergeWithError(fields map[string]interface{}, err error) map[string]interface{} {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	if err != nil {
		fields[FieldError] = err.Error()
	}
	return fields
}
