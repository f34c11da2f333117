package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/kbukum/streamfetch/logger"
)

// HeaderRequestID carries the per-HTTP-request id.
const HeaderRequestID = "X-Request-Id"

// RequestID injects a unique X-Request-Id header into every request and
// response, keeping one the client already sent. The id is also stored on
// the request context for logger.WithContext.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(HeaderRequestID)
			if id == "" {
				id = uuid.New().String()
				r.Header.Set(HeaderRequestID, id)
			}
			w.Header().Set(HeaderRequestID, id)
			next.ServeHTTP(w, r.WithContext(logger.ContextWithHTTPRequestID(r.Context(), id)))
		})
	}
}
