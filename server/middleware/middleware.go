package middleware

import "net/http"

// Middleware wraps an http.Handler. Server-level middleware use this
// signature so they cover the whole mux: the SSE route on the mux itself
// and the gin routes behind it.
type Middleware func(http.Handler) http.Handler

// Chain composes middleware with the first one outermost. Nil entries are
// skipped so optional middleware can be listed unconditionally.
func Chain(middlewares ...Middleware) Middleware {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			if middlewares[i] == nil {
				continue
			}
			final = middlewares[i](final)
		}
		return final
	}
}
