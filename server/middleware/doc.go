// Package middleware holds the HTTP middleware of the bridge server.
// Everything except RateLimit uses the plain Middleware signature and is
// applied around the whole mux; RateLimit is a Gin handler installed on the
// bridge routes only.
package middleware
