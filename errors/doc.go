// Package errors provides the application error type used across the fetch
// bridge. Errors carry a machine-readable code, an HTTP status for the remote
// transport and retryable detection following RFC 7807 and Google AIP-193.
package errors
