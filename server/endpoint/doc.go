// Package endpoint provides the operational HTTP endpoints of the daemon:
// /health, /livez, /readyz, /metrics and /version.
package endpoint
