// Package resilience provides the fault-tolerance primitives the bridge
// wraps around outbound requests and stream admission.
//
//   - CircuitBreaker: fails fast while an upstream keeps failing before headers
//   - Retry: retries pre-header failures with exponential backoff
//   - Bulkhead: caps concurrent streams; a slot is held until the stream ends
//   - RateLimiter: token bucket on outbound request starts
//
//	release, err := bulkhead.Acquire(ctx)
//	if err != nil { return err }
//	go func() { defer release(); relay.Run(...) }()
package resilience
