// Package fetch is the caller-facing API. Fetch returns a Response as soon
// as headers are in; its Body streams the payload as chunk events arrive
// over a Bridge.
//
// A Client without a bridge is the fallback: Fetch goes straight to an
// *http.Client and the body is the native response body.
//
// Errors before headers are returned from Fetch. Invalid requests come back
// as an error, while transport and bridge failures produce a synthetic
// response with status 599 ("Network Error") whose Err carries the cause.
// An HTTP error status such as 404 is an ordinary response. Errors after
// headers never fail Fetch; the body simply ends and Response.Err reports
// why.
//
// Cancelling the Fetch context, or closing the body, aborts the stream and
// asks the bridge to stop the upstream read.
package fetch
