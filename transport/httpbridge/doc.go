// Package httpbridge carries the bridge channel over HTTP so the consuming
// side can run in another process.
//
// The server side exposes a plugin:
//
//	GET    /v1/events     text/event-stream; "connected" then "streamResponse" events
//	POST   /v1/fetch      submit a request for the listener in X-Listener-ID
//	DELETE /v1/fetch/:id  cancel a request
//
// Client implements fetch.Bridge against those endpoints. Each event stream
// is one listener: closing the stream removes the listener and cancels the
// requests submitted under it.
package httpbridge
