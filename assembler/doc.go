// Package assembler is the consuming side of the bridge. It demultiplexes
// the events of one listener by request id and rebuilds each response as
// metadata plus a streaming body.
//
// A stream is opened by its response event and claimed with Await, which
// returns before the body is complete. Chunks are queued in order without
// bound. The end event closes the body; an error carried by the end event
// is reported out of band through Sink.Err, never as a read error. A stream
// whose events all arrive before Await is kept, body buffered, until Await
// claims it.
//
// Closing the body, or Cancel, drops buffered data, removes the stream and
// asks the producer to stop through the canceler hook. Events that arrive
// for a removed stream are ignored.
package assembler
