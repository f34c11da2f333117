package fetch

import (
	"io"
	"net/http"

	"github.com/kbukum/streamfetch/protocol"
)

// Options describe the request beyond its URL.
type Options struct {
	// Method defaults to GET.
	Method string
	// Headers are sent in insertion order.
	Headers protocol.Headers
	// Body is sent for POST, PUT, PATCH and DELETE. Nil means no body.
	Body []byte
}

func (o *Options) request(url string) protocol.Request {
	req := protocol.Request{URL: url}
	if o != nil {
		req.Method = o.Method
		req.Headers = o.Headers
		req.Body = o.Body
	}
	return req.Normalize()
}

// Response is a fetched response whose body may still be streaming.
type Response struct {
	// RequestID is zero for fallback and synthetic responses.
	RequestID  protocol.RequestID
	Status     int
	StatusText string
	Headers    map[string]string
	// Body must be closed. Reads end with io.EOF on completion, on a
	// mid-stream failure and on cancellation alike; use Err to tell them
	// apart.
	Body io.ReadCloser

	cause  error
	stream interface{ Err() error }
}

// OK reports whether Status is in the 2xx range.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Err returns why the response ended abnormally: the submission failure of
// a synthetic 599 response, or the body's stream error. It is nil for a
// complete body and while the body is still streaming.
func (r *Response) Err() error {
	if r.cause != nil {
		return r.cause
	}
	if r.stream != nil {
		return r.stream.Err()
	}
	return nil
}

// Bytes reads the whole body and closes it. A body that ended abnormally
// returns the data read so far together with Err.
func (r *Response) Bytes() ([]byte, error) {
	data, err := io.ReadAll(r.Body)
	if closeErr := r.Body.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		return data, err
	}
	return data, r.Err()
}

// Text reads the whole body as a string.
func (r *Response) Text() (string, error) {
	data, err := r.Bytes()
	return string(data), err
}

func networkError(cause error) *Response {
	return &Response{
		Status:     protocol.StatusBridgeFailure,
		StatusText: protocol.StatusTextBridgeFailure,
		Headers:    map[string]string{},
		Body:       http.NoBody,
		cause:      cause,
	}
}
