package protocol

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// RequestID correlates a submitted request with its stream events.
type RequestID int64

// String formats the id in base 10.
func (id RequestID) String() string { return strconv.FormatInt(int64(id), 10) }

// ParseRequestID parses a base 10 id.
func ParseRequestID(s string) (RequestID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	return RequestID(n), err
}

// DefaultContentType is sent with a body when the caller set none.
const DefaultContentType = "application/json; charset=utf-8"

// Request describes one outbound HTTP request.
type Request struct {
	URL     string  `json:"url" validate:"required,httpurl"`
	Method  string  `json:"method,omitempty" validate:"httpmethod"`
	Headers Headers `json:"headers,omitempty"`
	// Body is nil when absent.
	Body []byte `json:"body,omitempty"`
}

// Normalize returns a detached copy with the method upper-cased and
// defaulted to GET.
func (r Request) Normalize() Request {
	out := Request{
		URL:     strings.TrimSpace(r.URL),
		Method:  strings.ToUpper(strings.TrimSpace(r.Method)),
		Headers: r.Headers.Clone(),
		Body:    slices.Clone(r.Body),
	}
	if out.Method == "" {
		out.Method = http.MethodGet
	}
	return out
}

// SendsBody reports whether the body is attached on the wire. Bodies ride
// on POST, PUT and PATCH, and on DELETE when one was given.
func (r Request) SendsBody() bool {
	if r.Body == nil {
		return false
	}
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}
