package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"maps"
	"net/http"
	"slices"
	"strings"
)

// Header is one request header as supplied by the caller.
type Header struct {
	Name  string
	Value string
}

// Headers is an ordered, case-insensitive header list. Setting an existing
// name replaces its value in place so the first insertion position is kept.
// The zero value is empty and ready to use.
type Headers struct {
	entries []Header
}

// NewHeaders builds Headers from alternating name, value pairs.
func NewHeaders(kv ...string) Headers {
	var h Headers
	for i := 0; i+1 < len(kv); i += 2 {
		h.Set(kv[i], kv[i+1])
	}
	return h
}

// HeadersFromMap builds Headers from m in sorted name order.
func HeadersFromMap(m map[string]string) Headers {
	var h Headers
	for _, k := range slices.Sorted(maps.Keys(m)) {
		h.Set(k, m[k])
	}
	return h
}

// Set sets name to value. The last write wins.
func (h *Headers) Set(name, value string) {
	for i := range h.entries {
		if strings.EqualFold(h.entries[i].Name, name) {
			h.entries[i] = Header{Name: name, Value: value}
			return
		}
	}
	h.entries = append(h.entries, Header{Name: name, Value: value})
}

// Get returns the value for name, ignoring case.
func (h Headers) Get(name string) (string, bool) {
	for _, e := range h.entries {
		if strings.EqualFold(e.Name, name) {
			return e.Value, true
		}
	}
	return "", false
}

// Has reports whether name is set.
func (h Headers) Has(name string) bool {
	_, ok := h.Get(name)
	return ok
}

// Len returns the number of distinct header names.
func (h Headers) Len() int { return len(h.entries) }

// All yields headers in insertion order.
func (h Headers) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, e := range h.entries {
			if !yield(e.Name, e.Value) {
				return
			}
		}
	}
}

// Clone returns an independent copy.
func (h Headers) Clone() Headers {
	return Headers{entries: slices.Clone(h.entries)}
}

// Apply writes the headers onto an outgoing http.Header.
func (h Headers) Apply(dst http.Header) {
	for name, value := range h.All() {
		dst.Set(name, value)
	}
}

// MarshalJSON encodes the headers as a JSON object in insertion order.
func (h Headers) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range h.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object of string values, keeping key order.
func (h *Headers) UnmarshalJSON(data []byte) error {
	h.entries = nil
	if string(bytes.TrimSpace(data)) == "null" {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("headers: expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := tok.(string)
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("headers: value for %q: %w", name, err)
		}
		h.Set(name, value)
	}
	_, err = dec.Token()
	return err
}

// FlattenHeaders collapses an http.Header to one value per name, joining
// repeated values with ", ".
func FlattenHeaders(src http.Header) map[string]string {
	out := make(map[string]string, len(src))
	for name, values := range src {
		out[name] = strings.Join(values, ", ")
	}
	return out
}
