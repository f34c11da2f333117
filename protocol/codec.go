package protocol

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Codec serialises events for a channel that carries text. Every codec
// must round-trip arbitrary chunk bytes exactly.
type Codec interface {
	Name() string
	Encode(Event) ([]byte, error)
	Decode([]byte) (Event, error)
}

// Codec names accepted by CodecByName.
const (
	CodecBase64    = "base64"
	CodecByteArray = "bytes"
)

// CodecByName resolves a configured codec name. Empty selects base64.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", CodecBase64:
		return Base64{}, nil
	case CodecByteArray:
		return ByteArray{}, nil
	default:
		return nil, fmt.Errorf("unknown chunk codec %q", name)
	}
}

// wireEvent is the JSON shape shared by every codec:
//
//	{"requestId":1,"status":200,"statusText":"OK","headers":{...}}
//	{"requestId":1,"chunk":...}
//	{"requestId":1,"status":0,"error":"..."}
type wireEvent struct {
	RequestID  RequestID         `json:"requestId"`
	Status     *int              `json:"status,omitempty"`
	StatusText string            `json:"statusText,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Chunk      json.RawMessage   `json:"chunk,omitempty"`
	Error      string            `json:"error,omitempty"`
}

func encodeWith(ev Event, chunk func([]byte) ([]byte, error)) ([]byte, error) {
	w := wireEvent{RequestID: ev.RequestID}
	switch ev.Kind {
	case KindResponse:
		if ev.Response == nil {
			return nil, fmt.Errorf("response event %d without metadata", ev.RequestID)
		}
		status := ev.Response.Status
		w.Status = &status
		w.StatusText = ev.Response.StatusText
		w.Headers = ev.Response.Headers
		if w.Headers == nil {
			w.Headers = map[string]string{}
		}
	case KindChunk:
		raw, err := chunk(ev.Chunk)
		if err != nil {
			return nil, err
		}
		w.Chunk = raw
	case KindEnd:
		status := StatusEnd
		w.Status = &status
		w.Error = ev.Error
	default:
		return nil, fmt.Errorf("cannot encode event kind %s", ev.Kind)
	}
	return json.Marshal(w)
}

// decodeEvent accepts either chunk form so a consumer works against a
// producer configured with the other codec.
func decodeEvent(data []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return Event{}, fmt.Errorf("decode stream event: %w", err)
	}
	switch {
	case w.Chunk != nil:
		b, err := decodeChunk(w.Chunk)
		if err != nil {
			return Event{}, fmt.Errorf("decode chunk for request %d: %w", w.RequestID, err)
		}
		return ChunkEvent(w.RequestID, b), nil
	case w.Status != nil && *w.Status == StatusEnd:
		return Event{Kind: KindEnd, RequestID: w.RequestID, Error: w.Error}, nil
	case w.Status != nil:
		if w.Headers == nil {
			w.Headers = map[string]string{}
		}
		return ResponseEvent(InitialResponse{
			RequestID:  w.RequestID,
			Status:     *w.Status,
			StatusText: w.StatusText,
			Headers:    w.Headers,
		}), nil
	default:
		return Event{}, fmt.Errorf("stream event for request %d has neither chunk nor status", w.RequestID)
	}
}

func decodeChunk(raw json.RawMessage) ([]byte, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty chunk")
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return base64.StdEncoding.DecodeString(s)
	case '[':
		var vals []int
		if err := json.Unmarshal(raw, &vals); err != nil {
			return nil, err
		}
		out := make([]byte, len(vals))
		for i, v := range vals {
			// Signed producers send -128..127.
			if v < -128 || v > 255 {
				return nil, fmt.Errorf("byte value %d at index %d out of range", v, i)
			}
			out[i] = byte(v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("chunk must be a base64 string or a byte array")
	}
}

// Base64 carries chunks as standard base64 strings.
type Base64 struct{}

func (Base64) Name() string { return CodecBase64 }

func (Base64) Encode(ev Event) ([]byte, error) {
	return encodeWith(ev, func(b []byte) ([]byte, error) {
		return json.Marshal(base64.StdEncoding.EncodeToString(b))
	})
}

func (Base64) Decode(data []byte) (Event, error) { return decodeEvent(data) }

// ByteArray carries chunks as JSON arrays of byte values 0..255.
type ByteArray struct{}

func (ByteArray) Name() string { return CodecByteArray }

func (ByteArray) Encode(ev Event) ([]byte, error) {
	return encodeWith(ev, func(b []byte) ([]byte, error) {
		var buf bytes.Buffer
		buf.Grow(len(b)*4 + 2)
		buf.WriteByte('[')
		for i, c := range b {
			if i > 0 {
				buf.WriteByte(',')
			}
			fmt.Fprintf(&buf, "%d", c)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	})
}

func (ByteArray) Decode(data []byte) (Event, error) { return decodeEvent(data) }
