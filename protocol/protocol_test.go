package protocol

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestHeaders_LastWriteWinsKeepsPosition(t *testing.T) {
	h := NewHeaders("Accept", "a", "X-Trace", "1", "accept", "b")
	if h.Len() != 2 {
		t.Fatalf("expected 2 headers, got %d", h.Len())
	}
	if v, _ := h.Get("ACCEPT"); v != "b" {
		t.Errorf("expected b, got %q", v)
	}
	var names []string
	for name := range h.All() {
		names = append(names, name)
	}
	if names[0] != "accept" || names[1] != "X-Trace" {
		t.Errorf("expected [accept X-Trace], got %v", names)
	}
}

func TestHeaders_JSONKeepsOrder(t *testing.T) {
	h := NewHeaders("Z", "1", "A", "2")
	data, err := json.Marshal(h)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"Z":"1","A":"2"}` {
		t.Errorf("unexpected json %s", data)
	}

	var back Headers
	if err := json.Unmarshal([]byte(`{"b":"1","a":"2","B":"3"}`), &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Len() != 2 {
		t.Errorf("expected 2 headers, got %d", back.Len())
	}
	if v, _ := back.Get("b"); v != "3" {
		t.Errorf("expected last value 3, got %q", v)
	}
	if err := json.Unmarshal([]byte(`["x"]`), &back); err == nil {
		t.Error("expected error for non-object headers")
	}
	if err := json.Unmarshal([]byte(`{"a":1}`), &back); err == nil {
		t.Error("expected error for non-string value")
	}
}

func TestHeaders_CloneIsIndependent(t *testing.T) {
	h := NewHeaders("A", "1")
	c := h.Clone()
	c.Set("A", "2")
	if v, _ := h.Get("A"); v != "1" {
		t.Errorf("expected original untouched, got %q", v)
	}
}

func TestHeaders_ApplyAndFromMap(t *testing.T) {
	h := HeadersFromMap(map[string]string{"b": "2", "a": "1"})
	dst := http.Header{}
	h.Apply(dst)
	if dst.Get("A") != "1" || dst.Get("B") != "2" {
		t.Errorf("unexpected header %v", dst)
	}
}

func TestFlattenHeaders(t *testing.T) {
	src := http.Header{"Set-Cookie": {"a=1", "b=2"}, "Content-Type": {"text/plain"}}
	flat := FlattenHeaders(src)
	if flat["Set-Cookie"] != "a=1, b=2" {
		t.Errorf("expected joined cookies, got %q", flat["Set-Cookie"])
	}
	if flat["Content-Type"] != "text/plain" {
		t.Errorf("expected text/plain, got %q", flat["Content-Type"])
	}
}

func TestRequest_Normalize(t *testing.T) {
	body := []byte("x")
	r := Request{URL: " https://example.com ", Method: "post", Body: body}.Normalize()
	if r.Method != http.MethodPost {
		t.Errorf("expected POST, got %q", r.Method)
	}
	if r.URL != "https://example.com" {
		t.Errorf("expected trimmed url, got %q", r.URL)
	}
	body[0] = 'y'
	if string(r.Body) != "x" {
		t.Error("expected normalized body to be detached")
	}
	if m := (Request{URL: "http://x"}).Normalize().Method; m != http.MethodGet {
		t.Errorf("expected GET default, got %q", m)
	}
}

func TestRequest_SendsBody(t *testing.T) {
	tests := []struct {
		method string
		body   []byte
		want   bool
	}{
		{http.MethodPost, []byte("{}"), true},
		{http.MethodPut, []byte{}, true},
		{http.MethodPatch, []byte("x"), true},
		{http.MethodDelete, []byte("x"), true},
		{http.MethodGet, []byte("x"), false},
		{http.MethodHead, []byte("x"), false},
		{http.MethodPost, nil, false},
	}
	for _, tt := range tests {
		got := Request{Method: tt.method, Body: tt.body}.SendsBody()
		if got != tt.want {
			t.Errorf("%s body=%v: expected %v, got %v", tt.method, tt.body, tt.want, got)
		}
	}
}

func TestRequestID_Parse(t *testing.T) {
	id, err := ParseRequestID("42")
	if err != nil || id != 42 {
		t.Errorf("expected 42, got %d (%v)", id, err)
	}
	if id.String() != "42" {
		t.Errorf("expected \"42\", got %q", id.String())
	}
	if _, err := ParseRequestID("x"); err == nil {
		t.Error("expected parse error")
	}
}

func TestEvent_Constructors(t *testing.T) {
	ev := ResponseEvent(InitialResponse{RequestID: 1, Status: 201})
	if ev.Kind != KindResponse || ev.Status() != 201 {
		t.Errorf("unexpected response event %+v", ev)
	}
	end := EndEvent(1, nil)
	if end.Status() != StatusEnd || end.Error != "" {
		t.Errorf("unexpected end event %+v", end)
	}
	if KindChunk.String() != "chunk" || Kind(0).String() != "unknown" {
		t.Error("unexpected kind names")
	}
	if StatusTextFor(404, "") != "Not Found" || StatusTextFor(200, "Fine") != "Fine" {
		t.Error("unexpected status text")
	}
}
