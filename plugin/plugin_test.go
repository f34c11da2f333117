package plugin

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/streamfetch/bridge"
	"github.com/kbukum/streamfetch/component"
	apperrors "github.com/kbukum/streamfetch/errors"
	"github.com/kbukum/streamfetch/executor"
	"github.com/kbukum/streamfetch/protocol"
	"github.com/kbukum/streamfetch/relay"
)

type collector struct {
	mu     sync.Mutex
	events []protocol.Event
	ended  chan protocol.RequestID
}

func newCollector() *collector {
	return &collector{ended: make(chan protocol.RequestID, 64)}
}

func (c *collector) handle(ev protocol.Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
	if ev.Kind == protocol.KindEnd {
		c.ended <- ev.RequestID
	}
}

func (c *collector) waitEnd(t *testing.T) protocol.RequestID {
	t.Helper()
	select {
	case id := <-c.ended:
		return id
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for end event")
		return 0
	}
}

func (c *collector) forID(id protocol.RequestID) []protocol.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []protocol.Event
	for _, ev := range c.events {
		if ev.RequestID == id {
			out = append(out, ev)
		}
	}
	return out
}

func newPlugin(t *testing.T, cfg Config) *Plugin {
	t.Helper()
	exec, err := executor.New(executor.Config{})
	if err != nil {
		t.Fatalf("executor.New: %v", err)
	}
	p, err := New(cfg, exec, bridge.NewHub(nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p
}

func TestStreamFetch_EventOrderAndBody(t *testing.T) {
	body := bytes.Repeat([]byte("0123456789"), 5000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Test", "yes")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	p := newPlugin(t, Config{Relay: relay.Config{ChunkSize: 4096}})
	c := newCollector()
	sub, err := p.AddListener(context.Background(), c.handle)
	if err != nil {
		t.Fatalf("AddListener: %v", err)
	}

	resp, err := p.StreamFetch(context.Background(), sub.ID(), protocol.Request{URL: srv.URL})
	if err != nil {
		t.Fatalf("StreamFetch: %v", err)
	}
	if resp.Status != 200 || resp.Headers["X-Test"] != "yes" {
		t.Errorf("unexpected initial response %+v", resp)
	}
	if c.waitEnd(t) != resp.RequestID {
		t.Fatal("expected end for submitted id")
	}

	events := c.forID(resp.RequestID)
	if events[0].Kind != protocol.KindResponse {
		t.Fatalf("expected response event first, got %s", events[0].Kind)
	}
	var got bytes.Buffer
	for _, ev := range events[1 : len(events)-1] {
		if ev.Kind != protocol.KindChunk {
			t.Fatalf("expected chunk, got %s", ev.Kind)
		}
		got.Write(ev.Chunk)
	}
	if last := events[len(events)-1]; last.Kind != protocol.KindEnd || last.Error != "" {
		t.Errorf("expected clean end, got %+v", last)
	}
	if !bytes.Equal(got.Bytes(), body) {
		t.Errorf("expected %d body bytes, got %d", len(body), got.Len())
	}
	if p.InFlight() != 0 {
		t.Errorf("expected nothing in flight, got %d", p.InFlight())
	}
}

func TestStreamFetch_ErrorStatusIsAResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	p := newPlugin(t, Config{})
	c := newCollector()
	sub, _ := p.AddListener(context.Background(), c.handle)

	resp, err := p.StreamFetch(context.Background(), sub.ID(), protocol.Request{URL: srv.URL})
	if err != nil {
		t.Fatalf("expected 404 to be a response, got %v", err)
	}
	if resp.Status != 404 || resp.StatusText != "Not Found" {
		t.Errorf("expected 404 Not Found, got %d %q", resp.Status, resp.StatusText)
	}
	c.waitEnd(t)
}

func TestStreamFetch_SubmissionFailures(t *testing.T) {
	ln, _ := net.Listen("tcp", "127.0.0.1:0")
	refused := "http://" + ln.Addr().String()
	ln.Close()

	p := newPlugin(t, Config{})
	c := newCollector()
	sub, _ := p.AddListener(context.Background(), c.handle)

	tests := []struct {
		name     string
		listener string
		req      protocol.Request
		code     apperrors.ErrorCode
	}{
		{"missing url", sub.ID(), protocol.Request{}, apperrors.ErrCodeMissingField},
		{"unknown listener", "ghost", protocol.Request{URL: refused}, apperrors.ErrCodeListenerFailed},
		{"connection refused", sub.ID(), protocol.Request{URL: refused}, apperrors.ErrCodeConnectionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.StreamFetch(context.Background(), tt.listener, tt.req)
			if !apperrors.IsCode(err, tt.code) {
				t.Errorf("expected %s, got %v", tt.code, err)
			}
		})
	}

	time.Sleep(20 * time.Millisecond)
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) != 0 {
		t.Errorf("expected no events for failed submissions, got %d", len(c.events))
	}
}

func stallingServer(t *testing.T) (*httptest.Server, <-chan struct{}) {
	t.Helper()
	gone := make(chan struct{}, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("first"))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
		gone <- struct{}{}
	}))
	t.Cleanup(srv.Close)
	return srv, gone
}

func TestCancel_EndsStreamAndAbortsUpstream(t *testing.T) {
	srv, gone := stallingServer(t)
	p := newPlugin(t, Config{})
	c := newCollector()
	sub, _ := p.AddListener(context.Background(), c.handle)

	resp, err := p.StreamFetch(context.Background(), sub.ID(), protocol.Request{URL: srv.URL})
	if err != nil {
		t.Fatalf("StreamFetch: %v", err)
	}
	if !p.Cancel(resp.RequestID) {
		t.Fatal("expected cancel to find the request")
	}
	c.waitEnd(t)

	events := c.forID(resp.RequestID)
	if last := events[len(events)-1]; last.Error != relay.ErrCanceled.Error() {
		t.Errorf("expected canceled end, got %q", last.Error)
	}
	select {
	case <-gone:
	case <-time.After(5 * time.Second):
		t.Error("expected upstream request to be aborted")
	}
}

func TestRemovingListenerAbortsUpstream(t *testing.T) {
	srv, gone := stallingServer(t)
	p := newPlugin(t, Config{})
	sub, _ := p.AddListener(context.Background(), func(protocol.Event) {})

	if _, err := p.StreamFetch(context.Background(), sub.ID(), protocol.Request{URL: srv.URL}); err != nil {
		t.Fatalf("StreamFetch: %v", err)
	}
	sub.Remove()

	select {
	case <-gone:
	case <-time.After(5 * time.Second):
		t.Fatal("expected upstream request to be aborted")
	}
}

func TestMaxInFlight(t *testing.T) {
	srv, _ := stallingServer(t)
	p := newPlugin(t, Config{MaxInFlight: 1})
	sub, _ := p.AddListener(context.Background(), func(protocol.Event) {})

	if _, err := p.StreamFetch(context.Background(), sub.ID(), protocol.Request{URL: srv.URL}); err != nil {
		t.Fatalf("first StreamFetch: %v", err)
	}
	_, err := p.StreamFetch(context.Background(), sub.ID(), protocol.Request{URL: srv.URL})
	if !apperrors.IsCode(err, apperrors.ErrCodeServiceUnavailable) {
		t.Errorf("expected SERVICE_UNAVAILABLE, got %v", err)
	}

	h := NewComponent(p).Health(context.Background())
	if h.Status != component.StatusDegraded {
		t.Errorf("expected degraded health at capacity, got %s", h.Status)
	}
}

func TestClose(t *testing.T) {
	srv, _ := stallingServer(t)
	p := newPlugin(t, Config{})
	sub, _ := p.AddListener(context.Background(), func(protocol.Event) {})
	_, _ = p.StreamFetch(context.Background(), sub.ID(), protocol.Request{URL: srv.URL})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if p.InFlight() != 0 {
		t.Errorf("expected nothing in flight after close, got %d", p.InFlight())
	}
	_, err := p.StreamFetch(context.Background(), sub.ID(), protocol.Request{URL: srv.URL})
	if !apperrors.IsCode(err, apperrors.ErrCodeServiceUnavailable) {
		t.Errorf("expected SERVICE_UNAVAILABLE after close, got %v", err)
	}
	if _, err := p.AddListener(context.Background(), func(protocol.Event) {}); err == nil {
		t.Error("expected AddListener to fail after close")
	}
}

func TestConfigValidate(t *testing.T) {
	if _, err := New(Config{MaxInFlight: -1}, nil, bridge.NewHub(nil)); err == nil {
		t.Error("expected error for negative max_in_flight")
	}
}
