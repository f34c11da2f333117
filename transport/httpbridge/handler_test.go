package httpbridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kbukum/streamfetch/bridge"
	apperrors "github.com/kbukum/streamfetch/errors"
	"github.com/kbukum/streamfetch/executor"
	"github.com/kbukum/streamfetch/logger"
	"github.com/kbukum/streamfetch/plugin"
	"github.com/kbukum/streamfetch/protocol"
	"github.com/kbukum/streamfetch/server/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newPlugin(t *testing.T) *plugin.Plugin {
	t.Helper()
	exec, err := executor.New(executor.Config{})
	if err != nil {
		t.Fatalf("executor.New: %v", err)
	}
	p, err := plugin.New(plugin.Config{}, exec, bridge.NewHub(nil))
	if err != nil {
		t.Fatalf("plugin.New: %v", err)
	}
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p
}

func newHandler(t *testing.T, p *plugin.Plugin, cfg Config) *Handler {
	t.Helper()
	h, err := NewHandler(p, cfg, logger.Nop())
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	t.Cleanup(h.CloseStreams)
	return h
}

func decodeAppError(t *testing.T, rec *httptest.ResponseRecorder) apperrors.ErrorResponse {
	t.Helper()
	var body apperrors.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestNewHandler_RejectsUnknownCodec(t *testing.T) {
	if _, err := NewHandler(newPlugin(t), Config{Codec: "msgpack"}, nil); err == nil {
		t.Error("expected error for unknown codec")
	}
}

func TestHandler_RouteErrors(t *testing.T) {
	h := newHandler(t, newPlugin(t), Config{})
	engine := gin.New()
	h.Register(engine)

	tests := []struct {
		name     string
		method   string
		path     string
		listener string
		body     string
		status   int
		code     apperrors.ErrorCode
	}{
		{"missing listener header", http.MethodPost, PathFetch, "", `{"url":"http://example.com"}`, http.StatusBadRequest, apperrors.ErrCodeMissingField},
		{"malformed listener header", http.MethodPost, PathFetch, "nope", `{"url":"http://example.com"}`, http.StatusBadRequest, apperrors.ErrCodeInvalidInput},
		{"malformed body", http.MethodPost, PathFetch, uuid.NewString(), `{"url":`, http.StatusBadRequest, apperrors.ErrCodeInvalidInput},
		{"unknown listener", http.MethodPost, PathFetch, uuid.NewString(), `{"url":"http://example.com"}`, http.StatusServiceUnavailable, apperrors.ErrCodeListenerFailed},
		{"bad request id", http.MethodDelete, PathFetch + "/abc", "", "", http.StatusBadRequest, apperrors.ErrCodeInvalidInput},
		{"zero request id", http.MethodDelete, PathFetch + "/0", "", "", http.StatusBadRequest, apperrors.ErrCodeInvalidInput},
		{"unknown request id", http.MethodDelete, PathFetch + "/42", "", "", http.StatusNotFound, apperrors.ErrCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.listener != "" {
				req.Header.Set(middleware.HeaderListenerID, tt.listener)
			}
			rec := httptest.NewRecorder()
			engine.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, rec.Code)
			}
			if body := decodeAppError(t, rec); body.Error.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, body.Error.Code)
			}
		})
	}
}

func TestHandler_InvalidRequestAfterListen(t *testing.T) {
	p := newPlugin(t)
	h := newHandler(t, p, Config{})
	engine := gin.New()
	h.Register(engine)

	sub, err := p.AddListener(context.Background(), func(protocol.Event) {})
	if err != nil {
		t.Fatalf("AddListener: %v", err)
	}
	defer sub.Remove()

	req := httptest.NewRequest(http.MethodPost, PathFetch, strings.NewReader(`{"url":"ftp://example.com"}`))
	req.Header.Set(middleware.HeaderListenerID, sub.ID())
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if body := decodeAppError(t, rec); body.Error.Code != apperrors.ErrCodeInvalidInput {
		t.Errorf("expected INVALID_INPUT, got %s", body.Error.Code)
	}
}

func TestServeEvents_ConnectedThenEndsWithRequest(t *testing.T) {
	p := newPlugin(t)
	h := newHandler(t, p, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, PathEvents, nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.ServeEvents(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected text/event-stream, got %q", ct)
	}
	id := rec.Header().Get(middleware.HeaderListenerID)
	if id == "" {
		t.Fatal("expected listener id header")
	}

	r := NewReader(newBody(rec.Body.String()))
	ev, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	var hello connectedEvent
	if ev.Event != EventConnected || json.Unmarshal([]byte(ev.Data), &hello) != nil || hello.ListenerID != id {
		t.Errorf("expected connected event for %s, got %+v", id, ev)
	}
	if p.Hub().Has(id) {
		t.Error("expected listener removed when the stream ends")
	}
}

func TestServeEvents_ClosedPluginIs503(t *testing.T) {
	p := newPlugin(t)
	h := newHandler(t, p, Config{})
	_ = p.Close(context.Background())

	rec := httptest.NewRecorder()
	h.ServeEvents(rec, httptest.NewRequest(http.MethodGet, PathEvents, nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	if body := decodeAppError(t, rec); body.Error.Code != apperrors.ErrCodeListenerFailed {
		t.Errorf("expected LISTENER_FAILED, got %s", body.Error.Code)
	}
}
