package executor

import (
	"context"
	"encoding/pem"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/kbukum/streamfetch/errors"
	"github.com/kbukum/streamfetch/protocol"
	"github.com/kbukum/streamfetch/resilience"
)

func newClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestExecute_ReturnsHeadersBeforeBody(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("X-Multi", "a")
		w.Header().Add("X-Multi", "b")
		w.WriteHeader(http.StatusAccepted)
		w.(http.Flusher).Flush()
		<-release
		_, _ = io.WriteString(w, "late body")
	}))
	defer srv.Close()

	c := newClient(t, Config{})
	resp, err := c.Execute(context.Background(), protocol.Request{URL: srv.URL})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	defer resp.Body.Close()

	if resp.Status != http.StatusAccepted {
		t.Errorf("expected 202, got %d", resp.Status)
	}
	if resp.StatusText != "Accepted" {
		t.Errorf("expected Accepted, got %q", resp.StatusText)
	}
	if resp.Headers["X-Multi"] != "a, b" {
		t.Errorf("expected joined header, got %q", resp.Headers["X-Multi"])
	}

	close(release)
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(data) != "late body" {
		t.Errorf("expected late body, got %q", data)
	}
}

func TestExecute_ErrorStatusIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "missing", http.StatusNotFound)
	}))
	defer srv.Close()

	resp, err := newClient(t, Config{}).Execute(context.Background(), protocol.Request{URL: srv.URL})
	if err != nil {
		t.Fatalf("expected 404 to pass through, got %v", err)
	}
	defer resp.Body.Close()
	if resp.Status != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.Status)
	}
}

func TestExecute_BodyOnlyForBodyMethods(t *testing.T) {
	type seen struct {
		method, contentType, body, agent string
	}
	got := make(chan seen, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got <- seen{r.Method, r.Header.Get("Content-Type"), string(b), r.Header.Get("User-Agent")}
	}))
	defer srv.Close()

	c := newClient(t, Config{Headers: map[string]string{"X-Default": "1"}})
	tests := []struct {
		req  protocol.Request
		want seen
	}{
		{
			protocol.Request{URL: srv.URL, Method: "post", Body: []byte(`{"a":1}`)},
			seen{"POST", protocol.DefaultContentType, `{"a":1}`, "streamfetch"},
		},
		{
			protocol.Request{URL: srv.URL, Method: "PUT", Body: []byte("x"), Headers: protocol.NewHeaders("content-type", "text/plain", "User-Agent", "me")},
			seen{"PUT", "text/plain", "x", "me"},
		},
		{
			protocol.Request{URL: srv.URL, Method: "GET", Body: []byte("ignored")},
			seen{"GET", "", "", "streamfetch"},
		},
	}
	for _, tt := range tests {
		resp, err := c.Execute(context.Background(), tt.req)
		if err != nil {
			t.Fatalf("%s: %v", tt.req.Method, err)
		}
		resp.Body.Close()
		if s := <-got; s != tt.want {
			t.Errorf("expected %+v, got %+v", tt.want, s)
		}
	}
}

func TestExecute_HeaderTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := newClient(t, Config{ReadTimeout: 50 * time.Millisecond})
	_, err := c.Execute(context.Background(), protocol.Request{URL: srv.URL})
	if !IsTimeout(err) {
		t.Fatalf("expected timeout, got %v", err)
	}
	var e *Error
	errors.As(err, &e)
	if e.Phase != PhaseRead {
		t.Errorf("expected read phase, got %q", e.Phase)
	}
	if !apperrors.IsCode(e.AppError(), apperrors.ErrCodeTimeout) {
		t.Errorf("expected TIMEOUT app error, got %v", e.AppError())
	}
}

func TestExecute_BodyReadTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "first")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := newClient(t, Config{ReadTimeout: 100 * time.Millisecond})
	resp, err := c.Execute(context.Background(), protocol.Request{URL: srv.URL})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if string(data) != "first" {
		t.Errorf("expected partial body, got %q", data)
	}
	if !IsTimeout(err) {
		t.Errorf("expected read timeout, got %v", err)
	}
}

func TestExecute_CancelMidBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "x")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	resp, err := newClient(t, Config{}).Execute(ctx, protocol.Request{URL: srv.URL})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	defer resp.Body.Close()

	buf := make([]byte, 1)
	if _, err := resp.Body.Read(buf); err != nil {
		t.Fatalf("first read: %v", err)
	}
	cancel()
	_, err = io.ReadAll(resp.Body)
	if !IsCanceled(err) {
		t.Errorf("expected canceled, got %v", err)
	}
}

func TestExecute_ConnectionRefusedIsRetried(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	var retries atomic.Int32
	retry := resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		OnRetry:        func(int, error, time.Duration) { retries.Add(1) },
	}
	c := newClient(t, Config{Retry: &retry})
	_, err = c.Execute(context.Background(), protocol.Request{URL: "http://" + addr})

	var e *Error
	if !errors.As(err, &e) || e.Code != ErrCodeConnection {
		t.Fatalf("expected connection error, got %v", err)
	}
	if retries.Load() != 2 {
		t.Errorf("expected 2 retries, got %d", retries.Load())
	}
	if !apperrors.IsCode(e.AppError(), apperrors.ErrCodeConnectionFailed) {
		t.Errorf("expected CONNECTION_FAILED, got %v", e.AppError())
	}
}

func TestExecute_CircuitOpens(t *testing.T) {
	ln, _ := net.Listen("tcp", "127.0.0.1:0")
	addr := ln.Addr().String()
	ln.Close()

	c := newClient(t, Config{CircuitBreaker: &resilience.CircuitBreakerConfig{Name: "upstream", MaxFailures: 1, Timeout: time.Hour}})
	req := protocol.Request{URL: "http://" + addr}
	_, _ = c.Execute(context.Background(), req)
	_, err := c.Execute(context.Background(), req)

	var e *Error
	if !errors.As(err, &e) || e.Code != ErrCodeCircuitOpen {
		t.Fatalf("expected circuit open, got %v", err)
	}
	if !apperrors.IsCode(e.AppError(), apperrors.ErrCodeServiceUnavailable) {
		t.Errorf("expected SERVICE_UNAVAILABLE, got %v", e.AppError())
	}
}

func TestExecute_InvalidURL(t *testing.T) {
	_, err := newClient(t, Config{}).Execute(context.Background(), protocol.Request{URL: "http://[::1"})
	var e *Error
	if !errors.As(err, &e) || e.Code != ErrCodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExecute_TLSWithCAFile(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "secure")
	}))
	defer srv.Close()

	caFile := filepath.Join(t.TempDir(), "ca.pem")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	if err := os.WriteFile(caFile, pemBytes, 0o600); err != nil {
		t.Fatalf("write ca: %v", err)
	}

	c := newClient(t, Config{TLS: &TLSConfig{CAFile: caFile}})
	resp, err := c.Execute(context.Background(), protocol.Request{URL: srv.URL})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if string(data) != "secure" {
		t.Errorf("expected secure, got %q", data)
	}

	plain := newClient(t, Config{})
	if _, err := plain.Execute(context.Background(), protocol.Request{URL: srv.URL}); err == nil {
		t.Error("expected verification failure without the CA")
	}
}

func TestConfig_DefaultsAndValidate(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.ConnectTimeout != 30*time.Second || cfg.ReadTimeout != 30*time.Second || cfg.WriteTimeout != 30*time.Second {
		t.Errorf("expected 30s timeouts, got %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	cfg.TLS = &TLSConfig{CertFile: "only-cert.pem"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for cert without key")
	}
}

func TestTLSConfig_Build(t *testing.T) {
	var nilCfg *TLSConfig
	if c, err := nilCfg.Build(); c != nil || err != nil {
		t.Errorf("expected nil config, got %v %v", c, err)
	}
	c, err := (&TLSConfig{SkipVerify: true}).Build()
	if err != nil || c == nil || !c.InsecureSkipVerify {
		t.Errorf("expected skip verify config, got %v %v", c, err)
	}
	if _, err := (&TLSConfig{CAFile: "/nonexistent/ca.pem"}).Build(); err == nil {
		t.Error("expected error for missing ca file")
	}
}

func TestErrorCode_String(t *testing.T) {
	if ErrCodeCircuitOpen.String() != "circuit_open" || ErrorCode(99).String() != "unknown" {
		t.Error("unexpected error code names")
	}
	e := NewTimeoutError(PhaseWrite, errors.New("i/o timeout"))
	if e.Error() != "executor: timeout (write): write timed out" {
		t.Errorf("unexpected message %q", e.Error())
	}
}
