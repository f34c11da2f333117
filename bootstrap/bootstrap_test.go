package bootstrap

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/streamfetch/component"
	"github.com/kbukum/streamfetch/config"
	"github.com/kbukum/streamfetch/logger"
)

type testConfig struct {
	config.ServiceConfig
}

func (c *testConfig) ApplyDefaults() { c.ServiceConfig.ApplyDefaults() }
func (c *testConfig) Validate() error { return c.ServiceConfig.Validate() }

type mockComponent struct {
	name     string
	startErr error
	stopErr  error
	health   component.Health
	events   *[]string
}

func (m *mockComponent) Name() string { return m.name }
func (m *mockComponent) Start(context.Context) error {
	*m.events = append(*m.events, "start:"+m.name)
	return m.startErr
}
func (m *mockComponent) Stop(context.Context) error {
	*m.events = append(*m.events, "stop:"+m.name)
	return m.stopErr
}
func (m *mockComponent) Health(context.Context) component.Health {
	h := m.health
	h.Name = m.name
	if h.Status == "" {
		h.Status = component.StatusHealthy
	}
	return h
}

func newTestApp(t *testing.T, opts ...Option) *App[*testConfig] {
	t.Helper()
	cfg := &testConfig{ServiceConfig: config.ServiceConfig{Name: "streamfetchd", Version: "1.0.0"}}
	app, err := NewApp(cfg, append([]Option{WithLogger(logger.Nop())}, opts...)...)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	return app
}

func TestNewApp(t *testing.T) {
	app := newTestApp(t)
	if app.Name != "streamfetchd" || app.Version != "1.0.0" {
		t.Errorf("expected name and version from config, got %q %q", app.Name, app.Version)
	}
	if app.Cfg.Environment != "development" {
		t.Errorf("expected defaults applied, got environment %q", app.Cfg.Environment)
	}
	if app.gracefulTimeout != DefaultGracefulTimeout {
		t.Errorf("expected default graceful timeout, got %v", app.gracefulTimeout)
	}
	if newTestApp(t, WithGracefulTimeout(time.Second)).gracefulTimeout != time.Second {
		t.Error("expected graceful timeout option to apply")
	}
}

func TestNewApp_Validation(t *testing.T) {
	if _, err := NewApp(&testConfig{}, WithLogger(logger.Nop())); err == nil {
		t.Error("expected error for missing name")
	}
}

func TestRun_Lifecycle(t *testing.T) {
	app := newTestApp(t)
	var events []string
	for _, name := range []string{"hub", "plugin", "server"} {
		if err := app.RegisterComponent(&mockComponent{name: name, events: &events}); err != nil {
			t.Fatalf("RegisterComponent: %v", err)
		}
	}
	hook := func(name string) Hook {
		return func(context.Context) error {
			events = append(events, name)
			return nil
		}
	}
	app.OnStart(hook("onStart"))
	app.OnConfigure(func(_ context.Context, a *App[*testConfig]) error {
		events = append(events, "configure:"+a.Name)
		return nil
	})
	app.OnReady(hook("onReady"))
	app.OnStop(hook("onStop"))

	ctx, cancel := context.WithCancel(context.Background())
	app.OnReady(func(context.Context) error {
		cancel()
		return nil
	})
	if err := app.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := "start:hub start:plugin start:server onStart configure:streamfetchd onReady onStop stop:server stop:plugin stop:hub"
	if got := strings.Join(events, " "); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestRun_StartFailureStopsStarted(t *testing.T) {
	app := newTestApp(t)
	var events []string
	boom := errors.New("bind failed")
	_ = app.RegisterComponent(&mockComponent{name: "hub", events: &events})
	_ = app.RegisterComponent(&mockComponent{name: "server", startErr: boom, events: &events})

	err := app.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("expected start error, got %v", err)
	}
	want := "start:hub start:server stop:hub"
	if got := strings.Join(events, " "); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestRun_HookErrors(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name     string
		register func(app *App[*testConfig])
	}{
		{"start", func(a *App[*testConfig]) { a.OnStart(func(context.Context) error { return boom }) }},
		{"configure", func(a *App[*testConfig]) {
			a.OnConfigure(func(context.Context, *App[*testConfig]) error { return boom })
		}},
		{"ready", func(a *App[*testConfig]) { a.OnReady(func(context.Context) error { return boom }) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t)
			tt.register(app)
			if err := app.Run(context.Background()); !errors.Is(err, boom) {
				t.Errorf("expected hook error, got %v", err)
			}
		})
	}
}

func TestShutdown_CollectsErrors(t *testing.T) {
	app := newTestApp(t)
	var events []string
	stopErr := errors.New("stop failed")
	hookErr := errors.New("hook failed")
	_ = app.RegisterComponent(&mockComponent{name: "hub", stopErr: stopErr, events: &events})
	app.OnStop(func(context.Context) error { return hookErr })

	if err := app.Components.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll: %v", err)
	}
	err := app.Shutdown(context.Background())
	if !errors.Is(err, hookErr) {
		t.Errorf("expected hook error in %v", err)
	}
	if err == nil || !strings.Contains(err.Error(), "stop failed") {
		t.Errorf("expected stop error in %v", err)
	}
}

func TestReadyCheck(t *testing.T) {
	tests := []struct {
		name    string
		health  component.Health
		wantErr bool
	}{
		{"healthy", component.Health{Status: component.StatusHealthy}, false},
		{"degraded", component.Health{Status: component.StatusDegraded, Message: "at capacity"}, true},
		{"unhealthy", component.Health{Status: component.StatusUnhealthy}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t)
			var events []string
			_ = app.RegisterComponent(&mockComponent{name: "plugin", health: tt.health, events: &events})
			err := app.ReadyCheck(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}
