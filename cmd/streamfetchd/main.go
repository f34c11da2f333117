// Command streamfetchd serves the streaming fetch bridge over HTTP.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"

	"github.com/kbukum/streamfetch/bootstrap"
	"github.com/kbukum/streamfetch/bridge"
	"github.com/kbukum/streamfetch/component"
	"github.com/kbukum/streamfetch/config"
	"github.com/kbukum/streamfetch/executor"
	"github.com/kbukum/streamfetch/logger"
	"github.com/kbukum/streamfetch/observability"
	"github.com/kbukum/streamfetch/plugin"
	"github.com/kbukum/streamfetch/server"
	"github.com/kbukum/streamfetch/server/middleware"
	"github.com/kbukum/streamfetch/transport/httpbridge"
	"github.com/kbukum/streamfetch/version"
)

const serviceName = "streamfetchd"

func main() {
	configFile := pflag.StringP("config", "c", "", "path to config.yml (searched in standard locations when empty)")
	envFile := pflag.String("env-file", "", "path to a .env file")
	showVersion := pflag.BoolP("version", "v", false, "print the version and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Println(serviceName, version.Get().String())
		return
	}

	var cfg Config
	opts := []config.LoaderOption{}
	if *configFile != "" {
		opts = append(opts, config.WithConfigFile(*configFile))
	}
	if *envFile != "" {
		opts = append(opts, config.WithEnvFile(*envFile))
	}
	if err := config.Load(serviceName, &cfg, opts...); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if cfg.Version == "" {
		cfg.Version = version.Get().String()
	}

	if err := run(context.Background(), &cfg); err != nil {
		logger.Error("streamfetchd exited with error", logger.Fields(logger.FieldError, err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *Config) error {
	app, err := bootstrap.NewApp(cfg)
	if err != nil {
		return err
	}
	log := app.Logger

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	telemetry, err := observability.Init(ctx, cfg.Observability)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	app.OnStop(telemetry.Shutdown)
	metrics, err := observability.NewStreamMetrics(observability.Meter("github.com/kbukum/streamfetch"))
	if err != nil {
		return err
	}

	exec, err := executor.New(cfg.Executor)
	if err != nil {
		return fmt.Errorf("executor: %w", err)
	}
	app.OnStop(func(context.Context) error {
		exec.Close()
		return nil
	})

	hub := bridge.NewHub(log)
	p, err := plugin.New(cfg.Plugin, exec, hub, plugin.WithLogger(log), plugin.WithMetrics(metrics))
	if err != nil {
		return fmt.Errorf("plugin: %w", err)
	}
	handler, err := httpbridge.NewHandler(p, cfg.Bridge, log)
	if err != nil {
		return err
	}

	srv := server.New(cfg.Server, log)
	srv.ApplyMiddleware()
	srv.RegisterDefaultEndpoints(serviceName, app.Components.HealthAll, func() map[string]int {
		return map[string]int{
			"in_flight": p.InFlight(),
			"listeners": hub.Count(),
		}
	})
	var routeMW []gin.HandlerFunc
	if cfg.Server.RateLimit.Enabled() {
		routeMW = append(routeMW, middleware.RateLimit(ctx, cfg.Server.RateLimit))
	}
	handler.Mount(srv, routeMW...)

	// Stopped in reverse: server first so no new work arrives, then the
	// plugin drains relays, then the hub drops listeners.
	for _, c := range []component.Component{
		bridge.NewComponent(hub),
		plugin.NewComponent(p),
		server.NewComponent(srv),
	} {
		if err := app.RegisterComponent(c); err != nil {
			return err
		}
	}

	return app.Run(ctx)
}
