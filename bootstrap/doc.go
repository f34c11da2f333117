// Package bootstrap runs the lifecycle of a long-running streamfetch
// process.
//
// An App owns the component registry. Run starts components in registration
// order, runs the configure callbacks and the start and ready hooks, logs a
// startup summary and then blocks until SIGINT, SIGTERM or context
// cancellation. Shutdown runs the stop hooks and stops components in reverse
// order within the graceful timeout.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.RegisterComponent(bridge.NewComponent(hub))
//	app.OnStop(func(ctx context.Context) error { return flush(ctx) })
//	err = app.Run(ctx)
package bootstrap
