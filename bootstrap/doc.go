// Package bootstrap runs one pipecat pipeline as a finite task with
// uniform lifecycle management:
//
//	Logger → Telemetry → OnStart hooks → task → OnStop hooks → Summary
//
// SIGINT and SIGTERM cancel the task's context so bounded and unbounded
// pipelines alike shut down cleanly. OnStop hooks run in reverse
// registration order within the graceful timeout.
//
//	app, _ := bootstrap.NewApp(cfg)
//	app.OnStop(func(ctx context.Context) error { return f.Close() })
//	err := app.RunTask(ctx, func(ctx context.Context) error {
//	    return pipeline.Drain(p, sink).Run(ctx)
//	})
package bootstrap
