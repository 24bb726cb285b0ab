package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kbukum/pipecat/config"
	"github.com/kbukum/pipecat/logger"
	"github.com/kbukum/pipecat/observability"
	"github.com/kbukum/pipecat/version"
)

// App runs one configured pipeline.
type App struct {
	Name    string
	Version string
	Cfg     *config.Config
	Logger  *logger.Logger
	// Metrics is nil unless telemetry is enabled; StreamMetrics methods
	// accept a nil receiver.
	Metrics *observability.StreamMetrics
	Summary *Summary

	output          io.Writer
	gracefulTimeout time.Duration
	signals         []os.Signal

	onStart []Hook
	onStop  []Hook
}

// NewApp validates cfg and builds the logger.
func NewApp(cfg *config.Config, opts ...Option) (*App, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	app := &App{
		Name:            cfg.Name,
		Version:         version.GetShortVersion(),
		Cfg:             cfg,
		output:          os.Stderr,
		gracefulTimeout: 15 * time.Second,
		signals:         []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}

	o := resolveOptions(opts)
	if o.output != nil {
		app.output = o.output
	}
	if o.gracefulTimeout != nil {
		app.gracefulTimeout = *o.gracefulTimeout
	}
	if o.signals != nil {
		app.signals = o.signals
	}
	if o.logger != nil {
		app.Logger = o.logger
	} else {
		app.Logger = logger.New(&cfg.Logging, cfg.Name)
	}

	app.Summary = NewSummary(app.Name, app.Version)
	return app, nil
}

// RunTask starts telemetry, runs the OnStart hooks, then runs task under a
// pipecat.run span with a context cancelled on SIGINT or SIGTERM (see
// WithSignals). OnStop hooks and the summary follow whatever the outcome.
// The task's error wins over shutdown errors.
func (a *App) RunTask(ctx context.Context, task func(ctx context.Context) error) error {
	if err := a.startup(ctx); err != nil {
		stopErr := a.stop()
		if stopErr != nil {
			a.Logger.Error("shutdown after failed startup", logger.ErrorFields("stop", stopErr))
		}
		return err
	}

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	if len(a.signals) > 0 {
		signal.Notify(sigCh, a.signals...)
		defer signal.Stop(sigCh)
	}

	go func() {
		select {
		case sig := <-sigCh:
			a.Logger.Info("received signal, stopping pipeline", logger.Fields(
				"signal", sig.String(),
			))
			cancel()
		case <-taskCtx.Done():
		}
	}()

	taskErr := a.runSpan(taskCtx, task)

	stopErr := a.stop()
	a.Summary.SetError(taskErr)
	if err := a.Summary.Render(a.output); err != nil {
		a.Logger.Warn("writing run summary failed", logger.ErrorFields("summary", err))
	}

	if taskErr != nil {
		return taskErr
	}
	return stopErr
}

func (a *App) runSpan(ctx context.Context, task func(ctx context.Context) error) error {
	ctx, span := observability.StartSpan(ctx, observability.SpanRun)
	defer span.End()

	start := time.Now()
	err := task(ctx)
	a.Summary.SetDuration(time.Since(start))

	observability.SetSpanAttribute(ctx, observability.AttrRecords, a.Summary.Records())
	if err != nil {
		observability.SetSpanError(ctx, err)
	}
	return err
}

func (a *App) startup(ctx context.Context) error {
	a.Logger.Info("starting pipeline", logger.Fields(
		"name", a.Name,
		"version", a.Version,
	))

	if a.Cfg.Telemetry.Enabled {
		if err := a.initTelemetry(ctx); err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
	}

	if err := runHooks(ctx, a.onStart); err != nil {
		return fmt.Errorf("onStart hook failed: %w", err)
	}
	return nil
}

func (a *App) initTelemetry(ctx context.Context) error {
	tcfg := a.Cfg.Telemetry
	if tcfg.Version == "dev" {
		tcfg.Version = a.Version
	}

	mp, err := observability.InitMeter(ctx, &tcfg, a.Logger)
	if err != nil {
		return err
	}
	a.onStop = append([]Hook{mp.Shutdown}, a.onStop...)

	tp, err := observability.InitTracer(ctx, &tcfg, a.Logger)
	if err != nil {
		return err
	}
	a.onStop = append([]Hook{tp.Shutdown}, a.onStop...)

	metrics, err := observability.NewStreamMetrics(observability.Meter())
	if err != nil {
		return err
	}
	a.Metrics = metrics
	return nil
}

func (a *App) stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	err := runStopHooks(ctx, a.onStop)
	if err != nil {
		a.Logger.Error("shutdown completed with errors", logger.ErrorFields("stop", err))
	} else {
		a.Logger.Debug("shutdown complete")
	}
	return err
}
