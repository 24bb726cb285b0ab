package cli

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/pipecat/bootstrap"
	"github.com/kbukum/pipecat/config"
	"github.com/kbukum/pipecat/pipeline"
	"github.com/kbukum/pipecat/quantity"
	"github.com/kbukum/pipecat/record"
)

// RunOptions holds the source flags of the run command. Every other flag
// is bound straight to its config key.
type RunOptions struct {
	*RootOptions
	Source      string
	Name        string
	Path        string
	Address     string
	URL         string
	Interval    string
	MaxDatagram int
	Baud        int
	DataBits    int
	Parity      string
	StopBits    string

	AppOptions []bootstrap.Option
}

// flagBindings maps config keys to run flags.
var flagBindings = map[string]string{
	"logging.level":        "log-level",
	"limit.count":          "count",
	"limit.duration":       "duration",
	"limit.poll":           "poll",
	"limit.timeout":        "timeout",
	"limit.initial":        "initial",
	"limit.until_key":      "until-key",
	"limit.until_value":    "until-value",
	"limit.queue_capacity": "queue-capacity",
	"transform.parse":      "parse",
	"transform.parse_key":  "parse-key",
	"transform.delimiter":  "delimiter",
	"transform.timestamp":  "timestamp",
	"transform.keep":       "keep",
	"transform.duplicates": "duplicates",
	"transform.trace":      "trace",
	"transform.device":     "device",
	"output.dump":          "dump",
	"output.csv":           "csv",
	"output.gob":           "gob",
	"output.broadcast":     "broadcast",
	"output.topic":         "topic",
	"output.summary":       "summary",
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions, appOpts ...bootstrap.Option) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts, AppOptions: appOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a pipeline until its sources end or a limit is reached",
		Long: `Run reads records from the configured sources and writes them to the
configured outputs. Flags override the config file and PIPECAT_* variables.

Example:
  pipecat run --source udp --address :7000 --parse json --count 100
  pipecat run --source serial --path /dev/ttyUSB0 --baud 4800 --timeout 30s --csv log.csv
  pipecat run -c charger.yml --until-key mode --until-value finished`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipeline(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Source, "source", "", "source kind: stdin, file, serial, udp, http-get, http-receive, metronome, gob")
	f.StringVar(&opts.Name, "name", "", "stream name used in logs (default: the source kind)")
	f.StringVar(&opts.Path, "path", "", "file, device or gob archive to read")
	f.StringVar(&opts.Address, "address", "", "listen address for udp and http-receive")
	f.StringVar(&opts.URL, "url", "", "URL polled by http-get")
	f.StringVar(&opts.Interval, "interval", "", "http-get poll period or metronome rate, e.g. 5s or \"2 minutes\"")
	f.IntVar(&opts.MaxDatagram, "max-datagram", 0, "largest UDP datagram read")
	f.IntVar(&opts.Baud, "baud", 0, "serial baud rate (default 9600)")
	f.IntVar(&opts.DataBits, "data-bits", 0, "serial data bits: 5, 6, 7 or 8 (default 8)")
	f.StringVar(&opts.Parity, "parity", "", "serial parity: none, odd, even, mark or space")
	f.StringVar(&opts.StopBits, "stop-bits", "", "serial stop bits: 1, 1.5 or 2")

	f.String("log-level", "", "log level: trace, debug, info, warn, error")

	f.Int("count", 0, "stop after this many records")
	f.Duration("duration", 0, "stop after this long")
	f.Duration("poll", 0, "how often a duration limit re-checks the clock")
	f.Duration("timeout", 0, "stop when no record arrives for this long")
	f.Duration("initial", 0, "how long the timeout limit waits for the first record")
	f.String("until-key", "", "stop after the first record whose field ...")
	f.String("until-value", "", "... renders as this value")
	f.Int("queue-capacity", 0, "bound the queues between producers and consumers")

	f.String("parse", "", "decode the payload: json or xml")
	f.String("parse-key", "", "field holding the payload (default: string)")
	f.String("delimiter", "", "split JSON member names into path keys")
	f.Bool("timestamp", false, "add a UTC timestamp field")
	f.String("keep", "", "drop records without this field")
	f.String("duplicates", "", "drop records whose field did not change")
	f.Bool("trace", false, "log every record at debug level")
	f.String("device", "", "decode instrument output: icharger208b, nmea or metar (needs --parse xml)")

	f.Bool("dump", false, "print records (default when no other output is set)")
	f.String("csv", "", "write records to this CSV file")
	f.String("gob", "", "write records to this gob archive")
	f.String("broadcast", "", "serve records to websocket clients on this address")
	f.String("topic", "", "broadcast topic (default: the service name)")
	f.StringSlice("summary", nil, "fields to summarize after the run")

	return cmd
}

func runPipeline(cmd *cobra.Command, opts *RunOptions) error {
	loaderOpts := []config.LoaderOption{config.WithFlags(cmd.Flags(), flagBindings)}
	if opts.ConfigFile != "" {
		loaderOpts = append(loaderOpts, config.WithConfigFile(opts.ConfigFile))
	}
	if opts.EnvFile != "" {
		loaderOpts = append(loaderOpts, config.WithEnvFile(opts.EnvFile))
	}

	cfg, err := config.LoadConfig(loaderOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "loading config", err)
	}
	if err := opts.applySource(cfg); err != nil {
		return WrapExitError(ExitCommandError, "invalid source flags", err)
	}
	if opts.Verbose {
		cfg.Debug = true
		cfg.Logging.Level = "debug"
	}

	appOpts := append([]bootstrap.Option{bootstrap.WithOutput(cmd.ErrOrStderr())}, opts.AppOptions...)
	app, err := bootstrap.NewApp(cfg, appOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	b := newBuilder(app, cmd.InOrStdin(), cmd.OutOrStdout())
	err = app.RunTask(ctx, func(ctx context.Context) error {
		p, err := b.build()
		if err != nil {
			return WrapExitError(ExitCommandError, "building pipeline", err)
		}
		err = pipeline.Drain(p, func(context.Context, *record.Record) error {
			app.Summary.CountRecord()
			return nil
		}).Run(ctx)
		b.summarize()
		if stderrors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if stderrors.As(err, &exitErr) {
		return err
	}
	return WrapExitError(ExitFailure, "pipeline failed", err)
}

// applySource replaces the configured sources with the one described by
// the source flags, when --source is given.
func (o *RunOptions) applySource(cfg *config.Config) error {
	if o.Source == "" {
		if o.Path != "" || o.Address != "" || o.URL != "" || o.Interval != "" {
			return fmt.Errorf("--path, --address, --url and --interval need --source")
		}
		return nil
	}
	sc := config.SourceConfig{
		Name:        o.Name,
		Kind:        o.Source,
		Path:        o.Path,
		Address:     o.Address,
		URL:         o.URL,
		MaxDatagram: o.MaxDatagram,
		Baud:        o.Baud,
		DataBits:    o.DataBits,
		Parity:      o.Parity,
		StopBits:    o.StopBits,
	}
	if o.Interval != "" {
		d, err := quantity.ParseDuration(o.Interval)
		if err != nil {
			return err
		}
		sc.Interval = d
	}
	cfg.Sources = []config.SourceConfig{sc}
	return nil
}
