package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/pipecat/bootstrap"
	"github.com/kbukum/pipecat/broadcast"
	"github.com/kbukum/pipecat/config"
	"github.com/kbukum/pipecat/device"
	"github.com/kbukum/pipecat/logger"
	"github.com/kbukum/pipecat/pipeline"
	"github.com/kbukum/pipecat/record"
	"github.com/kbukum/pipecat/source"
	"github.com/kbukum/pipecat/store"
	"github.com/kbukum/pipecat/transform"
)

type stream = *pipeline.Pipeline[*record.Record]

// builder turns a Config into a pipeline. Every file or server it opens
// is released by an OnStop hook on the app.
type builder struct {
	app    *bootstrap.App
	cfg    *config.Config
	log    *logger.Logger
	stdin  io.Reader
	stdout io.Writer
	table  *store.Table
}

func newBuilder(app *bootstrap.App, stdin io.Reader, stdout io.Writer) *builder {
	return &builder{
		app:    app,
		cfg:    app.Cfg,
		log:    app.Logger,
		stdin:  stdin,
		stdout: stdout,
	}
}

// keyOf reads a "/"-separated field name as a record key.
func keyOf(s string) record.Key {
	return record.Path(strings.Split(s, "/")...)
}

func (b *builder) pipelineOptions(name string) []pipeline.Option {
	return []pipeline.Option{
		pipeline.WithName(name),
		pipeline.WithLogger(b.log),
		pipeline.WithMetrics(b.app.Metrics),
		pipeline.WithQueueCapacity(b.cfg.Limit.QueueCapacity),
	}
}

func (b *builder) build() (stream, error) {
	sources := make([]stream, 0, len(b.cfg.Sources))
	for _, sc := range b.cfg.Sources {
		p, target, err := b.source(sc)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", sc.Name, err)
		}
		if b.cfg.Transform.Trace {
			p = transform.Trace(p, sc.Name, transform.WithLogger(b.log))
		}
		b.app.Summary.TrackSource(sc.Name, sc.Kind, target)
		sources = append(sources, p)
	}

	p := sources[0]
	if len(sources) > 1 {
		p = pipeline.Multiplex(sources, b.pipelineOptions("sources")...)
		b.app.Summary.TrackStage(fmt.Sprintf("multiplex %d sources", len(sources)))
	}

	p = b.transforms(p)
	p = b.limits(p)
	return b.outputs(p)
}

func (b *builder) closeOnStop(c io.Closer) {
	b.app.OnStop(func(context.Context) error { return c.Close() })
}

func (b *builder) source(sc config.SourceConfig) (stream, string, error) {
	opts := []source.Option{source.WithLogger(b.log.WithFields(logger.Fields(logger.FieldStream, sc.Name)))}

	switch sc.Kind {
	case config.SourceStdin:
		return source.Readline(b.stdin), "-", nil

	case config.SourceFile:
		f, err := os.Open(sc.Path)
		if err != nil {
			return nil, "", err
		}
		b.closeOnStop(f)
		return source.Readline(f), sc.Path, nil

	case config.SourceSerial:
		open, err := source.OpenPort(sc.Port())
		if err != nil {
			return nil, "", err
		}
		opts = append(opts, source.WithRetry(sc.Retry))
		return source.Serial(open, opts...), sc.Path, nil

	case config.SourceUDP:
		return source.UDP(sc.Address, sc.MaxDatagram), sc.Address, nil

	case config.SourceHTTPGet:
		names := make([]string, 0, len(sc.Headers))
		for name := range sc.Headers {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			opts = append(opts, source.WithHeader(name, sc.Headers[name]))
		}
		return source.HTTPGet(sc.URL, sc.Interval, opts...), sc.URL, nil

	case config.SourceHTTPReceive:
		return source.HTTPReceive(sc.Address, sc.Receive, opts...), sc.Address, nil

	case config.SourceMetronome:
		return source.Metronome(sc.Interval), sc.Interval.String(), nil

	case config.SourceGob:
		f, err := os.Open(sc.Path)
		if err != nil {
			return nil, "", err
		}
		b.closeOnStop(f)
		return store.ReadGob(bufio.NewReader(f)), sc.Path, nil
	}
	return nil, "", fmt.Errorf("unknown source kind %q", sc.Kind)
}

func (b *builder) transforms(p stream) stream {
	tc := b.cfg.Transform
	topts := []transform.Option{transform.WithLogger(b.log)}

	switch tc.Parse {
	case "json":
		key := transform.DefaultPayloadKey
		if tc.ParseKey != "" {
			key = keyOf(tc.ParseKey)
		}
		p = transform.ParseJSON(p, key, tc.Delimiter, topts...)
		b.app.Summary.TrackStage("parse json " + key.String())
	case "xml":
		key := transform.DefaultPayloadKey
		if tc.ParseKey != "" {
			key = keyOf(tc.ParseKey)
		}
		p = transform.ParseXML(p, key, transform.DefaultXMLKey, topts...)
		b.app.Summary.TrackStage("parse xml " + key.String())
	}
	if tc.Device != "" {
		p = b.device(p, tc)
	}
	if tc.Keep != "" {
		p = transform.Keep(p, keyOf(tc.Keep), nil)
		b.app.Summary.TrackStage("keep " + tc.Keep)
	}
	if tc.Duplicates != "" {
		p = transform.Duplicates(p, keyOf(tc.Duplicates))
		b.app.Summary.TrackStage("drop duplicate " + tc.Duplicates)
	}
	if tc.Timestamp {
		p = transform.AddTimestamp(p, "", topts...)
		b.app.Summary.TrackStage("timestamp")
	}
	return p
}

func (b *builder) device(p stream, tc config.TransformConfig) stream {
	dopts := []device.Option{device.WithLogger(b.log)}
	if tc.ParseKey != "" && tc.Parse == "" {
		dopts = append(dopts, device.WithKey(keyOf(tc.ParseKey)))
	}
	b.app.Summary.TrackStage("device " + tc.Device)
	switch tc.Device {
	case "icharger208b":
		return device.ICharger208B(p, dopts...)
	case "nmea":
		return device.NMEA(p, dopts...)
	default:
		return device.METAR(p, dopts...)
	}
}

// limits applies the bounds outermost-last so Count is exact: time-based
// limits sit closest to the sources and Count pulls from everything else.
func (b *builder) limits(p stream) stream {
	lc := b.cfg.Limit
	if lc.Duration > 0 {
		p = pipeline.Duration(p, lc.Duration, lc.Poll, b.pipelineOptions("duration")...)
		b.app.Summary.TrackStage("duration " + lc.Duration.String())
	}
	if lc.Timeout > 0 {
		p = pipeline.Timeout(p, lc.Timeout, lc.Initial, b.pipelineOptions("timeout")...)
		b.app.Summary.TrackStage("timeout " + lc.Timeout.String())
	}
	if lc.UntilKey != "" {
		key, want := keyOf(lc.UntilKey), lc.UntilValue
		p = pipeline.Until(p, func(r *record.Record) bool {
			v, ok := r.Get(key)
			return ok && fmt.Sprint(v) == want
		}, b.pipelineOptions("until")...)
		b.app.Summary.TrackStage(fmt.Sprintf("until %s = %s", lc.UntilKey, want))
	}
	if lc.Count > 0 {
		p = pipeline.Count(p, lc.Count, b.pipelineOptions("count")...)
		b.app.Summary.TrackStage(fmt.Sprintf("count %d", lc.Count))
	}
	return p
}

func (b *builder) outputs(p stream) (stream, error) {
	oc := b.cfg.Output
	sopts := []store.Option{store.WithLogger(b.log)}

	if len(oc.Summary) > 0 {
		p, b.table = store.Cache(p)
	}

	if oc.CSV != "" {
		f, err := os.Create(oc.CSV)
		if err != nil {
			return nil, err
		}
		b.closeOnStop(f)
		p = store.WriteCSV(p, f, sopts...)
		b.app.Summary.TrackOutput("csv", oc.CSV)
	}

	if oc.Gob != "" {
		f, err := os.Create(oc.Gob)
		if err != nil {
			return nil, err
		}
		w := bufio.NewWriter(f)
		b.app.OnStop(func(context.Context) error {
			if err := w.Flush(); err != nil {
				_ = f.Close()
				return err
			}
			return f.Close()
		})
		p = store.WriteGob(p, w, sopts...)
		b.app.Summary.TrackOutput("gob", oc.Gob)
	}

	if oc.Broadcast != "" {
		addr, err := b.startHub(oc.Broadcast, &p)
		if err != nil {
			return nil, err
		}
		b.app.Summary.TrackOutput("broadcast", fmt.Sprintf("ws://%s/ws?topic=%s", addr, oc.Topic))
	}

	if oc.Dump || (oc.CSV == "" && oc.Gob == "" && oc.Broadcast == "") {
		p = store.Dump(p, b.stdout)
		b.app.Summary.TrackOutput("dump", "")
	}
	return p, nil
}

// startHub serves a websocket hub on addr under /ws and adds the
// broadcast stage to *p.
func (b *builder) startHub(addr string, p *stream) (string, error) {
	hub := broadcast.NewHub(b.log)
	go hub.Run()

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/ws", gin.WrapH(hub.Handler()))

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		hub.Stop()
		return "", err
	}
	server := &http.Server{Handler: engine, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			b.log.Error("broadcast server error", logger.ErrorFields("serve", err))
		}
	}()
	b.app.OnStop(func(ctx context.Context) error {
		hub.Stop()
		return server.Shutdown(ctx)
	})

	*p = broadcast.Broadcast(*p, hub, b.cfg.Output.Topic)
	b.log.Info("broadcasting records", logger.Fields("addr", listener.Addr().String()))
	return listener.Addr().String(), nil
}

// summarize reports the configured columns once the run is over.
func (b *builder) summarize() {
	if b.table == nil {
		return
	}
	for _, key := range b.cfg.Output.Summary {
		s, err := b.table.Summary(keyOf(key))
		if err != nil {
			b.log.Warn("cannot summarize column", logger.Fields(
				logger.FieldKey, key,
				logger.FieldError, err.Error(),
			))
			continue
		}
		b.app.Summary.TrackColumn(key, s)
	}
}
