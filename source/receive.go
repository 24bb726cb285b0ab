package source

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/pipecat/errors"
	"github.com/kbukum/pipecat/logger"
	"github.com/kbukum/pipecat/pipeline"
	"github.com/kbukum/pipecat/record"
)

// Fields written by the HTTP receiver.
const (
	ClientKey  record.Key = "client"
	MethodKey  record.Key = "method"
	PathKey    record.Key = "path"
	VersionKey record.Key = "version"
)

// ReceiveConfig selects which parts of a request become record fields.
type ReceiveConfig struct {
	Body    bool `mapstructure:"body"`
	Client  bool `mapstructure:"client"`
	Method  bool `mapstructure:"method"`
	Path    bool `mapstructure:"path"`
	Version bool `mapstructure:"version"`
	// MaxBodySize caps the bytes read from a request body. Zero means
	// DefaultMaxBodySize.
	MaxBodySize int64 `mapstructure:"max_body_size" validate:"gte=0"`
}

// DefaultMaxBodySize limits request bodies read by the receiver.
const DefaultMaxBodySize = 1 << 20

// DefaultReceiveConfig records only the request body.
func DefaultReceiveConfig() ReceiveConfig {
	return ReceiveConfig{Body: true}
}

// Receiver is an HTTP server that turns every GET, PUT, POST or DELETE
// request into a record. Requests are answered with 200 once their record
// is queued; records wait in an unbounded queue until consumed.
type Receiver struct {
	cfg    ReceiveConfig
	engine *gin.Engine
	queue  *pipeline.Queue[*record.Record]
	log    *logger.Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	closed   bool
}

// NewReceiver creates a receiver. Call Start to listen on an address, or
// mount Handler on an existing server.
func NewReceiver(cfg ReceiveConfig, opts ...Option) *Receiver {
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	o := newOptions("http_receive", opts)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	r := &Receiver{
		cfg:    cfg,
		engine: engine,
		queue:  pipeline.NewQueue[*record.Record](0),
		log:    o.log,
	}
	engine.Use(gin.Recovery(), r.requestLogger())
	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete} {
		engine.Handle(method, "/*path", r.handle)
	}
	return r
}

// Handler returns the receiver's HTTP handler.
func (r *Receiver) Handler() http.Handler {
	return r.engine
}

// Records returns the stream of received requests. It ends after Stop.
// Only one consumer may iterate it.
func (r *Receiver) Records() *pipeline.Pipeline[*record.Record] {
	return pipeline.From(pipeline.Receive(r.queue))
}

// Start binds addr and serves in the background. It returns once the
// listener is bound so the caller knows the port is ready.
func (r *Receiver) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.ConnectionFailed(addr, err)
	}

	r.mu.Lock()
	r.listener = listener
	r.server = &http.Server{
		Handler:           r.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := r.server
	r.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			r.log.Error("server error", logger.Fields(logger.FieldError, err.Error()))
			_ = r.queue.Push(context.Background(), pipeline.Failure[*record.Record](errors.SourceFailed("http receiver", err)))
		}
	}()

	r.log.Info("receiver started", logger.Fields("addr", listener.Addr().String()))
	return nil
}

// Addr returns the bound address, or "" before Start.
func (r *Receiver) Addr() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener == nil {
		return ""
	}
	return r.listener.Addr().String()
}

// Stop shuts the server down with a five second deadline and ends the
// record stream. Requests arriving afterwards are refused. Safe to call
// more than once.
func (r *Receiver) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	server := r.server
	r.mu.Unlock()

	var err error
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err = server.Shutdown(shutdownCtx); err != nil {
			err = fmt.Errorf("receiver shutdown: %w", err)
		}
	}
	_ = r.queue.Push(context.Background(), pipeline.EndOfStream[*record.Record]())
	return err
}

func (r *Receiver) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Receiver) handle(c *gin.Context) {
	if r.isClosed() {
		c.JSON(errors.Respond(errors.ErrStreamClosed))
		return
	}

	rec := record.New()
	if r.cfg.Body {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, r.cfg.MaxBodySize))
		if err != nil {
			c.JSON(errors.Respond(errors.InvalidInput("body", err.Error())))
			return
		}
		rec.Set(BodyKey, string(body))
	}
	if r.cfg.Client {
		rec.Set(ClientKey, c.Request.RemoteAddr)
	}
	if r.cfg.Method {
		rec.Set(MethodKey, c.Request.Method)
	}
	if r.cfg.Path {
		rec.Set(PathKey, c.Request.URL.RequestURI())
	}
	if r.cfg.Version {
		rec.Set(VersionKey, c.Request.Proto)
	}

	if err := r.queue.Push(c.Request.Context(), pipeline.ValueOf(rec)); err != nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	c.Status(http.StatusOK)
}

// requestLogger logs every request at debug level, or at warn and error
// for 4xx and 5xx responses.
func (r *Receiver) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := logger.Fields(
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			logger.FieldDuration, time.Since(start).Milliseconds(),
			"client", c.ClientIP(),
		)
		switch {
		case status >= 500:
			r.log.Error("request completed", fields)
		case status >= 400:
			r.log.Warn("request completed", fields)
		default:
			r.log.Debug("request completed", fields)
		}
	}
}

// HTTPReceive starts a Receiver on addr when iterated and yields a record
// per request. Closing the iterator stops the server.
func HTTPReceive(addr string, cfg ReceiveConfig, opts ...Option) *pipeline.Pipeline[*record.Record] {
	return pipeline.FromFunc(func(ctx context.Context) pipeline.Iterator[*record.Record] {
		r := NewReceiver(cfg, opts...)
		if err := r.Start(addr); err != nil {
			return &failedIter{err: err}
		}
		return &receiverIter{Iterator: r.Records().Iter(ctx), receiver: r}
	})
}

type receiverIter struct {
	pipeline.Iterator[*record.Record]
	receiver *Receiver
}

func (it *receiverIter) Close() error {
	return it.receiver.Stop(context.Background())
}
