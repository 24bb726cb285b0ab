package source

import (
	"bufio"
	"context"
	"io"
	"time"

	"github.com/kbukum/pipecat/errors"
	"github.com/kbukum/pipecat/logger"
	"github.com/kbukum/pipecat/pipeline"
	"github.com/kbukum/pipecat/record"
	"github.com/kbukum/pipecat/resilience"
)

// LineKey is the field line-oriented sources store each line under.
const LineKey record.Key = "string"

// Readline yields one record per line of r, with the line (without its
// terminator) under LineKey. The reader is consumed, so the pipeline can
// only be iterated once.
func Readline(r io.Reader) *pipeline.Pipeline[*record.Record] {
	return pipeline.FromFunc(func(ctx context.Context) pipeline.Iterator[*record.Record] {
		lines := bufio.NewScanner(r)
		return pipeline.Generate(func(context.Context) (*record.Record, bool, error) {
			if !lines.Scan() {
				return nil, false, lines.Err()
			}
			return record.Of(LineKey, lines.Text()), true, nil
		}).Iter(ctx)
	})
}

// Opener opens a line-oriented device such as a serial port.
type Opener func(ctx context.Context) (io.ReadCloser, error)

// Serial reliably reads lines from a device. Whenever the device fails or
// reaches end of input it is closed, the failure is logged and open is
// retried with the configured backoff, so the stream only ends when the
// context does or when retries are exhausted.
//
// A read blocked on the device is interrupted by closing it when the
// context ends.
func Serial(open Opener, opts ...Option) *pipeline.Pipeline[*record.Record] {
	o := newOptions("serial", opts)
	retry := o.retry
	if retry.OnRetry == nil {
		retry.OnRetry = func(attempt int, err error, backoff time.Duration) {
			o.log.Warn("device open failed, retrying", logger.Fields(
				"attempt", attempt,
				logger.FieldError, err.Error(),
				"backoff", backoff.String(),
			))
		}
	}
	return pipeline.FromFunc(func(context.Context) pipeline.Iterator[*record.Record] {
		return &serialIter{open: open, retry: retry, log: o.log}
	})
}

type serialIter struct {
	open  Opener
	retry resilience.RetryConfig
	log   *logger.Logger

	port  io.ReadCloser
	lines *bufio.Scanner
	stop  func() bool
}

func (it *serialIter) Next(ctx context.Context) (*record.Record, bool, error) {
	for {
		if it.lines == nil {
			port, err := resilience.Retry(ctx, it.retry, func(ctx context.Context) (io.ReadCloser, error) {
				return it.open(ctx)
			})
			if err != nil {
				if ctx.Err() != nil {
					return nil, false, ctx.Err()
				}
				return nil, false, errors.ConnectionFailed("serial device", err)
			}
			it.port = port
			it.lines = bufio.NewScanner(port)
			it.stop = context.AfterFunc(ctx, func() { _ = port.Close() })
		}

		if it.lines.Scan() {
			return record.Of(LineKey, it.lines.Text()), true, nil
		}
		err := it.lines.Err()
		if err == nil {
			err = io.EOF
		}
		it.release()
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		it.log.Error("device read failed", logger.Fields(logger.FieldError, err.Error()))
		if err := resilience.Sleep(ctx, it.retry.InitialBackoff); err != nil {
			return nil, false, err
		}
	}
}

func (it *serialIter) release() {
	if it.port == nil {
		return
	}
	it.stop()
	_ = it.port.Close()
	it.port, it.lines, it.stop = nil, nil, nil
}

func (it *serialIter) Close() error {
	it.release()
	return nil
}
