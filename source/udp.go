package source

import (
	"context"
	stderrors "errors"
	"net"

	"github.com/kbukum/pipecat/errors"
	"github.com/kbukum/pipecat/pipeline"
	"github.com/kbukum/pipecat/record"
)

// DefaultDatagramSize is the read buffer used when no size is given.
const DefaultDatagramSize = 65535

// AddressKey is the field UDP stores the sender's address under.
const AddressKey record.Key = "address"

// UDP listens on addr and yields one record per datagram, with the payload
// under LineKey and the sender under AddressKey. Datagrams longer than
// maxSize are truncated.
func UDP(addr string, maxSize int) *pipeline.Pipeline[*record.Record] {
	return pipeline.FromFunc(func(ctx context.Context) pipeline.Iterator[*record.Record] {
		conn, err := net.ListenPacket("udp", addr)
		if err != nil {
			return &failedIter{err: errors.ConnectionFailed(addr, err)}
		}
		return newPacketIter(ctx, conn, maxSize)
	})
}

// FromPacketConn is UDP over a connection the caller already opened. The
// connection is closed with the iterator, so the pipeline can only be
// iterated once.
func FromPacketConn(conn net.PacketConn, maxSize int) *pipeline.Pipeline[*record.Record] {
	return pipeline.FromFunc(func(ctx context.Context) pipeline.Iterator[*record.Record] {
		return newPacketIter(ctx, conn, maxSize)
	})
}

type packetIter struct {
	conn net.PacketConn
	buf  []byte
	stop func() bool
}

func newPacketIter(ctx context.Context, conn net.PacketConn, maxSize int) *packetIter {
	if maxSize <= 0 {
		maxSize = DefaultDatagramSize
	}
	return &packetIter{
		conn: conn,
		buf:  make([]byte, maxSize),
		// ReadFrom ignores contexts; closing the socket unblocks it.
		stop: context.AfterFunc(ctx, func() { _ = conn.Close() }),
	}
}

func (it *packetIter) Next(ctx context.Context) (*record.Record, bool, error) {
	n, from, err := it.conn.ReadFrom(it.buf)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, false, errors.SourceFailed("udp", err)
	}
	return record.Of(
		LineKey, string(it.buf[:n]),
		AddressKey, from.String(),
	), true, nil
}

func (it *packetIter) Close() error {
	it.stop()
	if err := it.conn.Close(); err != nil && !isClosed(err) {
		return err
	}
	return nil
}

func isClosed(err error) bool {
	return stderrors.Is(err, net.ErrClosed)
}
