package source

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	apperrors "github.com/kbukum/pipecat/errors"
	"github.com/kbukum/pipecat/pipeline"
	"github.com/kbukum/pipecat/record"
	"github.com/kbukum/pipecat/resilience"
)

func lines(t *testing.T, rs []*record.Record) []string {
	t.Helper()
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		v, ok := r.Get(LineKey)
		require.True(t, ok)
		out = append(out, v.(string))
	}
	return out
}

func TestMetronome(t *testing.T) {
	start := time.Now()
	out, err := pipeline.Collect(context.Background(), pipeline.Count(Metronome(20*time.Millisecond), 4))
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Len(t, out, 4)
	for _, r := range out {
		assert.Equal(t, 0, r.Len())
	}
	// First tick is immediate, then three intervals.
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestMetronome_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	out, err := pipeline.Collect(ctx, Metronome(time.Hour))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, out, 1)
}

func TestReadline(t *testing.T) {
	out, err := pipeline.Collect(context.Background(), Readline(strings.NewReader("$GPGGA,1\n$GPRMC,2\r\nlast")))
	require.NoError(t, err)
	assert.Equal(t, []string{"$GPGGA,1", "$GPRMC,2", "last"}, lines(t, out))
}

type fakePort struct {
	io.Reader
	closed atomic.Bool
}

func (p *fakePort) Close() error {
	p.closed.Store(true)
	return nil
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
}

func TestSerial_ReopensAfterFailure(t *testing.T) {
	payloads := []string{"a\nb\n", "c\n"}
	var opens atomic.Int32
	var ports []*fakePort

	open := func(context.Context) (io.ReadCloser, error) {
		n := int(opens.Add(1))
		switch {
		case n == 2:
			return nil, errors.New("device busy")
		case n == 1:
			p := &fakePort{Reader: strings.NewReader(payloads[0])}
			ports = append(ports, p)
			return p, nil
		default:
			p := &fakePort{Reader: strings.NewReader(payloads[1])}
			ports = append(ports, p)
			return p, nil
		}
	}

	out, err := pipeline.Collect(context.Background(), pipeline.Count(Serial(open, WithRetry(fastRetry())), 3))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, lines(t, out))
	assert.Equal(t, int32(3), opens.Load())
	for _, p := range ports {
		assert.True(t, p.closed.Load(), "every opened port is closed")
	}
}

func TestSerial_GivesUp(t *testing.T) {
	cfg := fastRetry()
	cfg.MaxAttempts = 2
	open := func(context.Context) (io.ReadCloser, error) {
		return nil, errors.New("no such device")
	}

	_, err := pipeline.Collect(context.Background(), Serial(open, WithRetry(cfg)))
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, apperrors.ErrCodeConnectionFailed, appErr.Code)
	assert.ErrorIs(t, err, resilience.ErrMaxRetriesExceeded)
}

func TestSerial_CancelInterruptsRead(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	open := func(context.Context) (io.ReadCloser, error) { return pr, nil }

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := pipeline.Collect(ctx, Serial(open, WithRetry(fastRetry())))
		done <- err
	}()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("blocked read was not interrupted")
	}
}

func TestPortConfig_Mode(t *testing.T) {
	tests := []struct {
		name    string
		cfg     PortConfig
		want    serial.Mode
		wantErr bool
	}{
		{
			name: "defaults",
			want: serial.Mode{BaudRate: 9600, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit},
		},
		{
			name: "charger line",
			cfg:  PortConfig{BaudRate: 115200, DataBits: 7, Parity: "even", StopBits: "2"},
			want: serial.Mode{BaudRate: 115200, DataBits: 7, Parity: serial.EvenParity, StopBits: serial.TwoStopBits},
		},
		{
			name: "one and a half stop bits",
			cfg:  PortConfig{BaudRate: 4800, Parity: "odd", StopBits: "1.5"},
			want: serial.Mode{BaudRate: 4800, DataBits: 8, Parity: serial.OddParity, StopBits: serial.OnePointFiveStopBits},
		},
		{name: "bad parity", cfg: PortConfig{Parity: "sometimes"}, wantErr: true},
		{name: "bad stop bits", cfg: PortConfig{StopBits: "3"}, wantErr: true},
		{name: "negative baud", cfg: PortConfig{BaudRate: -1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mode, err := tt.cfg.Mode()
			if tt.wantErr {
				appErr, ok := apperrors.AsAppError(err)
				require.True(t, ok, "got %v", err)
				assert.Equal(t, apperrors.ErrCodeInvalidInput, appErr.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, *mode)
		})
	}
}

func TestOpenPort(t *testing.T) {
	var gotDevice string
	var gotMode *serial.Mode
	prev := openSerial
	openSerial = func(device string, mode *serial.Mode) (io.ReadCloser, error) {
		gotDevice, gotMode = device, mode
		return &fakePort{Reader: strings.NewReader("$GPTXT,01,01,02,ANTSTATUS=OK*3B\r\n")}, nil
	}
	t.Cleanup(func() { openSerial = prev })

	open, err := OpenPort(PortConfig{Device: "/dev/ttyUSB0", BaudRate: 4800})
	require.NoError(t, err)

	out, err := pipeline.Collect(context.Background(), pipeline.Count(Serial(open, WithRetry(fastRetry())), 1))
	require.NoError(t, err)
	assert.Equal(t, []string{"$GPTXT,01,01,02,ANTSTATUS=OK*3B"}, lines(t, out))
	assert.Equal(t, "/dev/ttyUSB0", gotDevice)
	require.NotNil(t, gotMode)
	assert.Equal(t, 4800, gotMode.BaudRate)
	assert.Equal(t, serial.NoParity, gotMode.Parity)
}

func TestOpenPort_RejectsBadLine(t *testing.T) {
	_, err := OpenPort(PortConfig{Device: "/dev/ttyUSB0", Parity: "maybe"})
	assert.Error(t, err)
}

func TestUDP(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx := context.Background()
	iter := FromPacketConn(conn, 0).Iter(ctx)
	defer iter.Close()

	sender, err := net.Dial("udp", conn.LocalAddr().String())
	require.NoError(t, err)
	defer sender.Close()
	_, err = sender.Write([]byte(`{"mode":"charge"}`))
	require.NoError(t, err)

	r, ok, err := iter.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	payload, _ := r.Get(LineKey)
	assert.Equal(t, `{"mode":"charge"}`, payload)
	from, _ := r.Get(AddressKey)
	assert.Equal(t, sender.LocalAddr().String(), from)
}

func TestUDP_Truncates(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx := context.Background()
	iter := FromPacketConn(conn, 4).Iter(ctx)
	defer iter.Close()

	sender, err := net.Dial("udp", conn.LocalAddr().String())
	require.NoError(t, err)
	defer sender.Close()
	_, _ = sender.Write([]byte("abcdefgh"))

	r, ok, err := iter.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	payload, _ := r.Get(LineKey)
	assert.Equal(t, "abcd", payload)
}

func TestUDP_CancelUnblocks(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := pipeline.Collect(ctx, UDP("127.0.0.1:0", 0))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUDP_BadAddress(t *testing.T) {
	_, err := pipeline.Collect(context.Background(), UDP("not-an-address", 0))
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, apperrors.ErrCodeConnectionFailed, appErr.Code)
}

func TestHTTPGet(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "secret", r.Header.Get("X-Token"))
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("X-Station", "KABQ")
		_, _ = w.Write([]byte(`{"temp":21}`))
	}))
	defer srv.Close()

	p := HTTPGet(srv.URL, 10*time.Millisecond, WithHeader("X-Token", "secret"), WithClient(resty.New()))
	out, err := pipeline.Collect(context.Background(), pipeline.Count(p, 2))
	require.NoError(t, err)
	require.Len(t, out, 2)

	r := out[0]
	status, _ := r.Get(StatusKey)
	assert.Equal(t, http.StatusOK, status)
	enc, _ := r.Get(EncodingKey)
	assert.Equal(t, "utf-8", enc)
	body, _ := r.Get(BodyKey)
	assert.Equal(t, `{"temp":21}`, body)
	station, ok := r.Get(record.Path("header", "X-Station"))
	assert.True(t, ok)
	assert.Equal(t, "KABQ", station)
	assert.Equal(t, int32(2), hits.Load())
}

func TestHTTPGet_LogsAndRetriesFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			// Drop the connection to make the first request fail.
			hj, _ := w.(http.Hijacker)
			conn, _, _ := hj.Hijack()
			_ = conn.Close()
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := resty.New().SetRetryCount(0)
	out, err := pipeline.Collect(context.Background(), pipeline.Count(HTTPGet(srv.URL, 5*time.Millisecond, WithClient(client)), 1))
	require.NoError(t, err)
	require.Len(t, out, 1)
	body, _ := out[0].Get(BodyKey)
	assert.Equal(t, "ok", body)
}

func TestReceiver(t *testing.T) {
	cfg := ReceiveConfig{Body: true, Method: true, Path: true, Version: true, Client: true}
	recv := NewReceiver(cfg)
	srv := httptest.NewServer(recv.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/battery?id=7", "application/json", strings.NewReader(`{"v":12.6}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, recv.Stop(context.Background()))

	out, err := pipeline.Collect(context.Background(), recv.Records())
	require.NoError(t, err)
	require.Len(t, out, 1)

	r := out[0]
	body, _ := r.Get(BodyKey)
	assert.Equal(t, `{"v":12.6}`, body)
	method, _ := r.Get(MethodKey)
	assert.Equal(t, http.MethodPost, method)
	path, _ := r.Get(PathKey)
	assert.Equal(t, "/battery?id=7", path)
	version, _ := r.Get(VersionKey)
	assert.Equal(t, "HTTP/1.1", version)
	assert.True(t, r.Has(ClientKey))
}

func TestReceiver_RefusesAfterStop(t *testing.T) {
	recv := NewReceiver(DefaultReceiveConfig())
	srv := httptest.NewServer(recv.Handler())
	defer srv.Close()

	require.NoError(t, recv.Stop(context.Background()))
	require.NoError(t, recv.Stop(context.Background()))

	resp, err := http.Get(srv.URL + "/late")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusGone, resp.StatusCode)
}

func TestReceiver_StartAndStop(t *testing.T) {
	recv := NewReceiver(DefaultReceiveConfig())
	require.NoError(t, recv.Start("127.0.0.1:0"))
	addr := recv.Addr()
	require.NotEmpty(t, addr)

	ctx := context.Background()
	iter := recv.Records().Iter(ctx)
	defer iter.Close()

	resp, err := http.Post("http://"+addr+"/", "text/plain", strings.NewReader("hello"))
	require.NoError(t, err)
	resp.Body.Close()

	r, ok, err := iter.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	body, _ := r.Get(BodyKey)
	assert.Equal(t, "hello", body)

	require.NoError(t, recv.Stop(ctx))
	_, ok, err = iter.Next(ctx)
	assert.NoError(t, err)
	assert.False(t, ok, "stream ends after Stop")
}

func TestHTTPReceive_BadAddress(t *testing.T) {
	_, err := pipeline.Collect(context.Background(), HTTPReceive("not-an-address", DefaultReceiveConfig()))
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, apperrors.ErrCodeConnectionFailed, appErr.Code)
}
