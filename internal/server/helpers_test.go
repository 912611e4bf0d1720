package server_test

import (
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/Tyrowin/framerelay/internal/frame"
	"github.com/Tyrowin/framerelay/internal/server"
	"github.com/stretchr/testify/require"
)

const (
	testOriginURL = "http://localhost:8080"
	readTimeout   = 2 * time.Second
	quietPeriod   = 300 * time.Millisecond
)

// startRelay starts a relay on a loopback ephemeral port with HTTP disabled
// unless mutate turns it on.
func startRelay(t *testing.T, mutate func(*server.Config)) *server.Server {
	t.Helper()

	cfg := server.NewConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.HTTPAddr = ""
	cfg.AllowedOrigins = []string{testOriginURL}
	if mutate != nil {
		mutate(cfg)
	}

	srv, err := server.New(cfg)
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	t.Cleanup(func() {
		_ = srv.Shutdown(2 * time.Second)
	})
	return srv
}

// dial opens a raw TCP connection to the relay.
func dial(t *testing.T, srv *server.Server) net.Conn {
	t.Helper()

	conn, err := net.DialTimeout("tcp", srv.Addr().String(), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// connectClients dials n clients one at a time, waiting for each to be
// registered and serviced so that client i is known as "i".
func connectClients(t *testing.T, srv *server.Server, n int) []net.Conn {
	t.Helper()

	conns := make([]net.Conn, n)
	for i := 0; i < n; i++ {
		conns[i] = dial(t, srv)
		want := i + 1
		waitForStats(t, srv.Hub(), func(s server.Stats) bool {
			return s.Clients == want && s.ActiveWorkers == want
		})
	}
	return conns
}

func waitForStats(t *testing.T, hub *server.Hub, cond func(server.Stats) bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		return cond(hub.Stats())
	}, readTimeout, 10*time.Millisecond, "last stats: %+v", hub.Stats())
}

func send(t *testing.T, conn net.Conn, text string) {
	t.Helper()
	require.NoError(t, frame.Write(conn, []byte(text)))
}

// readLine reads one frame and returns its decoded payload.
func readLine(t *testing.T, conn net.Conn) string {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))
	buf, err := frame.Read(conn)
	require.NoError(t, err, "expected a frame")
	return string(frame.Decode(buf))
}

// expectNoLine asserts that nothing arrives on conn for a short while.
func expectNoLine(t *testing.T, conn net.Conn) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(quietPeriod)))
	buf, err := frame.Read(conn)
	if err == nil {
		t.Fatalf("expected no message, got %q", frame.Decode(buf))
	}
	var netErr net.Error
	require.True(t, errors.As(err, &netErr) && netErr.Timeout(), "expected timeout, got %v", err)
}

// expectClosed asserts that the relay closed conn.
func expectClosed(t *testing.T, conn net.Conn) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))
	_, err := frame.Read(conn)
	require.Error(t, err)
	var netErr net.Error
	require.False(t, errors.As(err, &netErr) && netErr.Timeout(), "connection still open")
}

// fakeTransport is an in-memory Transport for driving the hub directly.
type fakeTransport struct {
	addr       string
	in         chan []byte
	out        chan string
	failWrites bool
	closed     chan struct{}
	closeOnce  sync.Once
}

func newFakeTransport(addr string) *fakeTransport {
	return &fakeTransport{
		addr:   addr,
		in:     make(chan []byte, 16),
		out:    make(chan string, 64),
		closed: make(chan struct{}),
	}
}

func (f *fakeTransport) ReadPayload() ([]byte, error) {
	select {
	case payload := <-f.in:
		return payload, nil
	case <-f.closed:
		return nil, io.EOF
	}
}

func (f *fakeTransport) WritePayload(payload []byte) error {
	if f.failWrites {
		return errors.New("write: connection refused")
	}
	select {
	case <-f.closed:
		return net.ErrClosed
	default:
	}
	f.out <- string(payload)
	return nil
}

func (f *fakeTransport) RemoteAddr() string {
	return f.addr
}

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

// next returns the next payload written to the fake.
func (f *fakeTransport) next(t *testing.T) string {
	t.Helper()
	select {
	case line := <-f.out:
		return line
	case <-time.After(readTimeout):
		t.Fatalf("no message delivered to %s", f.addr)
		return ""
	}
}

// quiet asserts nothing else was written to the fake.
func (f *fakeTransport) quiet(t *testing.T) {
	t.Helper()
	select {
	case line := <-f.out:
		t.Fatalf("unexpected message to %s: %q", f.addr, line)
	case <-time.After(quietPeriod):
	}
}
