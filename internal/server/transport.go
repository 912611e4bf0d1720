// Package server adapts raw TCP sockets and WebSocket connections to the
// single Transport interface the hub and client workers operate on.
package server

import (
	"net"
	"sync"
	"time"

	"github.com/Tyrowin/framerelay/internal/frame"
	"github.com/gorilla/websocket"
)

// Transport is one client connection. ReadPayload is only called by the
// client's worker and WritePayload only by the hub, so neither side locks.
type Transport interface {
	// ReadPayload blocks for the next message and returns it without padding.
	ReadPayload() ([]byte, error)
	// WritePayload delivers one message to the peer.
	WritePayload(payload []byte) error
	// RemoteAddr identifies the connection; it is the registry key.
	RemoteAddr() string
	Close() error
}

// tcpTransport speaks the fixed-size frame protocol over a net.Conn.
type tcpTransport struct {
	conn         net.Conn
	writeTimeout time.Duration
	closeOnce    sync.Once
	closeErr     error
}

func newTCPTransport(conn net.Conn, writeTimeout time.Duration) *tcpTransport {
	return &tcpTransport{conn: conn, writeTimeout: writeTimeout}
}

func (t *tcpTransport) ReadPayload() ([]byte, error) {
	buf, err := frame.Read(t.conn)
	if err != nil {
		return nil, err
	}
	return frame.Unpad(buf), nil
}

func (t *tcpTransport) WritePayload(payload []byte) error {
	if t.writeTimeout > 0 {
		if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
			return err
		}
	}
	return frame.Write(t.conn, payload)
}

func (t *tcpTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}

func (t *tcpTransport) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}

// wsTransport carries one payload per WebSocket text message. Payloads are
// capped at the frame size so both transports accept the same messages.
type wsTransport struct {
	conn         *websocket.Conn
	addr         string
	writeTimeout time.Duration
	closeOnce    sync.Once
	closeErr     error
}

func newWSTransport(conn *websocket.Conn, addr string, writeTimeout time.Duration) *wsTransport {
	conn.SetReadLimit(frame.Size)
	return &wsTransport{conn: conn, addr: addr, writeTimeout: writeTimeout}
}

func (t *wsTransport) ReadPayload() ([]byte, error) {
	_, payload, err := t.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (t *wsTransport) WritePayload(payload []byte) error {
	if t.writeTimeout > 0 {
		if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
			return err
		}
	}
	return t.conn.WriteMessage(websocket.TextMessage, payload)
}

func (t *wsTransport) RemoteAddr() string {
	return t.addr
}

func (t *wsTransport) Close() error {
	t.closeOnce.Do(func() {
		deadline := time.Now().Add(time.Second)
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}
