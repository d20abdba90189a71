// Package websocket streams frames in wire form as text messages over a
// single client connection, for browser dashboards and remote bus bridges.
package websocket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rybolov/Can-Hax/errors"
	"github.com/rybolov/Can-Hax/frame"
	"github.com/rybolov/Can-Hax/transport"
)

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
)

// Transport holds one client connection to url.
type Transport struct {
	url    string
	dialer *websocket.Dialer

	// Lock to prevent concurrent writes; gorilla/websocket panics on them
	mu   sync.Mutex
	conn *websocket.Conn
}

// New creates a transport for a ws:// or wss:// url.
func New(url string) *Transport {
	return &Transport{
		url:    url,
		dialer: &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
	}
}

// Factory connects to the configured url.
func Factory(ctx context.Context, s transport.Settings) (transport.Transport, error) {
	t := New(s.WebSocketURL)
	t.dialer.TLSClientConfig = s.TLS
	if err := t.Check(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// Name implements transport.Transport.
func (t *Transport) Name() string { return "websocket" }

// Check connects if not already connected.
func (t *Transport) Check(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.connectLocked(ctx); err != nil {
		return transport.Unavailable("websocket", "Check", err)
	}
	return nil
}

func (t *Transport) connectLocked(ctx context.Context) (*websocket.Conn, error) {
	if t.conn != nil {
		return t.conn, nil
	}
	conn, resp, err := t.dialer.DialContext(ctx, t.url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	t.conn = conn
	return conn, nil
}

// Send writes the frame as one text message, reconnecting first if a
// previous write failed.
func (t *Transport) Send(ctx context.Context, _ string, f frame.Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	conn, err := t.connectLocked(ctx)
	if err != nil {
		return errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrNoConnection, err), "websocket", "Send", "connect")
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, []byte(f.String())); err != nil {
		_ = conn.Close()
		t.conn = nil
		return errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrConnectionLost, err), "websocket", "Send", "write message")
	}
	return nil
}

// Close sends a close frame and closes the connection.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")
	_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	err := t.conn.Close()
	t.conn = nil
	return err
}
