// Package udp sends each frame in wire form ("123#00AB") as one UDP
// datagram. It suits socketcand-style gateways and packet capture rigs.
package udp

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rybolov/Can-Hax/errors"
	"github.com/rybolov/Can-Hax/frame"
	"github.com/rybolov/Can-Hax/transport"
)

// DefaultWriteTimeout bounds a single datagram write.
const DefaultWriteTimeout = 2 * time.Second

// Transport writes datagrams to a fixed remote address.
type Transport struct {
	address      string
	writeTimeout time.Duration

	mu   sync.Mutex
	conn net.Conn
}

// New creates a transport for address ("host:port"). No socket is opened
// until Check or Send.
func New(address string) *Transport {
	return &Transport{address: address, writeTimeout: DefaultWriteTimeout}
}

// Factory opens a UDP transport and verifies the address resolves.
func Factory(ctx context.Context, s transport.Settings) (transport.Transport, error) {
	t := New(s.UDPAddress)
	if err := t.Check(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// Name implements transport.Transport.
func (t *Transport) Name() string { return "udp" }

// Check dials the remote address. UDP is connectionless, so this only
// proves the address resolves and a local socket can be bound.
func (t *Transport) Check(ctx context.Context) error {
	if t.address == "" {
		return transport.Unavailable("udp", "Check", fmt.Errorf("no address configured"))
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.dialLocked(ctx); err != nil {
		return transport.Unavailable("udp", "Check", err)
	}
	return nil
}

func (t *Transport) dialLocked(ctx context.Context) (net.Conn, error) {
	if t.conn != nil {
		return t.conn, nil
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", t.address)
	if err != nil {
		return nil, err
	}
	t.conn = conn
	return conn, nil
}

// Send writes the frame as one datagram.
func (t *Transport) Send(ctx context.Context, _ string, f frame.Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	conn, err := t.dialLocked(ctx)
	if err != nil {
		return errors.WrapTransient(err, "udp", "Send", "dial")
	}
	_ = conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	if _, err := conn.Write([]byte(f.String())); err != nil {
		// Drop the socket so the next attempt redials
		_ = conn.Close()
		t.conn = nil
		var ne net.Error
		if stderrors.As(err, &ne) && ne.Timeout() {
			err = fmt.Errorf("%w: %v", errors.ErrConnectionTimeout, err)
		}
		return errors.WrapTransient(err, "udp", "Send", "write datagram")
	}
	return nil
}

// Close closes the socket.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}
