// Package natsbus publishes frames to NATS subjects for a bridge process
// (or a recorder) that owns the physical bus.
package natsbus

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/rybolov/Can-Hax/errors"
	"github.com/rybolov/Can-Hax/frame"
	"github.com/rybolov/Can-Hax/natsclient"
	"github.com/rybolov/Can-Hax/transport"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "canhax.tx"

// Publisher is the subset of natsclient.Client the transport uses.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Message is the JSON body published per frame.
type Message struct {
	RunID     string `json:"run_id,omitempty"`
	Seq       uint64 `json:"seq"`
	Interface string `json:"interface"`
	ID        string `json:"id"`
	Payload   string `json:"payload"`
	Wire      string `json:"wire"`
}

// Transport publishes frames to "<prefix>.<iface>".
type Transport struct {
	pub    Publisher
	client *natsclient.Client
	owned  bool
	prefix string
	runID  string
	seq    atomic.Uint64
}

// New wraps an existing publisher.
func New(pub Publisher, prefix, runID string) *Transport {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	t := &Transport{pub: pub, prefix: prefix, runID: runID}
	if c, ok := pub.(*natsclient.Client); ok {
		t.client = c
	}
	return t
}

// Factory connects a natsclient.Client and wraps it.
func Factory(ctx context.Context, s transport.Settings) (transport.Transport, error) {
	client, err := natsclient.NewClient(s.NATSURL, natsclient.WithTLSConfig(s.TLS))
	if err != nil {
		return nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, transport.Unavailable("natsbus", "Factory", err)
	}
	t := New(client, s.NATSSubject, s.RunID)
	t.owned = true
	return t, nil
}

// Subject returns the subject frames for iface are published on.
func (t *Transport) Subject(iface string) string {
	return t.prefix + "." + iface
}

// Name implements transport.Transport.
func (t *Transport) Name() string { return "nats" }

// Check fails when the underlying client is not connected.
func (t *Transport) Check(_ context.Context) error {
	if t.pub == nil {
		return transport.Unavailable("natsbus", "Check", errors.ErrNoConnection)
	}
	if t.client != nil && !t.client.IsHealthy() {
		return transport.Unavailable("natsbus", "Check", natsclient.ErrNotConnected)
	}
	return nil
}

// Send publishes one frame.
func (t *Transport) Send(ctx context.Context, iface string, f frame.Frame) error {
	data, err := json.Marshal(Message{
		RunID:     t.runID,
		Seq:       t.seq.Add(1),
		Interface: iface,
		ID:        f.Identifier,
		Payload:   f.Payload,
		Wire:      f.String(),
	})
	if err != nil {
		return errors.WrapFatal(err, "natsbus", "Send", "encode frame")
	}
	return t.pub.Publish(ctx, t.Subject(iface), data)
}

// Close closes the client if the transport created it.
func (t *Transport) Close() error {
	if !t.owned || t.client == nil {
		return nil
	}
	return t.client.Close(context.Background())
}
