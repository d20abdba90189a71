package testutil

import (
	"context"
	"sync"

	"github.com/rybolov/Can-Hax/frame"
)

// SentFrame is one recorded Send call.
type SentFrame struct {
	Interface string
	Frame     frame.Frame
}

// RecordingTransport records frames instead of sending them.
// Thread-safe for concurrent use from multiple goroutines.
type RecordingTransport struct {
	mu sync.Mutex

	// CheckErr is returned by Check.
	CheckErr error
	// SendFunc, when set, runs before a frame is recorded; a non-nil error
	// is returned and the frame is not recorded.
	SendFunc func(ctx context.Context, iface string, f frame.Frame) error

	sent       []SentFrame
	sendCalls  int
	checkCalls int
	closed     bool
}

// NewRecordingTransport creates an available, empty recorder.
func NewRecordingTransport() *RecordingTransport {
	return &RecordingTransport{}
}

// Name implements transport.Transport.
func (r *RecordingTransport) Name() string { return "recording" }

// Check implements transport.Transport.
func (r *RecordingTransport) Check(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkCalls++
	return r.CheckErr
}

// Send implements transport.Transport.
func (r *RecordingTransport) Send(ctx context.Context, iface string, f frame.Frame) error {
	r.mu.Lock()
	r.sendCalls++
	fn := r.SendFunc
	r.mu.Unlock()

	if fn != nil {
		if err := fn(ctx, iface, f); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, SentFrame{Interface: iface, Frame: f})
	return nil
}

// Close implements transport.Transport.
func (r *RecordingTransport) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Sent returns a copy of the recorded frames in send order.
func (r *RecordingTransport) Sent() []SentFrame {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SentFrame, len(r.sent))
	copy(out, r.sent)
	return out
}

// Wire returns the recorded frames in wire form.
func (r *RecordingTransport) Wire() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.sent))
	for i, s := range r.sent {
		out[i] = s.Frame.String()
	}
	return out
}

// SendCalls returns how many times Send was called, failed calls included.
func (r *RecordingTransport) SendCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sendCalls
}

// CheckCalls returns how many times Check was called.
func (r *RecordingTransport) CheckCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.checkCalls
}

// IsClosed returns whether Close was called.
func (r *RecordingTransport) IsClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
