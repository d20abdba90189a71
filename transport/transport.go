// Package transport defines how Can-Hax puts a frame on a bus. Concrete
// transports live in subpackages: cansend (can-utils), natsbus, udp and
// websocket.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"sort"
	"sync"

	"github.com/rybolov/Can-Hax/errors"
	"github.com/rybolov/Can-Hax/frame"
)

// Transport sends frames to a named bus interface. Calls are never made
// concurrently; implementations need not be reentrant.
type Transport interface {
	// Name identifies the transport kind in logs.
	Name() string
	// Check reports whether the transport can be used at all. It fails with
	// an error wrapping errors.ErrTransportUnavailable when it cannot.
	Check(ctx context.Context) error
	// Send places one frame on iface. It returns when the frame has been
	// handed off.
	Send(ctx context.Context, iface string, f frame.Frame) error
	// Close releases any connection held by the transport.
	Close() error
}

// Unavailable wraps cause as a fatal transport-unavailable error.
func Unavailable(component, method string, cause error) error {
	return errors.WrapFatal(fmt.Errorf("%w: %v", errors.ErrTransportUnavailable, cause), component, method, "availability check")
}

// Factory builds a transport from its settings.
type Factory func(ctx context.Context, settings Settings) (Transport, error)

// Settings carries what factories may need; each factory reads only its part.
type Settings struct {
	CansendPath  string
	NATSURL      string
	NATSSubject  string
	RunID        string
	UDPAddress   string
	WebSocketURL string

	// TLS is applied by the nats and websocket transports; nil means defaults.
	TLS *tls.Config
}

// Registry maps transport kinds to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under kind. Registering a kind twice is an error.
func (r *Registry) Register(kind string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[kind]; exists {
		return errors.WrapInvalid(fmt.Errorf("transport %q already registered", kind), "Registry", "Register", "duplicate registration")
	}
	r.factories[kind] = f
	return nil
}

// Open builds the transport registered under kind.
func (r *Registry) Open(ctx context.Context, kind string, settings Settings) (Transport, error) {
	r.mu.RLock()
	f, ok := r.factories[kind]
	r.mu.RUnlock()

	if !ok {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: unknown transport %q (have %v)", errors.ErrInvalidConfig, kind, r.Kinds()),
			"Registry", "Open", "factory lookup")
	}
	return f(ctx, settings)
}

// Kinds lists registered transport kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
