// Package transport defines the capability set a connection keeper consumes
// from an underlying bidirectional message-stream transport.
//
// A Transport is exclusively owned by a single controller and replaced
// wholesale on reconnect, never mutated. Optional capabilities (protocol ping
// frames, abrupt termination) are modeled as narrow interfaces so callers can
// detect them at the boundary and fall back explicitly instead of failing
// silently.
package transport

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"
)

// ReadyState reports the lifecycle state of a transport connection.
// Values match the conventional WebSocket readyState encoding.
type ReadyState int32

const (
	// Connecting means the handshake has not completed yet.
	Connecting ReadyState = iota
	// Open means the connection is established and usable.
	Open
	// Closing means a close has been initiated but not completed.
	Closing
	// Closed means the connection is fully closed.
	Closed
)

// String returns the string representation of a ReadyState
func (s ReadyState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conventional WebSocket close codes used by the connection keeper.
const (
	CloseNormalClosure   = 1000
	CloseGoingAway       = 1001
	CloseAbnormalClosure = 1006
)

// Callbacks receive transport events. They are set once at construction and
// invoked from the transport's read pump, one event at a time. A callback
// that is nil is simply skipped.
type Callbacks struct {
	// OnOpen fires once, after Start, when the connection is usable.
	OnOpen func()
	// OnMessage fires for every inbound data frame.
	OnMessage func(data []byte, binary bool)
	// OnPong fires for protocol-level pong frames, if the transport
	// surfaces them.
	OnPong func(data []byte)
	// OnClose fires exactly once when the connection is closed, locally or
	// remotely, with the close code and reason when known.
	OnClose func(code int, reason string)
	// OnError fires for read or protocol errors that precede a close.
	OnError func(err error)
}

// Config carries the dial parameters recognized by the bundled transports.
// Fields map directly onto the underlying dialer.
type Config struct {
	URL               string
	Subprotocols      []string
	Header            http.Header
	HandshakeTimeout  time.Duration
	TLSClientConfig   *tls.Config
	EnableCompression bool
}

// Transport is the connection object being kept alive.
//
// Start begins event delivery; no callback fires before Start. Send and Close
// report the transport's own errors unchanged. Implementations must be safe
// for concurrent Send/Close/ReadyState calls.
type Transport interface {
	// Start begins the read pump. OnOpen is delivered asynchronously after
	// Start returns.
	Start()
	// Send transmits a single data frame. It fails when the connection is
	// not open.
	Send(data []byte) error
	// Close performs an orderly close with the given code and reason.
	Close(code int, reason string) error
	// ReadyState reports the current connection state.
	ReadyState() ReadyState
}

// Pinger is implemented by transports that can emit protocol-level ping
// frames. Transports without it receive keepalive traffic as ordinary
// messages instead.
type Pinger interface {
	Ping(data []byte) error
}

// Terminator is implemented by transports that can tear the connection down
// abruptly, without a closing handshake.
type Terminator interface {
	Terminate() error
}

// Factory constructs a Transport. The returned transport must be connected
// but dormant: no callback may fire until Start is called, which lets the
// owner install the handle before any event can be observed.
type Factory func(ctx context.Context, cfg Config, cb Callbacks) (Transport, error)
