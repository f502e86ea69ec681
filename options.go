package wskeeper

import (
	"crypto/tls"
	"log/slog"
	"net/http"
	"time"

	"github.com/c360/wskeeper/backoff"
	"github.com/c360/wskeeper/keepalive"
	"github.com/c360/wskeeper/metric"
	"github.com/c360/wskeeper/transport"
)

type options struct {
	factory           transport.Factory
	subprotocols      []string
	header            http.Header
	handshakeTimeout  time.Duration
	tlsConfig         *tls.Config
	enableCompression bool

	automaticOpen bool
	reconnect     *backoff.Config
	timeout       time.Duration
	ping          *keepalive.Config

	logger  *slog.Logger
	metrics *metric.Registry
}

func defaultOptions() options {
	reconnect := backoff.DefaultConfig()
	return options{
		automaticOpen:    true,
		reconnect:        &reconnect,
		handshakeTimeout: 45 * time.Second,
	}
}

// Option configures a Conn
type Option func(*options)

// WithFactory overrides transport construction. The default factory dials a
// gorilla/websocket connection.
func WithFactory(f transport.Factory) Option {
	return func(o *options) { o.factory = f }
}

// WithSubprotocols sets the subprotocols offered during the handshake,
// in preference order.
func WithSubprotocols(protocols ...string) Option {
	return func(o *options) { o.subprotocols = protocols }
}

// WithHeader sets additional HTTP headers sent with the handshake.
func WithHeader(header http.Header) Option {
	return func(o *options) { o.header = header }
}

// WithHandshakeTimeout bounds the opening handshake. Default 45s.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(o *options) { o.handshakeTimeout = d }
}

// WithTLSConfig sets the TLS configuration used by the default transports.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(o *options) { o.tlsConfig = cfg }
}

// WithCompression enables per-message compression negotiation.
func WithCompression() Option {
	return func(o *options) { o.enableCompression = true }
}

// WithAutomaticOpen controls whether New starts the first connect itself.
// Default true.
func WithAutomaticOpen(open bool) Option {
	return func(o *options) { o.automaticOpen = open }
}

// WithReconnect configures the reconnect scheduler. Reconnection is enabled
// by default with backoff.DefaultConfig.
func WithReconnect(cfg backoff.Config) Option {
	return func(o *options) { o.reconnect = &cfg }
}

// WithoutReconnect disables automatic reconnection entirely.
func WithoutReconnect() Option {
	return func(o *options) { o.reconnect = nil }
}

// WithTimeout enables the inactivity watchdog: when no message or pong
// arrives for d, the connection is refreshed. Zero disables. Disabled by
// default.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithKeepalive enables periodic keepalive traffic on open connections.
// Disabled by default. The Mask field is advisory: the bundled WebSocket
// transports are clients and always mask outbound frames per RFC 6455.
func WithKeepalive(cfg keepalive.Config) Option {
	return func(o *options) { o.ping = &cfg }
}

// WithLogger sets the structured logger. Default slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics enables Prometheus instrumentation through the given registry.
// Nil disables instrumentation.
func WithMetrics(registry *metric.Registry) Option {
	return func(o *options) { o.metrics = registry }
}
