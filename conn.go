package wskeeper

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/c360/wskeeper/backoff"
	"github.com/c360/wskeeper/errors"
	"github.com/c360/wskeeper/keepalive"
	"github.com/c360/wskeeper/listener"
	"github.com/c360/wskeeper/transport"
	"github.com/c360/wskeeper/transport/gorillaws"
	"github.com/c360/wskeeper/watchdog"
)

// Conn keeps a logical connection alive across transport failures. It owns
// exactly one transport handle (or none) at a time, replaces it wholesale on
// reconnect, and dispatches every event through a listener registry whose
// lifetime is independent of any handle.
//
// All lifecycle callbacks are funneled through a single mutex; user handlers
// are always invoked outside it, so they may call back into the Conn freely.
type Conn struct {
	id  string
	url string
	opt options

	registry  *listener.Registry[Event]
	reconnect *backoff.Scheduler   // nil when reconnection is disabled
	keepalive *keepalive.Scheduler // nil when keepalive is disabled
	watchdog  *watchdog.Watchdog   // nil when the watchdog is disabled

	mu            sync.Mutex
	handle        transport.Transport
	dialGen       uint64
	dialing       bool
	everConnected bool
	closed        bool

	logger  *slog.Logger
	metrics *connMetrics
}

// New creates a connection keeper for url. Unless WithAutomaticOpen(false)
// is given, the first connect starts immediately.
func New(url string, opts ...Option) (*Conn, error) {
	if url == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Conn", "New", "validate url")
	}

	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.factory == nil {
		o.factory = gorillaws.Factory
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	c := &Conn{
		id:       uuid.NewString(),
		url:      url,
		opt:      o,
		registry: listener.NewRegistry[Event](),
	}
	c.logger = o.logger.With("conn_id", c.id)

	metrics, err := newConnMetrics(o.metrics, c.id)
	if err != nil {
		return nil, err
	}
	c.metrics = metrics
	c.metrics.setState(int32(transport.Closed))

	if o.reconnect != nil {
		c.reconnect = backoff.New(*o.reconnect, c.reconnectNow,
			backoff.WithDelayHook(c.reconnectDelayed),
			backoff.WithConnectingHook(c.reconnectStarting),
		)
	}
	if o.ping != nil {
		c.keepalive = keepalive.New(*o.ping, c.keepaliveTick)
	}
	if o.timeout > 0 {
		c.watchdog = watchdog.New(o.timeout, c.watchdogExpired)
	}

	if o.automaticOpen {
		c.Connect(context.Background())
	}
	return c, nil
}

// ID returns the unique identifier carried in this connection's log fields
// and metric labels.
func (c *Conn) ID() string { return c.id }

// URL returns the address the keeper connects to.
func (c *Conn) URL() string { return c.url }

// ReadyState mirrors the current handle's state. With no handle it reports
// Connecting while a dial or a reconnect attempt is pending, Closed
// otherwise.
func (c *Conn) ReadyState() transport.ReadyState {
	c.mu.Lock()
	h := c.handle
	dialing := c.dialing
	c.mu.Unlock()

	if h != nil {
		return h.ReadyState()
	}
	if dialing || (c.reconnect != nil && c.reconnect.Pending()) {
		return transport.Connecting
	}
	return transport.Closed
}

// Connect establishes a transport connection. It is a no-op when the current
// handle is already open. A previous Close or Terminate is undone: the
// reconnect scheduler is re-enabled from a clean state.
//
// Construction is asynchronous; completion is observable through the open
// event (or an error event followed by a scheduled retry).
func (c *Conn) Connect(ctx context.Context) {
	c.mu.Lock()
	if c.handle != nil && c.handle.ReadyState() == transport.Open {
		c.mu.Unlock()
		return
	}
	c.closed = false
	c.mu.Unlock()

	if c.reconnect != nil && c.reconnect.Stopped() {
		c.reconnect.Reset()
	}
	c.startDial(ctx)
}

// reconnectNow is the scheduler's connect callback.
func (c *Conn) reconnectNow() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.startDial(context.Background())
}

// startDial discards the current handle, quiesces the timers, and kicks off
// an asynchronous transport construction.
func (c *Conn) startDial(ctx context.Context) {
	c.mu.Lock()
	c.dialGen++
	gen := c.dialGen
	old := c.handle
	c.handle = nil
	c.dialing = true
	c.mu.Unlock()

	if c.keepalive != nil {
		c.keepalive.Stop()
	}
	if c.watchdog != nil {
		c.watchdog.Stop()
	}

	if old != nil {
		// Teardown of the discarded handle is best-effort; its events are
		// stale by generation and will not be observed.
		_ = old.Close(transport.CloseGoingAway, "superseded")
	}

	c.metrics.setState(int32(transport.Connecting))
	go c.dial(ctx, gen)
}

func (c *Conn) dial(ctx context.Context, gen uint64) {
	cfg := transport.Config{
		URL:               c.url,
		Subprotocols:      c.opt.subprotocols,
		Header:            c.opt.header,
		HandshakeTimeout:  c.opt.handshakeTimeout,
		TLSClientConfig:   c.opt.tlsConfig,
		EnableCompression: c.opt.enableCompression,
	}
	cb := transport.Callbacks{
		OnOpen:    func() { c.handleOpen(gen) },
		OnMessage: func(data []byte, binary bool) { c.handleMessage(gen, data, binary) },
		OnPong:    func(data []byte) { c.handlePong(gen, data) },
		OnClose:   func(code int, reason string) { c.handleClose(gen, code, reason) },
		OnError:   func(err error) { c.handleError(gen, err) },
	}

	t, err := c.opt.factory(ctx, cfg, cb)

	c.mu.Lock()
	if gen != c.dialGen || c.closed {
		c.mu.Unlock()
		if t != nil {
			// A construction that completes after supersession or Close is
			// torn down, never installed.
			_ = t.Close(transport.CloseGoingAway, "superseded")
		}
		return
	}
	c.dialing = false

	if err != nil {
		c.mu.Unlock()
		c.logger.Warn("transport construction failed", "url", c.url, "error", err)
		c.metrics.incConnectErrors()
		c.metrics.setState(int32(transport.Closed))
		c.emit(Event{Name: EventError, Err: err})
		if c.reconnect != nil {
			c.reconnect.ScheduleNext()
		}
		return
	}

	c.handle = t
	c.mu.Unlock()
	t.Start()
}

func (c *Conn) handleOpen(gen uint64) {
	c.mu.Lock()
	if gen != c.dialGen || c.handle == nil {
		c.mu.Unlock()
		return
	}
	wasReconnect := c.everConnected
	c.everConnected = true
	c.mu.Unlock()

	var retry uint
	var last time.Time
	if c.reconnect != nil {
		retry = c.reconnect.Retries()
		last = c.reconnect.LastConnectedAt()
		c.reconnect.Reset()
	}
	if c.keepalive != nil {
		c.keepalive.Start()
	}
	if c.watchdog != nil {
		c.watchdog.Start()
	}

	c.logger.Info("connection open", "url", c.url, "reconnect", wasReconnect, "retries", retry)
	c.metrics.incConnects()
	c.metrics.setState(int32(transport.Open))

	c.emit(Event{Name: EventOpen})
	if wasReconnect {
		c.metrics.incReconnects()
		c.emit(Event{Name: EventReconnected, Retry: retry, LastConnectedAt: last})
	}
}

func (c *Conn) handleMessage(gen uint64, data []byte, binary bool) {
	c.mu.Lock()
	stale := gen != c.dialGen
	c.mu.Unlock()
	if stale {
		return
	}

	if c.watchdog != nil {
		c.watchdog.Reset()
	}
	c.metrics.incMessagesReceived()
	c.emit(Event{Name: EventMessage, Data: data, Binary: binary})
}

func (c *Conn) handlePong(gen uint64, data []byte) {
	c.mu.Lock()
	stale := gen != c.dialGen
	c.mu.Unlock()
	if stale {
		return
	}

	if c.watchdog != nil {
		c.watchdog.Reset()
	}
	c.emit(Event{Name: EventPong, Data: data})
}

func (c *Conn) handleClose(gen uint64, code int, reason string) {
	c.mu.Lock()
	if gen != c.dialGen {
		c.mu.Unlock()
		return
	}
	c.handle = nil
	closed := c.closed
	c.mu.Unlock()

	if c.keepalive != nil {
		c.keepalive.Stop()
	}
	if c.watchdog != nil {
		c.watchdog.Stop()
	}

	c.logger.Info("connection closed", "code", code, "reason", reason, "terminal", closed)
	c.metrics.setState(int32(transport.Closed))

	c.emit(Event{Name: EventClose, Code: code, Reason: reason})

	if !closed && c.reconnect != nil {
		c.reconnect.ScheduleNext()
	}
}

func (c *Conn) handleError(gen uint64, err error) {
	c.mu.Lock()
	stale := gen != c.dialGen
	c.mu.Unlock()
	if stale {
		return
	}

	c.logger.Warn("transport error", "error", err)
	c.emit(Event{Name: EventError, Err: err})
}

// reconnectDelayed is the scheduler's delay hook.
func (c *Conn) reconnectDelayed(retry uint, delay time.Duration) {
	c.logger.Debug("reconnect scheduled", "retry", retry, "delay", delay)
	c.emit(Event{Name: EventDelay, Retry: retry, Delay: delay})
}

// reconnectStarting is the scheduler's connecting hook.
func (c *Conn) reconnectStarting(retry uint, lastConnectedAt time.Time) {
	c.metrics.incAttempts()
	c.emit(Event{Name: EventConnecting, Retry: retry, LastConnectedAt: lastConnectedAt})
}

// keepaliveTick transmits one keepalive. The tick is gated on the handle
// being open; a ping frame is used when configured and supported, an
// ordinary message otherwise.
func (c *Conn) keepaliveTick(cfg keepalive.Config) {
	c.mu.Lock()
	h := c.handle
	c.mu.Unlock()
	if h == nil || h.ReadyState() != transport.Open {
		return
	}

	var err error
	if p, ok := h.(transport.Pinger); ok && cfg.Frame {
		err = p.Ping(cfg.Data)
	} else {
		err = h.Send(cfg.Data)
	}
	if err != nil {
		c.logger.Debug("keepalive send failed", "error", err)
		return
	}
	c.metrics.incKeepalivePings()
}

// watchdogExpired refreshes the connection after an inactivity timeout; the
// resulting close event drives the normal reconnect path.
func (c *Conn) watchdogExpired(lastActive time.Time) {
	c.logger.Warn("inactivity timeout", "last_active", lastActive)
	c.metrics.incWatchdogTimeouts()
	c.emit(Event{Name: EventTimeout, LastActiveAt: lastActive})
	c.Refresh(transport.CloseNormalClosure, "inactivity timeout")
}

// Send transmits a single data frame on the current handle. It fails with
// errors.ErrNoConnection when no handle exists, and with the transport's own
// error when the handle is not open. Nothing is buffered locally.
func (c *Conn) Send(data []byte) error {
	c.mu.Lock()
	h := c.handle
	c.mu.Unlock()
	if h == nil {
		return errors.WrapTransient(errors.ErrNoConnection, "Conn", "Send", "locate transport handle")
	}

	if err := h.Send(data); err != nil {
		return err
	}
	c.metrics.incMessagesSent()
	return nil
}

// SendJSON encodes v as canonical JSON text and sends it.
func (c *Conn) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.WrapInvalid(err, "Conn", "SendJSON", "encode payload")
	}
	return c.Send(data)
}

// Refresh closes the current handle with the given code and reason. The
// ensuing close event drives the normal reconnect path when reconnection is
// enabled.
func (c *Conn) Refresh(code int, reason string) {
	c.mu.Lock()
	h := c.handle
	c.mu.Unlock()
	if h != nil {
		_ = h.Close(code, reason)
	}
}

// Close permanently disables reconnection and closes the current handle. A
// later Connect starts over from a clean scheduler state.
func (c *Conn) Close(code int, reason string) error {
	h := c.teardown()
	if h == nil {
		return nil
	}
	return h.Close(code, reason)
}

// Terminate is Close with an abrupt teardown: the transport's Terminator
// capability is used when present, an ordinary close otherwise.
func (c *Conn) Terminate() error {
	h := c.teardown()
	if h == nil {
		return nil
	}
	if t, ok := h.(transport.Terminator); ok {
		return t.Terminate()
	}
	return h.Close(transport.CloseGoingAway, "terminated")
}

// teardown marks the Conn terminally closed and quiesces the schedulers. The
// handle stays installed so its close event still reaches listeners; the
// closed flag keeps that event from rescheduling.
func (c *Conn) teardown() transport.Transport {
	c.mu.Lock()
	c.closed = true
	c.dialing = false
	h := c.handle
	c.mu.Unlock()

	if c.reconnect != nil {
		c.reconnect.Stop()
	}
	if c.keepalive != nil {
		c.keepalive.Stop()
	}
	if c.watchdog != nil {
		c.watchdog.Stop()
	}
	return h
}

// On registers fn for the named event. The listener survives transport
// replacement: it receives matching events from every handle until removed.
func (c *Conn) On(event string, fn Handler) (Subscription, error) {
	if err := validateEvent("On", event); err != nil {
		return Subscription{}, err
	}
	return c.registry.Add(event, fn, false), nil
}

// Once registers fn to fire exactly one time total across the Conn's
// lifetime, regardless of how many transport replacements occur.
func (c *Conn) Once(event string, fn Handler) (Subscription, error) {
	if err := validateEvent("Once", event); err != nil {
		return Subscription{}, err
	}
	return c.registry.Add(event, fn, true), nil
}

// Off removes a previously registered listener. It reports whether a
// listener was removed.
func (c *Conn) Off(sub Subscription) bool {
	return c.registry.Remove(sub)
}

// UpdateReconnect merges non-zero fields into the reconnect configuration
// and resets the scheduler, abandoning any in-flight backoff sequence. No-op
// when reconnection is disabled.
func (c *Conn) UpdateReconnect(cfg backoff.Config) {
	if c.reconnect != nil {
		c.reconnect.Update(cfg)
	}
}

// emit dispatches an event to the registered listeners in insertion order.
// Once-listeners are consumed atomically with the dispatch snapshot.
func (c *Conn) emit(ev Event) {
	for _, fn := range c.registry.Snapshot(ev.Name) {
		fn(ev)
	}
}
