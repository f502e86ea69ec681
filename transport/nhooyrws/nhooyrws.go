// Package nhooyrws implements the transport capability set on top of a
// nhooyr.io/websocket client connection.
//
// The adapter implements Terminator (CloseNow) but not Pinger: the library
// handles ping/pong internally and exposes no pong event, so keepalive
// traffic over this transport falls back to ordinary messages.
package nhooyrws

import (
	"context"
	stderrors "errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"

	"github.com/c360/wskeeper/transport"
)

// writeTimeout bounds data writes so a stalled peer cannot wedge the caller
// or the keepalive path. Variable so tests can shorten it.
var writeTimeout = 10 * time.Second

// Conn adapts a nhooyr.io/websocket connection to transport.Transport.
type Conn struct {
	ws    *websocket.Conn
	cb    transport.Callbacks
	state atomic.Int32

	startOnce sync.Once
	readCtx   context.Context
	readStop  context.CancelFunc

	closeMu     sync.Mutex
	localCode   int
	localReason string
	localClosed bool
}

var (
	_ transport.Transport  = (*Conn)(nil)
	_ transport.Terminator = (*Conn)(nil)
)

// Factory dials cfg.URL and returns a dormant transport. It matches
// transport.Factory.
func Factory(ctx context.Context, cfg transport.Config, cb transport.Callbacks) (transport.Transport, error) {
	return Dial(ctx, cfg, cb)
}

// Dial connects to cfg.URL. The returned connection delivers no callback
// until Start is called.
func Dial(ctx context.Context, cfg transport.Config, cb transport.Callbacks) (*Conn, error) {
	opts := &websocket.DialOptions{
		Subprotocols: cfg.Subprotocols,
		HTTPHeader:   cfg.Header,
	}
	if cfg.EnableCompression {
		opts.CompressionMode = websocket.CompressionContextTakeover
	}
	if cfg.TLSClientConfig != nil {
		opts.HTTPClient = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: cfg.TLSClientConfig,
			},
		}
	}
	if cfg.HandshakeTimeout > 0 {
		// The library rejects http.Client.Timeout; the handshake bound
		// comes from the dial context instead.
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.HandshakeTimeout)
		defer cancel()
	}

	ws, resp, err := websocket.Dial(ctx, cfg.URL, opts)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return nil, err
	}

	readCtx, readStop := context.WithCancel(context.Background())
	c := &Conn{ws: ws, cb: cb, readCtx: readCtx, readStop: readStop}
	c.state.Store(int32(transport.Open))
	return c, nil
}

// Start begins the read pump. OnOpen fires from the pump goroutine before
// any other event.
func (c *Conn) Start() {
	c.startOnce.Do(func() {
		go c.readLoop()
	})
}

func (c *Conn) readLoop() {
	if c.cb.OnOpen != nil {
		c.cb.OnOpen()
	}

	for {
		mt, data, err := c.ws.Read(c.readCtx)
		if err != nil {
			c.finish(err)
			return
		}
		if c.cb.OnMessage != nil {
			c.cb.OnMessage(data, mt == websocket.MessageBinary)
		}
	}
}

func (c *Conn) finish(err error) {
	code := int(websocket.StatusAbnormalClosure)
	reason := ""

	var ce websocket.CloseError
	switch {
	case stderrors.As(err, &ce):
		code = int(ce.Code)
		reason = ce.Reason
	default:
		c.closeMu.Lock()
		local := c.localClosed
		if local {
			code = c.localCode
			reason = c.localReason
		}
		c.closeMu.Unlock()
		if !local && c.cb.OnError != nil {
			c.cb.OnError(err)
		}
	}

	c.state.Store(int32(transport.Closed))
	_ = c.ws.CloseNow()

	if c.cb.OnClose != nil {
		c.cb.OnClose(code, reason)
	}
}

// Send transmits data as a text frame. The write is bounded by writeTimeout.
func (c *Conn) Send(data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return c.ws.Write(ctx, websocket.MessageText, data)
}

// Close performs an orderly close with the given code and reason.
func (c *Conn) Close(code int, reason string) error {
	c.closeMu.Lock()
	if c.localClosed {
		c.closeMu.Unlock()
		return nil
	}
	c.localClosed = true
	c.localCode = code
	c.localReason = reason
	c.closeMu.Unlock()

	c.state.Store(int32(transport.Closing))
	err := c.ws.Close(websocket.StatusCode(code), reason)
	c.readStop()
	return err
}

// Terminate tears the connection down without a closing handshake.
func (c *Conn) Terminate() error {
	c.closeMu.Lock()
	if !c.localClosed {
		c.localClosed = true
		c.localCode = int(websocket.StatusAbnormalClosure)
		c.localReason = ""
	}
	c.closeMu.Unlock()

	c.state.Store(int32(transport.Closing))
	err := c.ws.CloseNow()
	c.readStop()
	return err
}

// ReadyState reports the current connection state.
func (c *Conn) ReadyState() transport.ReadyState {
	return transport.ReadyState(c.state.Load())
}
