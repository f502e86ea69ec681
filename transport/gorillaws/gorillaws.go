// Package gorillaws implements the transport capability set on top of a
// gorilla/websocket client connection. It is the default transport.
//
// The adapter implements both optional capabilities: Pinger via ping control
// frames with the pong handler wired to OnPong, and Terminator via an abrupt
// socket close with no closing handshake.
package gorillaws

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/wskeeper/transport"
)

// writeTimeout bounds control-frame and data writes so a stalled peer cannot
// wedge the keepalive path.
const writeTimeout = 10 * time.Second

// Conn adapts a gorilla/websocket connection to transport.Transport.
type Conn struct {
	ws    *websocket.Conn
	cb    transport.Callbacks
	state atomic.Int32

	writeMu   sync.Mutex
	startOnce sync.Once

	closeMu     sync.Mutex
	localCode   int
	localReason string
	localClosed bool
}

// Interface conformance, including both optional capabilities.
var (
	_ transport.Transport  = (*Conn)(nil)
	_ transport.Pinger     = (*Conn)(nil)
	_ transport.Terminator = (*Conn)(nil)
)

// Factory dials cfg.URL and returns a dormant transport. It matches
// transport.Factory and is the default factory used by wskeeper.
func Factory(ctx context.Context, cfg transport.Config, cb transport.Callbacks) (transport.Transport, error) {
	return Dial(ctx, cfg, cb)
}

// Dial connects to cfg.URL. The returned connection delivers no callback
// until Start is called.
func Dial(ctx context.Context, cfg transport.Config, cb transport.Callbacks) (*Conn, error) {
	dialer := &websocket.Dialer{
		HandshakeTimeout:  cfg.HandshakeTimeout,
		Subprotocols:      cfg.Subprotocols,
		TLSClientConfig:   cfg.TLSClientConfig,
		EnableCompression: cfg.EnableCompression,
	}

	ws, resp, err := dialer.DialContext(ctx, cfg.URL, cfg.Header)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return nil, err
	}

	c := &Conn{ws: ws, cb: cb}
	c.state.Store(int32(transport.Open))
	return c, nil
}

// Start wires the pong handler and begins the read pump. OnOpen fires from
// the pump goroutine before any other event.
func (c *Conn) Start() {
	c.startOnce.Do(func() {
		c.ws.SetPongHandler(func(data string) error {
			if c.cb.OnPong != nil {
				c.cb.OnPong([]byte(data))
			}
			return nil
		})
		go c.readLoop()
	})
}

func (c *Conn) readLoop() {
	if c.cb.OnOpen != nil {
		c.cb.OnOpen()
	}

	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			c.finish(err)
			return
		}
		if c.cb.OnMessage != nil {
			c.cb.OnMessage(data, mt == websocket.BinaryMessage)
		}
	}
}

// finish resolves the close code and reason for a terminated read pump and
// fires OnClose exactly once (the pump exits right after).
func (c *Conn) finish(err error) {
	code := websocket.CloseAbnormalClosure
	reason := ""

	var ce *websocket.CloseError
	switch {
	case stderrors.As(err, &ce):
		code = ce.Code
		reason = ce.Text
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
	_ = c.ws.Close()

	if c.cb.OnClose != nil {
		c.cb.OnClose(code, reason)
	}
}

// Send transmits data as a text frame.
func (c *Conn) Send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Ping transmits a ping control frame carrying data.
func (c *Conn) Ping(data []byte) error {
	return c.ws.WriteControl(websocket.PingMessage, data, time.Now().Add(writeTimeout))
}

// Close performs an orderly close: a close frame is sent, then the socket is
// torn down. The read pump reports OnClose with the given code and reason.
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
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
	return c.ws.Close()
}

// Terminate tears the socket down without a closing handshake.
func (c *Conn) Terminate() error {
	c.closeMu.Lock()
	if !c.localClosed {
		c.localClosed = true
		c.localCode = websocket.CloseAbnormalClosure
		c.localReason = ""
	}
	c.closeMu.Unlock()

	c.state.Store(int32(transport.Closing))
	return c.ws.Close()
}

// ReadyState reports the current connection state.
func (c *Conn) ReadyState() transport.ReadyState {
	return transport.ReadyState(c.state.Load())
}
