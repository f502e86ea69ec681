package gorillaws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/wskeeper/transport"
)

var upgrader = websocket.Upgrader{}

// echoServer upgrades each request and echoes every data frame back. The
// library's default handlers answer pings and mirror close frames.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			mt, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if err := ws.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

type closeInfo struct {
	code   int
	reason string
}

// callbackChans wires every callback to a buffered channel.
type callbackChans struct {
	open   chan struct{}
	msgs   chan []byte
	pongs  chan []byte
	closes chan closeInfo
	errs   chan error
}

func newCallbackChans() *callbackChans {
	return &callbackChans{
		open:   make(chan struct{}, 1),
		msgs:   make(chan []byte, 16),
		pongs:  make(chan []byte, 16),
		closes: make(chan closeInfo, 1),
		errs:   make(chan error, 16),
	}
}

func (cc *callbackChans) callbacks() transport.Callbacks {
	return transport.Callbacks{
		OnOpen:    func() { cc.open <- struct{}{} },
		OnMessage: func(data []byte, _ bool) { cc.msgs <- data },
		OnPong:    func(data []byte) { cc.pongs <- data },
		OnClose:   func(code int, reason string) { cc.closes <- closeInfo{code, reason} },
		OnError:   func(err error) { cc.errs <- err },
	}
}

func recv[T any](t *testing.T, ch chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		panic("unreachable")
	}
}

func TestConn_OpenAndEcho(t *testing.T) {
	srv := echoServer(t)
	cc := newCallbackChans()

	c, err := Dial(context.Background(), transport.Config{URL: wsURL(srv)}, cc.callbacks())
	require.NoError(t, err)
	assert.Equal(t, transport.Open, c.ReadyState())

	// Dormant until Start.
	select {
	case <-cc.open:
		t.Fatal("open fired before Start")
	case <-time.After(20 * time.Millisecond):
	}

	c.Start()
	recv(t, cc.open, "open")

	require.NoError(t, c.Send([]byte("hello")))
	assert.Equal(t, []byte("hello"), recv(t, cc.msgs, "echo"))

	require.NoError(t, c.Close(transport.CloseNormalClosure, "done"))
	recv(t, cc.closes, "close")
}

func TestConn_PingPong(t *testing.T) {
	srv := echoServer(t)
	cc := newCallbackChans()

	c, err := Dial(context.Background(), transport.Config{URL: wsURL(srv)}, cc.callbacks())
	require.NoError(t, err)
	c.Start()
	recv(t, cc.open, "open")

	require.NoError(t, c.Ping([]byte("probe")))
	assert.Equal(t, []byte("probe"), recv(t, cc.pongs, "pong"))

	_ = c.Close(transport.CloseNormalClosure, "done")
}

func TestConn_LocalCloseReportsCodeAndReason(t *testing.T) {
	srv := echoServer(t)
	cc := newCallbackChans()

	c, err := Dial(context.Background(), transport.Config{URL: wsURL(srv)}, cc.callbacks())
	require.NoError(t, err)
	c.Start()
	recv(t, cc.open, "open")

	require.NoError(t, c.Close(transport.CloseNormalClosure, "bye"))

	ci := recv(t, cc.closes, "close")
	assert.Equal(t, transport.CloseNormalClosure, ci.code)
	assert.Equal(t, "bye", ci.reason)
	assert.Equal(t, transport.Closed, c.ReadyState())

	// Idempotent.
	assert.NoError(t, c.Close(transport.CloseNormalClosure, "again"))
}

func TestConn_RemoteCloseReportsPeerCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		msg := websocket.FormatCloseMessage(4000, "moving on")
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		// Wait for the client's close response before tearing down.
		_, _, _ = ws.ReadMessage()
	}))
	defer srv.Close()

	cc := newCallbackChans()
	c, err := Dial(context.Background(), transport.Config{URL: wsURL(srv)}, cc.callbacks())
	require.NoError(t, err)
	c.Start()
	recv(t, cc.open, "open")

	ci := recv(t, cc.closes, "close")
	assert.Equal(t, 4000, ci.code)
	assert.Equal(t, "moving on", ci.reason)
}

func TestConn_TerminateReportsAbnormalClosure(t *testing.T) {
	srv := echoServer(t)
	cc := newCallbackChans()

	c, err := Dial(context.Background(), transport.Config{URL: wsURL(srv)}, cc.callbacks())
	require.NoError(t, err)
	c.Start()
	recv(t, cc.open, "open")

	require.NoError(t, c.Terminate())

	ci := recv(t, cc.closes, "close")
	assert.Equal(t, transport.CloseAbnormalClosure, ci.code)
}

func TestDial_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no websocket here", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := Dial(context.Background(), transport.Config{URL: wsURL(srv)}, transport.Callbacks{})
	require.Error(t, err)
}
