// Package wskeeper keeps a logical WebSocket connection alive across
// transport failures.
//
// # Overview
//
// A Conn sits in front of a bidirectional message-stream transport and
// provides four things the raw transport does not:
//
//   - Reconnection: a backoff/jitter scheduler (fibonacci or exponential)
//     that re-establishes the connection after failures.
//   - Silent-disconnect detection: an inactivity watchdog that refreshes the
//     connection when nothing has been heard for a configured bound.
//   - Keepalive: fixed-period traffic (ping frames or ordinary messages)
//     that stops intermediaries from tearing down idle connections.
//   - Listener continuity: event listeners registered on the Conn receive
//     matching events from every replacement transport instance, without
//     being re-registered by the caller.
//
// # Usage
//
//	conn, err := wskeeper.New("wss://feed.example.com/stream",
//	    wskeeper.WithTimeout(30*time.Second),
//	    wskeeper.WithKeepalive(keepalive.Config{
//	        Interval: 15 * time.Second,
//	        Frame:    true,
//	    }),
//	)
//	if err != nil {
//	    return err
//	}
//	defer conn.Close(transport.CloseNormalClosure, "done")
//
//	_, _ = conn.On(wskeeper.EventMessage, func(ev wskeeper.Event) {
//	    process(ev.Data)
//	})
//
// The default transport is a gorilla/websocket client; an alternate
// nhooyr.io/websocket transport and custom factories are supported through
// WithFactory.
//
// # Delivery semantics
//
// Messages sent while disconnected are not buffered: Send fails immediately
// when no open handle exists. Callers needing delivery guarantees layer
// their own queueing on top.
package wskeeper
