package wskeeper

import (
	"fmt"
	"time"

	"github.com/c360/wskeeper/errors"
	"github.com/c360/wskeeper/listener"
)

// Event names accepted by On and Once. The first five pass through from the
// transport; the rest are emitted by the connection keeper itself.
const (
	// EventOpen fires when a transport connection becomes usable.
	EventOpen = "open"
	// EventMessage fires for every inbound data frame.
	EventMessage = "message"
	// EventPong fires for protocol-level pong frames, when the transport
	// surfaces them.
	EventPong = "pong"
	// EventClose fires when the current transport connection closes.
	EventClose = "close"
	// EventError fires for transport construction and read errors.
	EventError = "error"

	// EventConnecting fires when a reconnect attempt starts, carrying the
	// retry number and the time the connection was last up.
	EventConnecting = "connecting"
	// EventDelay fires when a reconnect delay is armed, before the attempt
	// it announces.
	EventDelay = "delay"
	// EventReconnected fires on open when a prior connection had existed.
	EventReconnected = "reconnected"
	// EventTimeout fires when the inactivity watchdog expires.
	EventTimeout = "timeout"
)

var knownEvents = map[string]struct{}{
	EventOpen:        {},
	EventMessage:     {},
	EventPong:        {},
	EventClose:       {},
	EventError:       {},
	EventConnecting:  {},
	EventDelay:       {},
	EventReconnected: {},
	EventTimeout:     {},
}

// Event carries the payload of a single emitted event. Only the fields
// relevant to the event name are populated.
type Event struct {
	Name string

	// Data and Binary describe message and pong payloads.
	Data   []byte
	Binary bool

	// Code and Reason describe close events.
	Code   int
	Reason string

	// Err carries error events.
	Err error

	// Retry, Delay and LastConnectedAt describe the reconnect events
	// connecting, delay and reconnected.
	Retry           uint
	Delay           time.Duration
	LastConnectedAt time.Time

	// LastActiveAt carries the last recorded activity on timeout events.
	LastActiveAt time.Time
}

// Handler is a caller-registered event listener.
type Handler func(Event)

// Subscription identifies a registered listener for removal via Off.
type Subscription = listener.Subscription

func validateEvent(method, event string) error {
	if _, ok := knownEvents[event]; !ok {
		return errors.WrapFatal(
			fmt.Errorf("%w: %q", errors.ErrUnknownEvent, event),
			"Conn", method, "validate event name")
	}
	return nil
}
