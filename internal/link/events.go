// Package link carries envelopes over point-to-point WebSocket connections
// between the examiner node and participants.
package link

import ws "github.com/stemsi/exstem-room/internal/websocket"

// EventKind says what happened on a link.
type EventKind int

const (
	EventOpened EventKind = iota + 1
	EventMessage
	EventClosed
)

func (k EventKind) String() string {
	switch k {
	case EventOpened:
		return "opened"
	case EventMessage:
		return "message"
	case EventClosed:
		return "closed"
	}
	return "unknown"
}

// Event is delivered to the owning node's dispatcher. Envelope is set for
// EventMessage; Err may be set for EventClosed.
type Event struct {
	Kind     EventKind
	Conn     *Conn
	Envelope ws.Envelope
	Err      error
}
