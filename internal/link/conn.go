package link

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	ws "github.com/stemsi/exstem-room/internal/websocket"
)

var (
	ErrClosed     = errors.New("link closed")
	ErrBufferFull = errors.New("link send buffer full")
)

const sendBuffer = 16

// Conn is one open link. Sends are fire-and-forget: they are queued for the
// write pump and never wait for the peer.
type Conn struct {
	id        string
	peer      string
	conn      *websocket.Conn
	send      chan ws.Envelope
	done      chan struct{}
	open      atomic.Bool
	closeOnce sync.Once
	log       zerolog.Logger
}

// NewConn wraps an established WebSocket connection.
func NewConn(c *websocket.Conn, log zerolog.Logger) *Conn {
	id := uuid.NewString()
	lc := &Conn{
		id:   id,
		conn: c,
		send: make(chan ws.Envelope, sendBuffer),
		done: make(chan struct{}),
		log:  log.With().Str("link_id", id).Logger(),
	}
	lc.open.Store(true)
	return lc
}

// ID returns the link's unique identifier.
func (c *Conn) ID() string { return c.id }

// ForPeer records the identifier the link was opened under. Call it before
// Serve.
func (c *Conn) ForPeer(peerID string) *Conn {
	c.peer = peerID
	return c
}

// Peer returns the identifier the link was opened under, if recorded.
func (c *Conn) Peer() string { return c.peer }

// Open reports whether the link can still carry messages.
func (c *Conn) Open() bool { return c.open.Load() }

// Send queues env for delivery.
func (c *Conn) Send(env ws.Envelope) error {
	if !c.Open() {
		return ErrClosed
	}
	select {
	case c.send <- env:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrBufferFull
	}
}

// SendLatest queues env like Send. When the buffer is full, everything still
// queued is discarded first. Only for messages that supersede each other,
// such as full state broadcasts.
func (c *Conn) SendLatest(env ws.Envelope) error {
	err := c.Send(env)
	if !errors.Is(err, ErrBufferFull) {
		return err
	}
	for drained := false; !drained; {
		select {
		case <-c.send:
		default:
			drained = true
		}
	}
	c.log.Warn().Msg("Send buffer full, replaced queued state")
	return c.Send(env)
}

// Close sends a close frame and tears the connection down. Safe to call
// more than once and from any goroutine.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.open.Store(false)
		close(c.done)
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.conn.Close()
	})
}

// Serve runs the link until it closes or ctx is cancelled. It emits
// EventOpened first, then one EventMessage per decoded envelope, and finally
// EventClosed. Malformed frames are logged and dropped.
func (c *Conn) Serve(ctx context.Context, events chan<- Event) {
	defer c.Close()

	go c.writePump()
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.done:
		}
	}()

	if !emit(ctx, events, Event{Kind: EventOpened, Conn: c}) {
		return
	}

	ws.PrepareRead(c.conn)
	var readErr error
	for {
		env, err := ws.ReadEnvelope(c.conn)
		if errors.Is(err, ws.ErrMalformed) {
			c.log.Warn().Err(err).Msg("Dropping malformed message")
			continue
		}
		if err != nil {
			if ws.IsNormalClose(err) {
				c.log.Debug().Msg("Link closed")
			} else {
				c.log.Warn().Err(err).Msg("Unexpected close")
				readErr = err
			}
			break
		}
		if !emit(ctx, events, Event{Kind: EventMessage, Conn: c, Envelope: env}) {
			return
		}
	}

	c.Close()
	emit(ctx, events, Event{Kind: EventClosed, Conn: c, Err: readErr})
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(ws.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case env := <-c.send:
			if err := ws.WriteTyped(c.conn, env); err != nil {
				c.log.Warn().Err(err).Str("type", string(env.Type)).Msg("Write failed")
				c.Close()
				return
			}
		case <-ticker.C:
			if err := ws.WritePing(c.conn); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
