package participant

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-room/internal/deadline"
	"github.com/stemsi/exstem-room/internal/link"
	ws "github.com/stemsi/exstem-room/internal/websocket"
)

var (
	ErrAlreadyJoined = errors.New("already joined")
	ErrNodeStopped   = errors.New("participant node stopped")
)

// NodeConfig locates the examiner.
type NodeConfig struct {
	AuthorityURL string
	Namespace    string
}

type command struct {
	fn   func(*Machine) error
	done chan error
}

// Node drives a Machine from link events, a one-second tick and local
// commands, all on one goroutine.
type Node struct {
	cfg      NodeConfig
	m        *Machine
	conn     *link.Conn
	events   chan link.Event
	commands chan command
	stopped  chan struct{}
	now      func() time.Time
	log      zerolog.Logger
}

// NewNode creates a driver for m.
func NewNode(cfg NodeConfig, m *Machine, log zerolog.Logger) *Node {
	return &Node{
		cfg:      cfg,
		m:        m,
		events:   make(chan link.Event, 16),
		commands: make(chan command),
		stopped:  make(chan struct{}),
		now:      m.cfg.Now,
		log:      log.With().Str("component", "participant_node").Logger(),
	}
}

// Do runs fn against the machine on the driver goroutine.
func (n *Node) Do(ctx context.Context, fn func(*Machine) error) error {
	cmd := command{fn: fn, done: make(chan error, 1)}
	select {
	case n.commands <- cmd:
	case <-n.stopped:
		return ErrNodeStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Join opens the single outbound link to the room. The link lives until
// ctx is cancelled or either side closes it; there is no automatic retry.
func (n *Node) Join(ctx context.Context) error {
	err := n.Do(ctx, func(m *Machine) error {
		if m.State() != NotJoined {
			return ErrAlreadyJoined
		}
		return nil
	})
	if err != nil {
		return err
	}

	peerID := link.PeerID(n.cfg.Namespace, n.m.cfg.RoomID)
	c, err := link.Dial(ctx, n.cfg.AuthorityURL, peerID, n.log)
	if err != nil {
		n.log.Error().Err(err).Str("peer_id", peerID).Msg("Room not reachable")
		return err
	}
	go c.Serve(ctx, n.events)
	return nil
}

// Run is the driver loop.
func (n *Node) Run(ctx context.Context) {
	defer close(n.stopped)

	ticker := time.NewTicker(deadline.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if n.conn != nil {
				n.conn.Close()
			}
			return
		case ev := <-n.events:
			n.handle(ctx, ev)
		case <-ticker.C:
			if _, err := n.m.Tick(n.now()); err != nil {
				n.log.Error().Err(err).Msg("Automatic submission failed")
			}
		case cmd := <-n.commands:
			cmd.done <- cmd.fn(n.m)
		}
	}
}

func (n *Node) handle(ctx context.Context, ev link.Event) {
	switch ev.Kind {
	case link.EventOpened:
		if n.conn != nil {
			ev.Conn.Close()
			return
		}
		n.conn = ev.Conn
		if err := n.m.LinkOpened(ctx, ev.Conn); err != nil {
			n.log.Error().Err(err).Msg("Restoring exam progress failed")
		}
	case link.EventClosed:
		if ev.Conn != n.conn {
			return
		}
		n.conn = nil
		n.m.LinkClosed()
	case link.EventMessage:
		if ev.Envelope.Type != ws.TypeSyncState {
			n.log.Warn().Str("type", string(ev.Envelope.Type)).Msg("Ignoring unexpected message")
			return
		}
		state, err := ev.Envelope.DecodeState()
		if err != nil {
			n.log.Warn().Err(err).Msg("Ignoring malformed state")
			return
		}
		n.m.ApplyState(state)
	}
}
