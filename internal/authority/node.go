package authority

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-room/internal/link"
	"github.com/stemsi/exstem-room/internal/registry"
	"github.com/stemsi/exstem-room/internal/validator"
	ws "github.com/stemsi/exstem-room/internal/websocket"
)

// ErrNodeStopped is returned by Exec once the dispatcher has exited.
var ErrNodeStopped = errors.New("examiner node stopped")

const resetAttempts = 5

// NodeConfig configures identifier handling.
type NodeConfig struct {
	Namespace string
	ClaimTTL  time.Duration
	// NewRoomID draws room numbers for Reset; defaults to link.NewRoomID.
	NewRoomID func() int
}

type command struct {
	fn   func() error
	done chan error
}

// Node is the examiner's dispatcher. It owns the Authority and the link
// manager and is the only goroutine that touches either.
type Node struct {
	cfg      NodeConfig
	auth     *Authority
	links    *link.Manager
	registry registry.Registry
	owner    string
	peerID   atomic.Value
	events   chan link.Event
	commands chan command
	stopped  chan struct{}
	log      zerolog.Logger
}

// NewNode wires a dispatcher around auth. links must be the Broadcaster
// auth was created with.
func NewNode(cfg NodeConfig, auth *Authority, links *link.Manager, reg registry.Registry, log zerolog.Logger) *Node {
	if cfg.NewRoomID == nil {
		cfg.NewRoomID = link.NewRoomID
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = 30 * time.Second
	}
	n := &Node{
		cfg:      cfg,
		auth:     auth,
		links:    links,
		registry: reg,
		owner:    uuid.NewString(),
		events:   make(chan link.Event, 64),
		commands: make(chan command),
		stopped:  make(chan struct{}),
		log:      log.With().Str("component", "examiner_node").Logger(),
	}
	n.peerID.Store(link.PeerID(cfg.Namespace, auth.RoomID()))
	return n
}

// PeerID returns the identifier participants currently connect to.
func (n *Node) PeerID() string { return n.peerID.Load().(string) }

// Events is where links opened for this node deliver their events.
func (n *Node) Events() chan<- link.Event { return n.events }

// Claim reserves the current identifier. A collision is fatal: another
// examiner already owns the room.
func (n *Node) Claim(ctx context.Context) error {
	peerID := n.PeerID()
	if err := n.registry.Claim(ctx, peerID, n.owner, n.cfg.ClaimTTL); err != nil {
		return err
	}
	n.log.Info().Str("peer_id", peerID).Msg("Identifier claimed")
	return nil
}

// Exec runs fn on the dispatcher goroutine and waits for its result.
func (n *Node) Exec(ctx context.Context, fn func(*Authority) error) error {
	return n.exec(ctx, func() error { return fn(n.auth) })
}

func (n *Node) exec(ctx context.Context, fn func() error) error {
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

// LinkCount returns the number of connected participants.
func (n *Node) LinkCount(ctx context.Context) (int, error) {
	var count int
	err := n.exec(ctx, func() error {
		count = n.links.Count()
		return nil
	})
	return count, err
}

// Reset moves the examiner to a fresh room and returns its number and
// identifier. The new identifier is claimed before anything changes, so a
// failure leaves the current room intact.
func (n *Node) Reset(ctx context.Context) (int, string, error) {
	oldPeer := n.PeerID()

	var (
		roomID  int
		newPeer string
		err     error
	)
	for i := 0; i < resetAttempts; i++ {
		roomID = n.cfg.NewRoomID()
		newPeer = link.PeerID(n.cfg.Namespace, roomID)
		if newPeer == oldPeer {
			continue
		}
		err = n.registry.Claim(ctx, newPeer, n.owner, n.cfg.ClaimTTL)
		if !errors.Is(err, registry.ErrIdentifierTaken) {
			break
		}
		n.log.Warn().Str("peer_id", newPeer).Msg("Identifier taken, drawing another")
	}
	if err != nil {
		return 0, oldPeer, fmt.Errorf("reset: %w", err)
	}
	if newPeer == oldPeer {
		return 0, oldPeer, fmt.Errorf("reset: no fresh identifier after %d attempts", resetAttempts)
	}

	err = n.exec(ctx, func() error {
		n.switchRoom(roomID, newPeer)
		return nil
	})
	if err != nil {
		n.registry.Release(context.Background(), newPeer, n.owner)
		return 0, oldPeer, err
	}

	if err := n.registry.Release(ctx, oldPeer, n.owner); err != nil {
		n.log.Warn().Err(err).Str("peer_id", oldPeer).Msg("Releasing old identifier failed")
	}
	return roomID, newPeer, nil
}

// switchRoom runs on the dispatcher. Links of the old room are closed and
// anything they still have queued is dropped by handle.
func (n *Node) switchRoom(roomID int, peerID string) {
	n.auth.Reset(roomID)
	n.links.CloseAll()
	n.peerID.Store(peerID)
}

// Run is the dispatcher loop. It returns when ctx is cancelled, after
// closing every link and releasing the identifier.
func (n *Node) Run(ctx context.Context) {
	n.log.Info().Str("peer_id", n.PeerID()).Msg("Examiner node started")
	defer close(n.stopped)

	go n.keepClaim(ctx)

	for {
		select {
		case <-ctx.Done():
			n.links.CloseAll()
			if err := n.registry.Release(context.Background(), n.PeerID(), n.owner); err != nil {
				n.log.Warn().Err(err).Msg("Releasing identifier failed")
			}
			n.log.Info().Msg("Examiner node stopped")
			return
		case ev := <-n.events:
			n.handle(ev)
		case cmd := <-n.commands:
			cmd.done <- cmd.fn()
		}
	}
}

func (n *Node) keepClaim(ctx context.Context) {
	ticker := time.NewTicker(n.cfg.ClaimTTL / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.refreshClaim(ctx)
		}
	}
}

func (n *Node) handle(ev link.Event) {
	switch ev.Kind {
	case link.EventOpened:
		if !ev.Conn.Open() || ev.Conn.Peer() != n.PeerID() {
			n.log.Info().Str("link_id", ev.Conn.ID()).Str("peer_id", ev.Conn.Peer()).Msg("Closing link to a previous room")
			ev.Conn.Close()
			return
		}
		if err := n.links.Add(ev.Conn, n.auth.Snapshot()); err != nil {
			n.log.Warn().Err(err).Str("link_id", ev.Conn.ID()).Msg("Initial sync failed")
		}
	case link.EventClosed:
		n.links.Remove(ev.Conn)
	case link.EventMessage:
		if !n.links.Has(ev.Conn) {
			n.log.Warn().Str("link_id", ev.Conn.ID()).Str("type", string(ev.Envelope.Type)).Msg("Dropping message from a stale link")
			return
		}
		n.handleMessage(ev.Conn, ev.Envelope)
	}
}

func (n *Node) handleMessage(c *link.Conn, env ws.Envelope) {
	switch env.Type {
	case ws.TypeSubmitAnswers:
		p, err := env.DecodeSubmit()
		if err != nil {
			n.log.Warn().Err(err).Str("link_id", c.ID()).Msg("Ignoring malformed submission")
			return
		}
		if fields := validator.Struct(&p); fields != nil {
			n.log.Warn().Interface("fields", fields).Str("link_id", c.ID()).Msg("Ignoring invalid submission")
			return
		}
		n.auth.IngestSubmission(p)
	default:
		n.log.Warn().Str("type", string(env.Type)).Str("link_id", c.ID()).Msg("Ignoring unexpected message")
	}
}

// refreshClaim extends the lease. A lost lease is re-claimed when free and
// reported as a collision when someone else holds it.
func (n *Node) refreshClaim(ctx context.Context) {
	peerID := n.PeerID()
	err := n.registry.Refresh(ctx, peerID, n.owner, n.cfg.ClaimTTL)
	if err == nil || ctx.Err() != nil {
		return
	}
	if !errors.Is(err, registry.ErrLeaseLost) {
		n.log.Warn().Err(err).Str("peer_id", peerID).Msg("Lease refresh failed")
		return
	}
	if n.PeerID() != peerID {
		return
	}
	if err := n.registry.Claim(ctx, peerID, n.owner, n.cfg.ClaimTTL); err != nil {
		n.log.Error().Err(err).Str("peer_id", peerID).Msg("Identifier collision: another node holds this room")
		return
	}
	n.log.Warn().Str("peer_id", peerID).Msg("Lease expired and was re-claimed")
}
