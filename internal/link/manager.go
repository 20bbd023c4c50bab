package link

import (
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-room/internal/model"
	ws "github.com/stemsi/exstem-room/internal/websocket"
)

// Manager tracks the examiner's open links. It is owned by a single
// dispatcher goroutine and is not safe for concurrent use.
type Manager struct {
	links map[string]*Conn
	log   zerolog.Logger
}

// NewManager creates an empty Manager.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		links: make(map[string]*Conn),
		log:   log.With().Str("component", "link_manager").Logger(),
	}
}

// Add registers a freshly opened link and sends it the current projection.
func (m *Manager) Add(c *Conn, state model.SessionState) error {
	m.links[c.ID()] = c
	m.log.Info().Str("link_id", c.ID()).Int("links", len(m.links)).Msg("Participant connected")

	env, err := ws.SyncState(state)
	if err != nil {
		return err
	}
	return c.SendLatest(env)
}

// Remove forgets a link. Unknown links are ignored.
func (m *Manager) Remove(c *Conn) {
	if _, ok := m.links[c.ID()]; !ok {
		return
	}
	delete(m.links, c.ID())
	m.log.Info().Str("link_id", c.ID()).Int("links", len(m.links)).Msg("Participant disconnected")
}

// Broadcast sends the projection of state to every open link and returns
// how many sends were queued. Links found closed are dropped.
func (m *Manager) Broadcast(state model.SessionState) int {
	env, err := ws.SyncState(state)
	if err != nil {
		m.log.Error().Err(err).Msg("Encoding state for broadcast failed")
		return 0
	}

	sent := 0
	for id, c := range m.links {
		if !c.Open() {
			delete(m.links, id)
			continue
		}
		if err := c.SendLatest(env); err != nil {
			m.log.Warn().Err(err).Str("link_id", id).Msg("Broadcast send failed")
			continue
		}
		sent++
	}
	return sent
}

// Has reports whether c is a tracked link.
func (m *Manager) Has(c *Conn) bool {
	tracked, ok := m.links[c.ID()]
	return ok && tracked == c
}

// Count returns the number of tracked links.
func (m *Manager) Count() int { return len(m.links) }

// CloseAll closes and forgets every link. Used when the room is reset and
// old participants must rejoin under the new identifier.
func (m *Manager) CloseAll() {
	for id, c := range m.links {
		c.Close()
		delete(m.links, id)
	}
}
