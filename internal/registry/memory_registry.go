package registry

import (
	"context"
	"sync"
	"time"
)

type lease struct {
	owner   string
	expires time.Time
}

// MemoryRegistry is an in-process Registry for single-machine deployments
// and tests. It only detects collisions between nodes sharing the process.
type MemoryRegistry struct {
	mu     sync.Mutex
	leases map[string]lease
	now    func() time.Time
}

// NewMemoryRegistry creates an empty MemoryRegistry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{leases: make(map[string]lease), now: time.Now}
}

func (m *MemoryRegistry) Claim(_ context.Context, peerID, owner string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if l, ok := m.leases[peerID]; ok && now.Before(l.expires) {
		return ErrIdentifierTaken
	}
	m.leases[peerID] = lease{owner: owner, expires: now.Add(ttl)}
	return nil
}

func (m *MemoryRegistry) Refresh(_ context.Context, peerID, owner string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	l, ok := m.leases[peerID]
	if !ok || l.owner != owner || !now.Before(l.expires) {
		return ErrLeaseLost
	}
	l.expires = now.Add(ttl)
	m.leases[peerID] = l
	return nil
}

func (m *MemoryRegistry) Release(_ context.Context, peerID, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.leases[peerID]; ok && l.owner == owner {
		delete(m.leases, peerID)
	}
	return nil
}
