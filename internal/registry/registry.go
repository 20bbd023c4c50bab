// Package registry guards the uniqueness of peer identifiers. The examiner
// node claims its identifier before accepting links; a second node asking
// for the same identifier is refused.
package registry

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrIdentifierTaken means another owner holds the identifier.
	ErrIdentifierTaken = errors.New("peer identifier already claimed")
	// ErrLeaseLost means the caller's claim expired or was taken over.
	ErrLeaseLost = errors.New("peer identifier lease lost")
)

// Registry leases peer identifiers to owners for a bounded time.
type Registry interface {
	Claim(ctx context.Context, peerID, owner string, ttl time.Duration) error
	Refresh(ctx context.Context, peerID, owner string, ttl time.Duration) error
	Release(ctx context.Context, peerID, owner string) error
}
