package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-room/internal/config"
)

// Both scripts act only when the key still belongs to the caller.
var (
	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// RedisRegistry stores claims as expiring Redis keys.
type RedisRegistry struct {
	rdb *redis.Client
}

// NewRedisRegistry creates a RedisRegistry.
func NewRedisRegistry(rdb *redis.Client) *RedisRegistry {
	return &RedisRegistry{rdb: rdb}
}

func (r *RedisRegistry) Claim(ctx context.Context, peerID, owner string, ttl time.Duration) error {
	ok, err := r.rdb.SetNX(ctx, config.CacheKey.PeerClaimKey(peerID), owner, ttl).Result()
	if err != nil {
		return fmt.Errorf("claim %s: %w", peerID, err)
	}
	if !ok {
		return fmt.Errorf("claim %s: %w", peerID, ErrIdentifierTaken)
	}
	return nil
}

func (r *RedisRegistry) Refresh(ctx context.Context, peerID, owner string, ttl time.Duration) error {
	n, err := refreshScript.Run(ctx, r.rdb, []string{config.CacheKey.PeerClaimKey(peerID)}, owner, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("refresh %s: %w", peerID, err)
	}
	if n == 0 {
		return fmt.Errorf("refresh %s: %w", peerID, ErrLeaseLost)
	}
	return nil
}

func (r *RedisRegistry) Release(ctx context.Context, peerID, owner string) error {
	if err := releaseScript.Run(ctx, r.rdb, []string{config.CacheKey.PeerClaimKey(peerID)}, owner).Err(); err != nil {
		return fmt.Errorf("release %s: %w", peerID, err)
	}
	return nil
}
