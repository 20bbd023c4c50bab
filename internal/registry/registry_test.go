package registry

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// exercise runs the shared contract against any Registry.
func exercise(t *testing.T, r Registry, advance func(time.Duration)) {
	t.Helper()
	ctx := context.Background()
	peer := "chem-exam-2025-" + uuid.NewString()[:8]
	ttl := 2 * time.Second

	if err := r.Claim(ctx, peer, "owner-a", ttl); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if err := r.Claim(ctx, peer, "owner-b", ttl); !errors.Is(err, ErrIdentifierTaken) {
		t.Fatalf("expected ErrIdentifierTaken, got %v", err)
	}
	if err := r.Refresh(ctx, peer, "owner-b", ttl); !errors.Is(err, ErrLeaseLost) {
		t.Fatalf("foreign refresh should fail, got %v", err)
	}
	if err := r.Refresh(ctx, peer, "owner-a", ttl); err != nil {
		t.Fatalf("owner refresh: %v", err)
	}

	// Releasing someone else's claim is a no-op.
	r.Release(ctx, peer, "owner-b")
	if err := r.Claim(ctx, peer, "owner-b", ttl); !errors.Is(err, ErrIdentifierTaken) {
		t.Fatalf("claim should still be held, got %v", err)
	}

	if err := r.Release(ctx, peer, "owner-a"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := r.Claim(ctx, peer, "owner-b", ttl); err != nil {
		t.Fatalf("claim after release: %v", err)
	}

	advance(3 * time.Second)
	if err := r.Refresh(ctx, peer, "owner-b", ttl); !errors.Is(err, ErrLeaseLost) {
		t.Fatalf("expired lease should not refresh, got %v", err)
	}
	if err := r.Claim(ctx, peer, "owner-c", ttl); err != nil {
		t.Fatalf("claim after expiry: %v", err)
	}
	r.Release(ctx, peer, "owner-c")
}

func TestMemoryRegistry(t *testing.T) {
	r := NewMemoryRegistry()
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	exercise(t, r, func(d time.Duration) { now = now.Add(d) })
}

func TestRedisRegistry(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	exercise(t, NewRedisRegistry(rdb), time.Sleep)
}
