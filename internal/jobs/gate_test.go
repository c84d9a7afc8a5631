package jobs

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestLocalGate(t *testing.T) {
	ctx := context.Background()
	g := &LocalGate{}

	if ok, _ := g.TryAcquire(ctx); !ok {
		t.Fatal("expected first acquire to succeed")
	}
	if ok, _ := g.TryAcquire(ctx); ok {
		t.Fatal("expected second acquire to fail")
	}
	if !g.Held(ctx) {
		t.Error("expected gate to be held")
	}
	_ = g.Release(ctx)
	if g.Held(ctx) {
		t.Error("expected gate to be free")
	}
	if ok, _ := g.TryAcquire(ctx); !ok {
		t.Error("expected acquire after release to succeed")
	}
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRedisGateSingleHolderAcrossInstances(t *testing.T) {
	ctx := context.Background()
	_, client := newRedis(t)
	a := NewRedisGate(client, "", time.Minute)
	b := NewRedisGate(client, "", time.Minute)

	if ok, err := a.TryAcquire(ctx); err != nil || !ok {
		t.Fatalf("expected a to acquire, got ok=%v err=%v", ok, err)
	}
	if ok, _ := b.TryAcquire(ctx); ok {
		t.Fatal("expected b to be rejected while a holds the lock")
	}
	if !b.Held(ctx) {
		t.Error("expected b to observe the lock")
	}

	// b never acquired, so releasing it must not drop a's lock.
	if err := b.Release(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.Held(ctx) {
		t.Fatal("expected lock to survive a release by a non-holder")
	}

	if err := a.Release(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok, _ := b.TryAcquire(ctx); !ok {
		t.Error("expected b to acquire after a released")
	}
}

func TestRedisGateExpires(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)
	a := NewRedisGate(client, "lock", time.Minute)
	b := NewRedisGate(client, "lock", time.Minute)

	if ok, _ := a.TryAcquire(ctx); !ok {
		t.Fatal("expected a to acquire")
	}
	mr.FastForward(2 * time.Minute)
	if ok, _ := b.TryAcquire(ctx); !ok {
		t.Fatal("expected b to acquire after expiry")
	}

	// a's stale release must not remove b's lock.
	_ = a.Release(ctx)
	if !b.Held(ctx) {
		t.Error("expected b to still hold the lock")
	}
}

func TestRedisGateKeepsLockAlive(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)
	g := NewRedisGate(client, "lock", time.Minute)
	g.refreshEvery = 10 * time.Millisecond

	if ok, _ := g.TryAcquire(ctx); !ok {
		t.Fatal("expected acquire to succeed")
	}
	mr.FastForward(50 * time.Second)
	if ttl := mr.TTL("lock"); ttl > 15*time.Second {
		t.Fatalf("expected ttl to have run down, got %v", ttl)
	}

	deadline := time.Now().Add(2 * time.Second)
	for mr.TTL("lock") < 30*time.Second {
		if time.Now().After(deadline) {
			t.Fatalf("expected the lock to be extended, ttl=%v", mr.TTL("lock"))
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := g.Release(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mr.Exists("lock") {
		t.Error("expected lock to be removed on release")
	}
}
