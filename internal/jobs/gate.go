package jobs

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Gate is a single-permit admission gate. At most one holder at a time; a
// failed TryAcquire never waits.
type Gate interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
	Held(ctx context.Context) bool
}

// LocalGate is a Gate for a single process.
type LocalGate struct {
	held atomic.Bool
}

func (g *LocalGate) TryAcquire(ctx context.Context) (bool, error) {
	return g.held.CompareAndSwap(false, true), nil
}

func (g *LocalGate) Release(ctx context.Context) error {
	g.held.Store(false)
	return nil
}

func (g *LocalGate) Held(ctx context.Context) bool {
	return g.held.Load()
}

// DefaultLockKey is the Redis key RedisGate locks when none is given.
const DefaultLockKey = "profile-agent:batch-lock"

// RedisGate is a Gate shared by every instance pointing at the same Redis.
// The lock expires after ttl so a crashed holder cannot wedge the fleet;
// while held, a watchdog extends it every refreshEvery.
type RedisGate struct {
	client       *redis.Client
	key          string
	ttl          time.Duration
	refreshEvery time.Duration

	mu    sync.Mutex
	token string
	stop  chan struct{}
}

// NewRedisGate returns a RedisGate locking key for ttl at a time.
func NewRedisGate(client *redis.Client, key string, ttl time.Duration) *RedisGate {
	if key == "" {
		key = DefaultLockKey
	}
	return &RedisGate{client: client, key: key, ttl: ttl, refreshEvery: ttl / 3}
}

func (g *RedisGate) TryAcquire(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, g.key, token, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire batch lock: %w", err)
	}
	if !ok {
		return false, nil
	}

	g.mu.Lock()
	if g.stop != nil {
		close(g.stop)
	}
	stop := make(chan struct{})
	g.token, g.stop = token, stop
	g.mu.Unlock()

	go g.keepAlive(token, stop)
	return true, nil
}

// keepAlive extends the lock until stop is closed or the lock is lost.
func (g *RedisGate) keepAlive(token string, stop <-chan struct{}) {
	if g.refreshEvery <= 0 {
		return
	}
	ticker := time.NewTicker(g.refreshEvery)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), g.refreshEvery)
			n, err := refreshScript.Run(ctx, g.client, []string{g.key}, token, g.ttl.Milliseconds()).Int()
			cancel()
			switch {
			case err != nil:
				log.Warn().Err(err).Str("key", g.key).Msg("Failed to extend batch lock")
			case n == 0:
				log.Error().Str("key", g.key).Msg("Batch lock lost to another holder")
				return
			}
		}
	}
}

// Release drops the lock only if this gate still owns it.
func (g *RedisGate) Release(ctx context.Context) error {
	g.mu.Lock()
	token, stop := g.token, g.stop
	g.token, g.stop = "", nil
	g.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if token == "" {
		return nil
	}
	if err := releaseScript.Run(ctx, g.client, []string{g.key}, token).Err(); err != nil {
		return fmt.Errorf("release batch lock: %w", err)
	}
	return nil
}

func (g *RedisGate) Held(ctx context.Context) bool {
	n, err := g.client.Exists(ctx, g.key).Result()
	return err == nil && n > 0
}

var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

var refreshScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`)
