package interaction

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/fpang/profile-agent/internal/config"
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the SleepFunc used outside tests.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Pacer draws randomized delays between actions.
type Pacer struct {
	mu    sync.Mutex
	rng   *rand.Rand
	sleep SleepFunc
}

// NewPacer returns a Pacer that draws from rng and sleeps with sleep. A nil
// rng is seeded from the clock; a nil sleep uses Sleep.
func NewPacer(rng *rand.Rand, sleep SleepFunc) *Pacer {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if sleep == nil {
		sleep = Sleep
	}
	return &Pacer{rng: rng, sleep: sleep}
}

// Between returns a duration drawn uniformly from [lo, hi] at millisecond
// resolution.
func (p *Pacer) Between(lo, hi time.Duration) time.Duration {
	if hi < lo {
		lo, hi = hi, lo
	}
	span := int64((hi - lo) / time.Millisecond)
	p.mu.Lock()
	n := p.rng.Int63n(span + 1)
	p.mu.Unlock()
	return lo + time.Duration(n)*time.Millisecond
}

// Wait sleeps for a delay drawn from r.
func (p *Pacer) Wait(ctx context.Context, r config.Range) error {
	return p.WaitScaled(ctx, r, 1)
}

// WaitScaled sleeps for a delay drawn from r with both bounds multiplied by
// factor.
func (p *Pacer) WaitScaled(ctx context.Context, r config.Range, factor int) error {
	lo, hi := r.Durations(factor)
	return p.sleep(ctx, p.Between(lo, hi))
}

// Pause sleeps for exactly d.
func (p *Pacer) Pause(ctx context.Context, d time.Duration) error {
	return p.sleep(ctx, d)
}
