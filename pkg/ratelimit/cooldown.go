package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Cooldown spaces calls per key by a fixed interval using a single
// last-seen time per key. Callers reserve the next free slot and wait for it.
type Cooldown struct {
	mu       sync.Mutex
	interval time.Duration
	next     map[string]time.Time
	now      func() time.Time
}

// NewCooldown creates a cooldown with the given spacing.
func NewCooldown(interval time.Duration) *Cooldown {
	return &Cooldown{
		interval: interval,
		next:     make(map[string]time.Time),
		now:      time.Now,
	}
}

// Reserve claims the next slot for key and returns how long to wait for it.
func (c *Cooldown) Reserve(key string) time.Duration {
	if c.interval <= 0 {
		return 0
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	slot := now
	if n, ok := c.next[key]; ok && n.After(now) {
		slot = n
	}
	c.next[key] = slot.Add(c.interval)
	return slot.Sub(now)
}

// Wait blocks until key's reserved slot or ctx is done.
func (c *Cooldown) Wait(ctx context.Context, key string) error {
	d := c.Reserve(key)
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

// Sweep drops keys whose next slot is already in the past.
func (c *Cooldown) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, n := range c.next {
		if !n.After(now) {
			delete(c.next, k)
			removed++
		}
	}
	return removed
}
