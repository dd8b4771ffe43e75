package ratelimit

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/richxcame/scamshield/pkg/config"
)

const defaultShardPow = 5

// MemoryLimiter keeps per-key request timestamps in a lock-striped map.
// Entries are pruned to the longest window on every access and by Sweep.
type MemoryLimiter struct {
	shards  []memShard
	mask    uint32
	windows []Window
	horizon time.Duration
	enabled bool
	now     func() time.Time
}

type memShard struct {
	mu sync.Mutex
	m  map[string][]time.Time
}

// NewMemoryLimiter creates an in-process limiter from cfg.
func NewMemoryLimiter(cfg config.RateLimitConfig) *MemoryLimiter {
	return newMemoryLimiter(Windows(cfg), cfg.Enabled)
}

func newMemoryLimiter(windows []Window, enabled bool) *MemoryLimiter {
	n := 1 << defaultShardPow
	l := &MemoryLimiter{
		shards:  make([]memShard, n),
		mask:    uint32(n - 1),
		windows: windows,
		horizon: longest(windows),
		enabled: enabled,
		now:     time.Now,
	}
	for i := range l.shards {
		l.shards[i].m = make(map[string][]time.Time)
	}
	return l
}

// WithNow overrides the clock, for tests.
func (l *MemoryLimiter) WithNow(now func() time.Time) *MemoryLimiter {
	l.now = now
	return l
}

func (l *MemoryLimiter) shardFor(key string) *memShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &l.shards[h.Sum32()&l.mask]
}

// Allow records a request for key unless one of the windows is full.
// Rejected requests are not recorded.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	if !l.enabled {
		return allowAll(key), nil
	}

	now := l.now()
	sh := l.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	stamps := prune(sh.m[key], now.Add(-l.horizon))

	remaining := -1
	for _, w := range l.windows {
		cutoff := now.Add(-w.Size)
		count, oldest := 0, time.Time{}
		for _, ts := range stamps {
			if ts.After(cutoff) {
				if count == 0 {
					oldest = ts
				}
				count++
			}
		}
		if count >= w.Limit {
			sh.m[key] = stamps
			rejectionsTotal.WithLabelValues(w.Name, "memory").Inc()
			return Result{
				Key:        key,
				Window:     w.Name,
				Reason:     w.Reason,
				RetryAfter: oldest.Add(w.Size).Sub(now),
			}, nil
		}
		if left := w.Limit - count - 1; remaining < 0 || left < remaining {
			remaining = left
		}
	}

	sh.m[key] = append(stamps, now)
	return Result{Allowed: true, Key: key, Remaining: remaining}, nil
}

// prune drops timestamps at or before cutoff. stamps is sorted ascending.
func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return stamps
	}
	return append(stamps[:0], stamps[i:]...)
}

// Sweep removes keys with no timestamps inside the longest window and
// returns how many were removed.
func (l *MemoryLimiter) Sweep() int {
	cutoff := l.now().Add(-l.horizon)
	removed := 0
	for i := range l.shards {
		sh := &l.shards[i]
		sh.mu.Lock()
		for key, stamps := range sh.m {
			if len(stamps) == 0 || !stamps[len(stamps)-1].After(cutoff) {
				delete(sh.m, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *MemoryLimiter) Len() int {
	n := 0
	for i := range l.shards {
		sh := &l.shards[i]
		sh.mu.Lock()
		n += len(sh.m)
		sh.mu.Unlock()
	}
	return n
}
