package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryRateLimiter is the in-process fallback used when no Redis URL is
// configured. Same sliding-window semantics as the Redis limiter, scoped to
// one process.
type MemoryRateLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

func NewMemoryRateLimiter() *MemoryRateLimiter {
	return &MemoryRateLimiter{windows: map[string][]time.Time{}}
}

func (rl *MemoryRateLimiter) AllowRequest(ctx context.Context, key string, limit int, windowSeconds int) (bool, int, error) {
	now := time.Now()
	windowStart := now.Add(-time.Duration(windowSeconds) * time.Second)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	kept := rl.windows[key][:0]
	for _, ts := range rl.windows[key] {
		if ts.After(windowStart) {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, now)
	rl.windows[key] = kept

	remaining := limit - len(kept)
	if remaining < 0 {
		remaining = 0
	}
	return len(kept) <= limit, remaining, nil
}
