package ratelimit

import (
	"context"
	"sync"
	"time"
)

type windowCount struct {
	window int64
	count  int
}

// MemoryLimiter counts fixed windows in process memory.
type MemoryLimiter struct {
	mu       sync.Mutex
	counters map[string]*windowCount
	current  int64
}

// NewMemoryLimiter constructs a MemoryLimiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{counters: make(map[string]*windowCount)}
}

// Allow increments the counter of the window containing now.
func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration, now time.Time) (Result, error) {
	if limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}
	idx, reset := windowStart(now, window)

	l.mu.Lock()
	defer l.mu.Unlock()
	if idx > l.current {
		l.current = idx
		l.sweep()
	}
	c, ok := l.counters[key]
	if !ok || c.window != idx {
		c = &windowCount{window: idx}
		l.counters[key] = c
	}
	if c.count >= limit {
		return Result{Allowed: false, Reset: reset}, nil
	}
	c.count++
	return Result{Allowed: true, Remaining: limit - c.count, Reset: reset}, nil
}

// sweep drops counters of finished windows. Caller holds l.mu.
func (l *MemoryLimiter) sweep() {
	for key, c := range l.counters {
		if c.window < l.current {
			delete(l.counters, key)
		}
	}
}
