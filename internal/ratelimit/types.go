// Package ratelimit enforces fixed-window request limits per client, in memory or in Redis.
package ratelimit

import (
	"context"
	"time"
)

// Result describes the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
}

// Limiter provides rate limit checks.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Result, error)
}

// Scope names the group of endpoints a counter covers.
type Scope string

const (
	ScopeAuth     Scope = "auth"
	ScopeOTP      Scope = "otp"
	ScopeProducts Scope = "products"
)

// windowStart returns the index of the fixed window containing now and the instant it ends.
func windowStart(now time.Time, window time.Duration) (int64, time.Time) {
	if window <= 0 {
		window = time.Second
	}
	idx := now.UnixNano() / int64(window)
	reset := time.Unix(0, (idx+1)*int64(window)).UTC()
	return idx, reset
}
