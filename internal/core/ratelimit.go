package core

import (
	"time"

	"github.com/vovakirdan/guildchat-server/internal/proto"
)

// DefaultIntervals returns the minimum spacing between two accepted events
// of the same kind from one connection. Kinds not listed are unthrottled.
func DefaultIntervals() map[string]time.Duration {
	return map[string]time.Duration{
		proto.KindMessageCreate: time.Second,
		proto.KindMessageUpdate: 2 * time.Second,
		proto.KindGuildCreate:   time.Minute,
	}
}

// RateLimiter gates inbound events per kind. It belongs to a single
// connection's read unit and is not safe for concurrent use.
type RateLimiter struct {
	intervals map[string]time.Duration
	last      map[string]time.Time
	now       func() time.Time
}

// NewRateLimiter builds a limiter. A nil clock uses time.Now.
func NewRateLimiter(intervals map[string]time.Duration, now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		intervals: intervals,
		last:      make(map[string]time.Time),
		now:       now,
	}
}

// Allow reports whether an event of kind may pass, and records it if so.
// Dropped events do not reset the window.
func (r *RateLimiter) Allow(kind string) bool {
	interval, ok := r.intervals[kind]
	if !ok || interval <= 0 {
		return true
	}

	now := r.now()
	if last, seen := r.last[kind]; seen && now.Sub(last) < interval {
		return false
	}
	r.last[kind] = now
	return true
}
