package delivery

import (
	"sync"
	"time"
)

// RateLimiter enforces minimum interval between successful attempt starts.
// Interval is measured from attempt start, not completion.
type RateLimiter struct {
	mu          sync.Mutex
	last        time.Time
	MinInterval time.Duration
}

func NewRateLimiter(min time.Duration) *RateLimiter { return &RateLimiter{MinInterval: min} }

func (rl *RateLimiter) Allow(now time.Time) bool { return rl.Remaining(now) <= 0 }

// Remaining returns how long caller must wait before next attempt may start.
func (rl *RateLimiter) Remaining(now time.Time) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.last.IsZero() {
		return 0
	}
	return rl.MinInterval - now.Sub(rl.last)
}

// Record marks successful attempt which started at `start`.
// Older starts never move limiter back.
func (rl *RateLimiter) Record(start time.Time) {
	rl.mu.Lock()
	if start.After(rl.last) {
		rl.last = start
	}
	rl.mu.Unlock()
}

func (rl *RateLimiter) Last() time.Time {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.last
}
