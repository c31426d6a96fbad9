package llm

import (
	"sync"
	"time"
)

// rateLimiter tracks requests in the current 60s window and blocks a caller
// whose request would exceed rpmLimit until the window rolls over. It is
// purely client-side: server-side rejection still routes through the retry
// path's quota classification.
type rateLimiter struct {
	mu        sync.Mutex
	rpmLimit  int
	windowStart time.Time
	count     int
	sleepFunc func(time.Duration)
	nowFunc   func() time.Time
}

func newRateLimiter(rpmLimit int) *rateLimiter {
	if rpmLimit <= 0 {
		rpmLimit = defaultRPMLimit
	}
	return &rateLimiter{
		rpmLimit:    rpmLimit,
		windowStart: time.Now(),
		sleepFunc:   time.Sleep,
		nowFunc:     time.Now,
	}
}

const defaultRPMLimit = 15

// wait blocks, if necessary, until a new request is allowed under the
// current 60s window, then records it.
func (r *rateLimiter) wait() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.nowFunc()
	if now.Sub(r.windowStart) >= time.Minute {
		r.windowStart = now
		r.count = 0
	}

	if r.count >= r.rpmLimit {
		remaining := time.Minute - now.Sub(r.windowStart)
		if remaining > 0 {
			r.sleepFunc(remaining)
		}
		r.windowStart = r.nowFunc()
		r.count = 0
	}

	r.count++
}
