package fakeapi

import (
	"sync"
	"time"
)

// rateLimiter is a sliding window limiter keyed by identifier
type rateLimiter struct {
	mu       sync.Mutex
	clock    Clock
	requests map[string][]time.Time
	window   time.Duration
	maxReqs  int
}

func newRateLimiter(clock Clock, window time.Duration, maxReqs int) *rateLimiter {
	return &rateLimiter{
		clock:    clock,
		requests: make(map[string][]time.Time),
		window:   window,
		maxReqs:  maxReqs,
	}
}

// Allow checks if a request is allowed for the given key
func (rl *rateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	cutoff := now.Add(-rl.window)

	filtered := rl.requests[key][:0]
	for _, t := range rl.requests[key] {
		if t.After(cutoff) {
			filtered = append(filtered, t)
		}
	}

	if len(filtered) >= rl.maxReqs {
		rl.requests[key] = filtered
		return false
	}

	rl.requests[key] = append(filtered, now)
	return true
}
