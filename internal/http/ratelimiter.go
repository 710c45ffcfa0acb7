package http

import (
	"sync"
	"time"
)

type windowCounter struct {
	start time.Time
	count int
}

// RateLimiter counts requests per key in fixed, clock-aligned windows.
type RateLimiter struct {
	mu        sync.Mutex
	counters  map[string]*windowCounter
	limit     int
	window    time.Duration
	lastPrune time.Time
	now       func() time.Time
}

// NewRateLimiter allows limit requests per key in each window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		counters: make(map[string]*windowCounter),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// Allow records a request for key. When the key is over budget it returns false and the time
// remaining until the current window closes.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	if key == "" {
		key = "unknown"
	}

	now := rl.now()
	start := now.Truncate(rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.pruneStale(start)

	counter, ok := rl.counters[key]
	if !ok || !counter.start.Equal(start) {
		counter = &windowCounter{start: start}
		rl.counters[key] = counter
	}

	if counter.count >= rl.limit {
		return false, start.Add(rl.window).Sub(now)
	}

	counter.count++
	return true, 0
}

// pruneStale drops counters from past windows, at most once per window. Callers hold mu.
func (rl *RateLimiter) pruneStale(current time.Time) {
	if !rl.lastPrune.Before(current) {
		return
	}
	rl.lastPrune = current

	for key, counter := range rl.counters {
		if counter.start.Before(current) {
			delete(rl.counters, key)
		}
	}
}

func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.counters)
}
