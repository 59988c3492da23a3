package gateway

import (
	"sync"
	"time"
)

const rateWindow = time.Minute

// RateLimiter is a per-key sliding window limiter. Keys are client IPs for
// HTTP and connection IDs for WebSocket.
type RateLimiter struct {
	mu                sync.Mutex
	requestsPerMinute int
	requests          map[string][]time.Time
	lastCleanup       time.Time
	now               func() time.Time
}

// NewRateLimiter creates a limiter. A limit of zero or less disables it.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		requests:          make(map[string][]time.Time),
		lastCleanup:       time.Now(),
		now:               time.Now,
	}
}

// Allow records a request for key when it fits in the window. Otherwise it
// returns false and how long until the oldest request leaves the window.
func (r *RateLimiter) Allow(key string) (bool, time.Duration) {
	if r == nil || r.requestsPerMinute <= 0 {
		return true, 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cutoff := now.Add(-rateWindow)

	if now.Sub(r.lastCleanup) >= rateWindow {
		for k, times := range r.requests {
			if len(times) == 0 || !times[len(times)-1].After(cutoff) {
				delete(r.requests, k)
			}
		}
		r.lastCleanup = now
	}

	valid := r.requests[key][:0]
	for _, t := range r.requests[key] {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= r.requestsPerMinute {
		r.requests[key] = valid
		return false, valid[0].Add(rateWindow).Sub(now)
	}

	r.requests[key] = append(valid, now)
	return true, 0
}

// Forget drops the window kept for key
func (r *RateLimiter) Forget(key string) {
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.requests, key)
}

// Keys returns the number of tracked keys
func (r *RateLimiter) Keys() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.requests)
}
