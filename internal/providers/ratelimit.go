package providers

import (
	"context"
	"sync"
	"time"
)

// RateLimiter enforces two independent constraints on backend calls: a
// maximum number of calls within any rolling 60-second window, and a
// minimum interval between consecutive calls. Whichever requires the
// longer wait dominates.
//
// One instance is shared process-wide by injection, because the backend's
// rate limit is global to the API key. There is no package-level state, so
// independent pipelines (and tests) can use isolated limiters.
type RateLimiter struct {
	mu sync.Mutex

	// Configuration
	requestsPerMinute int
	minInterval       time.Duration
	window            time.Duration

	// Window state
	windowStart time.Time
	windowCount int
	lastCall    time.Time

	// Statistics
	totalCalls  int64
	totalWaited time.Duration
}

// RateLimiterStatus reports current limiter state.
type RateLimiterStatus struct {
	RequestsPerMinute int           `json:"requests_per_minute"`
	WindowCount       int           `json:"window_count"`
	WindowRemaining   time.Duration `json:"window_remaining"`
	TotalCalls        int64         `json:"total_calls"`
	TotalWaited       time.Duration `json:"total_waited"`
}

// NewRateLimiter creates a rate limiter allowing requestsPerMinute calls
// per rolling minute with at least minInterval between consecutive calls.
func NewRateLimiter(requestsPerMinute int, minInterval time.Duration) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60 // Default
	}
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		minInterval:       minInterval,
		window:            time.Minute,
	}
}

// Wait blocks until both constraints are satisfied, then records the call.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		now := time.Now()

		// Reset the window when it has elapsed.
		if r.windowStart.IsZero() || now.Sub(r.windowStart) >= r.window {
			r.windowStart = now
			r.windowCount = 0
		}

		var wait time.Duration
		if r.windowCount >= r.requestsPerMinute {
			wait = r.windowStart.Add(r.window).Sub(now)
		}
		if r.minInterval > 0 && !r.lastCall.IsZero() {
			if gap := r.minInterval - now.Sub(r.lastCall); gap > wait {
				wait = gap
			}
		}

		if wait <= 0 {
			r.windowCount++
			r.lastCall = now
			r.totalCalls++
			r.mu.Unlock()
			return nil
		}
		r.mu.Unlock()

		// Wait outside lock
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
			r.mu.Lock()
			r.totalWaited += wait
			r.mu.Unlock()
		}
	}
}

// Status returns current limiter status.
func (r *RateLimiter) Status() RateLimiterStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	var remaining time.Duration
	if !r.windowStart.IsZero() {
		if left := r.windowStart.Add(r.window).Sub(time.Now()); left > 0 {
			remaining = left
		}
	}

	return RateLimiterStatus{
		RequestsPerMinute: r.requestsPerMinute,
		WindowCount:       r.windowCount,
		WindowRemaining:   remaining,
		TotalCalls:        r.totalCalls,
		TotalWaited:       r.totalWaited,
	}
}
