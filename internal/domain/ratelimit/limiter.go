package ratelimit

import "context"

// RateLimiter is the interface for rate limiting operations.
//
// Implementations use a fixed-window counter: each key tracks a window-start
// instant and a count, not a smoothed arrival-time estimate. A request
// either lands in the current window (count compared against the
// configured rate) or starts a fresh one.
//
// The interface is storage-agnostic; the only implementation here is
// in-memory, matching the gateway's "process-wide state, no persistence"
// design.
type RateLimiter interface {
	// Allow checks if a request identified by key is allowed under the given config.
	// It returns the result of the check and any error that occurred.
	//
	// The key should be a structured identifier created by FormatKey.
	// The config specifies the rate limit parameters (rate, period).
	//
	// Allow atomically increments the window counter and returns the result.
	// If the request is not allowed, RetryAfter in the result indicates when
	// the next request will be allowed.
	Allow(ctx context.Context, key string, config RateLimitConfig) (RateLimitResult, error)
}
