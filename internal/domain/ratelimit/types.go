// Package ratelimit provides rate limiting domain types.
package ratelimit

import (
	"fmt"
	"time"
)

// RateLimitConfig defines a fixed-window rate limit: at most Rate events per
// Period, counted from the window's start instant.
type RateLimitConfig struct {
	// Rate is the number of allowed events in the period.
	Rate int

	// Period is the window's duration.
	Period time.Duration
}

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	// Allowed indicates whether the request is allowed.
	Allowed bool

	// Remaining is the number of remaining requests in the current window.
	Remaining int

	// RetryAfter is the duration until the window resets and a denied
	// request would be allowed. Only meaningful when Allowed is false.
	RetryAfter time.Duration
}

// KeyType identifies the type of rate limit key.
type KeyType string

const (
	// KeyTypeCredential is for the /token issuance bucket, keyed by address.
	KeyTypeCredential KeyType = "credential"

	// KeyTypeIngress is for the proxy-ingress bucket, keyed by the
	// extracted client address.
	KeyTypeIngress KeyType = "ingress"
)

// keyPrefix is the base prefix for all rate limit keys.
const keyPrefix = "ratelimit"

// FormatKey returns a structured rate limit key.
// Format: "ratelimit:{type}:{value}"
// Examples:
//   - FormatKey(KeyTypeCredential, "192.168.1.1") -> "ratelimit:credential:192.168.1.1"
//   - FormatKey(KeyTypeIngress, "5.6.7.8") -> "ratelimit:ingress:5.6.7.8"
func FormatKey(keyType KeyType, value string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, keyType, value)
}
