package ratelimit

import (
	"errors"
	"time"
)

// Common errors.
var (
	ErrClosed          = errors.New("limiter closed")
	ErrInvalidCapacity = errors.New("invalid capacity")
	ErrInvalidWindow   = errors.New("invalid window")
)

// RateLimiter meters calls per key, normally an account id.
type RateLimiter interface {
	// TryAcquire takes a token for key without blocking.
	// Returns false when the key's bucket is empty or the limiter is closed.
	TryAcquire(key string) bool

	// SetCapacity overrides the default limit for one key.
	// A non-positive capacity or window drops the override.
	SetCapacity(key string, capacity int, window time.Duration)

	// GetCapacity returns the current bucket state for key, or nil if
	// key has not been seen.
	GetCapacity(key string) *Capacity

	// Close stops admitting calls.
	Close() error
}

// Capacity describes one key's bucket.
type Capacity struct {
	// Key the bucket belongs to.
	Key string

	// Available is the current number of available tokens.
	Available int

	// Total is the maximum capacity (tokens per window).
	Total int

	// Window is the refill period.
	Window time.Duration
}
