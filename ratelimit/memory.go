package ratelimit

import (
	"sync"
	"time"
)

// bucket implements a token bucket.
type bucket struct {
	capacity   int           // maximum tokens
	available  int           // current tokens
	window     time.Duration // refill window
	lastRefill time.Time     // last refill time
	override   bool          // set through SetCapacity
}

// refill adds tokens for the time elapsed since the last refill.
// Returns true if tokens were added.
func (b *bucket) refill(now time.Time) bool {
	if b.window == 0 || b.capacity == 0 {
		return false
	}

	elapsed := now.Sub(b.lastRefill)
	if elapsed <= 0 {
		return false
	}

	// rate = capacity / window
	tokensToAdd := int(float64(b.capacity) * float64(elapsed) / float64(b.window))
	if tokensToAdd > 0 {
		b.available += tokensToAdd
		if b.available > b.capacity {
			b.available = b.capacity
		}
		b.lastRefill = now
		return true
	}
	return false
}

// MemoryLimiter keeps one token bucket per key in process memory.
// Keys without an override share the default capacity and window.
// It is safe for concurrent use.
type MemoryLimiter struct {
	mu       sync.Mutex
	capacity int
	window   time.Duration
	buckets  map[string]*bucket
	closed   bool
	nowFunc  func() time.Time // for testing
}

// NewMemoryLimiter creates a limiter that allows capacity calls per window
// for every key.
func NewMemoryLimiter(capacity int, window time.Duration) (*MemoryLimiter, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	if window <= 0 {
		return nil, ErrInvalidWindow
	}
	return &MemoryLimiter{
		capacity: capacity,
		window:   window,
		buckets:  make(map[string]*bucket),
		nowFunc:  time.Now,
	}, nil
}

// SetCapacity overrides the limit for key.
func (m *MemoryLimiter) SetCapacity(key string, capacity int, window time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	if capacity <= 0 || window <= 0 {
		delete(m.buckets, key)
		return
	}

	if b, exists := m.buckets[key]; exists {
		b.capacity = capacity
		b.window = window
		b.override = true
		if b.available > capacity {
			b.available = capacity
		}
		return
	}
	m.buckets[key] = &bucket{
		capacity:   capacity,
		available:  capacity,
		window:     window,
		lastRefill: m.nowFunc(),
		override:   true,
	}
}

// GetCapacity returns the current bucket state for key.
func (m *MemoryLimiter) GetCapacity(key string) *Capacity {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, exists := m.buckets[key]
	if !exists {
		return nil
	}

	b.refill(m.nowFunc())

	return &Capacity{
		Key:       key,
		Available: b.available,
		Total:     b.capacity,
		Window:    b.window,
	}
}

// TryAcquire takes a token for key, creating a full default bucket on
// first use.
func (m *MemoryLimiter) TryAcquire(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}

	now := m.nowFunc()
	b, exists := m.buckets[key]
	if !exists {
		b = &bucket{
			capacity:   m.capacity,
			available:  m.capacity,
			window:     m.window,
			lastRefill: now,
		}
		m.buckets[key] = b
	}

	b.refill(now)

	if b.available > 0 {
		b.available--
		return true
	}
	return false
}

// Prune drops default buckets that have refilled completely. They are
// indistinguishable from a fresh bucket, so nothing is lost. Returns the
// number of buckets removed.
func (m *MemoryLimiter) Prune() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowFunc()
	removed := 0
	for key, b := range m.buckets {
		if b.override {
			continue
		}
		b.refill(now)
		if b.available >= b.capacity {
			delete(m.buckets, key)
			removed++
		}
	}
	return removed
}

// Close shuts down the limiter.
func (m *MemoryLimiter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.closed = true
	return nil
}

var _ RateLimiter = (*MemoryLimiter)(nil)
