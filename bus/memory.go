package bus

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
)

// MemoryBus delivers messages between goroutines of one process. A full
// subscriber buffer drops the message for that subscriber only.
type MemoryBus struct {
	bufferSize int
	dropped    atomic.Uint64

	mu     sync.RWMutex
	subs   map[*memorySub]struct{}
	closed bool
}

// memorySub.ch is closed under bus.mu, exactly once, when the sub leaves
// the bus's set.
type memorySub struct {
	bus     *MemoryBus
	pattern string
	ch      chan *Message
}

var _ MessageBus = (*MemoryBus)(nil)

func NewMemoryBus(cfg Config) *MemoryBus {
	size := cfg.BufferSize
	if size <= 0 {
		size = DefaultConfig().BufferSize
	}
	return &MemoryBus{bufferSize: size, subs: map[*memorySub]struct{}{}}
}

// Publish copies data once and offers it to every matching subscriber.
// Subscribers share the copy.
func (b *MemoryBus) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ValidateSubject(subject); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	payload := bytes.Clone(data)
	for sub := range b.subs {
		if !Matches(sub.pattern, subject) {
			continue
		}
		select {
		case sub.ch <- &Message{Subject: subject, Data: payload}:
		default:
			b.dropped.Add(1)
		}
	}
	return nil
}

// Dropped counts deliveries lost to full subscriber buffers.
func (b *MemoryBus) Dropped() uint64 { return b.dropped.Load() }

func (b *MemoryBus) Subscribe(subject string) (Subscription, error) {
	if err := ValidatePattern(subject); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	sub := &memorySub{bus: b, pattern: subject, ch: make(chan *Message, b.bufferSize)}
	b.subs[sub] = struct{}{}
	return sub, nil
}

// Close ends every subscription. Later calls do nothing.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for sub := range b.subs {
		b.drop(sub)
	}
	return nil
}

// drop removes sub and closes its channel. Callers hold mu.
func (b *MemoryBus) drop(sub *memorySub) {
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.ch)
}

func (s *memorySub) Messages() <-chan *Message { return s.ch }

// Unsubscribe is idempotent.
func (s *memorySub) Unsubscribe() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	s.bus.drop(s)
	return nil
}
