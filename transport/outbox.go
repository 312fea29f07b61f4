package transport

import (
	"context"
	"sync"
	"time"
)

// outbox is the send side shared by the stream transports: a bounded queue
// drained by one writer goroutine, and a done channel closed exactly once.
type outbox struct {
	queue chan *OutboundMessage
	done  chan struct{}

	mu     sync.Mutex
	closed bool
}

func newOutbox(size int) outbox {
	return outbox{
		queue: make(chan *OutboundMessage, size),
		done:  make(chan struct{}),
	}
}

// push queues msg, blocking while the queue is full.
func (o *outbox) push(msg *OutboundMessage) error {
	if o.isClosed() {
		return ErrClosed
	}
	select {
	case o.queue <- msg:
		return nil
	case <-o.done:
		return ErrClosed
	}
}

// shut closes done. It reports false if the outbox was already shut.
func (o *outbox) shut() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return false
	}
	o.closed = true
	close(o.done)
	return true
}

func (o *outbox) isClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// pump hands queued messages to write until ctx ends or the outbox is
// shut, then flushes whatever is still queued. A nil tick never fires.
func (o *outbox) pump(ctx context.Context, write func(*OutboundMessage), tick <-chan time.Time, onTick func()) {
	for {
		select {
		case <-ctx.Done():
			o.flush(write)
			return
		case <-o.done:
			o.flush(write)
			return
		case <-tick:
			onTick()
		case msg := <-o.queue:
			write(msg)
		}
	}
}

func (o *outbox) flush(write func(*OutboundMessage)) {
	for {
		select {
		case msg := <-o.queue:
			write(msg)
		default:
			return
		}
	}
}
