package transport

import (
	"bufio"
	"context"
	"io"
	"sync"
)

// maxLineSize bounds a single newline-delimited frame.
const maxLineSize = 1024 * 1024

// StdioTransport implements Transport over newline-delimited JSON on a
// reader/writer pair, normally stdin/stdout.
type StdioTransport struct {
	in   io.Reader
	out  io.Writer
	recv chan *InboundMessage
	outbox

	wmu sync.Mutex
}

// NewStdioTransport creates a new stdio transport.
func NewStdioTransport(r io.Reader, w io.Writer, cfg Config) *StdioTransport {
	cfg = cfg.withDefaults()
	return &StdioTransport{
		in:     r,
		out:    w,
		recv:   make(chan *InboundMessage, cfg.RecvBufferSize),
		outbox: newOutbox(cfg.SendBufferSize),
	}
}

// Recv returns the channel for incoming messages. It is closed at end of input.
func (t *StdioTransport) Recv() <-chan *InboundMessage { return t.recv }

// Send queues a message for delivery.
func (t *StdioTransport) Send(msg *OutboundMessage) error { return t.push(msg) }

// Run blocks until ctx is cancelled, then flushes queued responses. The
// reader goroutine is not awaited: a blocked read on stdin cannot be
// interrupted.
func (t *StdioTransport) Run(ctx context.Context) error {
	go t.scan(ctx)

	flushed := make(chan struct{})
	go func() {
		defer close(flushed)
		t.pump(ctx, t.writeLine, nil, nil)
	}()

	<-ctx.Done()
	t.Close()
	<-flushed

	return ctx.Err()
}

// Close initiates shutdown.
func (t *StdioTransport) Close() error {
	t.shut()
	return nil
}

// scan reads one frame per line. Blank lines are skipped and rejected
// frames are answered in place.
func (t *StdioTransport) scan(ctx context.Context) {
	defer close(t.recv)

	lines := bufio.NewScanner(t.in)
	lines.Buffer(make([]byte, 64*1024), maxLineSize)

	for lines.Scan() {
		if len(lines.Bytes()) == 0 {
			continue
		}
		frame := append([]byte(nil), lines.Bytes()...)

		msg, err := ParseInbound(frame)
		if err != nil {
			t.Send(parseErrorResponse(frame, err))
			continue
		}

		select {
		case t.recv <- msg:
		case <-ctx.Done():
			return
		case <-t.done:
			return
		}
	}
}

func (t *StdioTransport) writeLine(msg *OutboundMessage) {
	data, err := MarshalOutbound(msg)
	if err != nil {
		return
	}

	t.wmu.Lock()
	defer t.wmu.Unlock()
	t.out.Write(append(data, '\n'))
}
