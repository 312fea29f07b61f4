package bus

import (
	"context"
	"sync"
	"testing"
	"time"
)

// --- Unit Tests ---

func TestValidateSubject(t *testing.T) {
	tests := []struct {
		subject string
		wantErr bool
	}{
		{"foo", false},
		{"todokit.task.appended", false},
		{"", true},
		{"foo..bar", true},
		{".foo", true},
		{"foo bar", true},
		{"foo.*", true},
		{"foo.>", true},
	}

	for _, tt := range tests {
		err := ValidateSubject(tt.subject)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateSubject(%q) = %v, wantErr %v", tt.subject, err, tt.wantErr)
		}
	}
}

func TestValidatePattern(t *testing.T) {
	tests := []struct {
		pattern string
		wantErr bool
	}{
		{"todokit.>", false},
		{"todokit.*.appended", false},
		{"*", false},
		{">", false},
		{"todokit.>.x", true},
		{"todokit.ta*", true},
		{"", true},
	}

	for _, tt := range tests {
		err := ValidatePattern(tt.pattern)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidatePattern(%q) = %v, wantErr %v", tt.pattern, err, tt.wantErr)
		}
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		pattern string
		subject string
		want    bool
	}{
		{"a.b", "a.b", true},
		{"a.b", "a.c", false},
		{"a.*", "a.b", true},
		{"a.*", "a.b.c", false},
		{"a.>", "a.b.c", true},
		{"a.>", "a", false},
		{"*.b", "a.b", true},
		{"a.b.c", "a.b", false},
	}

	for _, tt := range tests {
		if got := Matches(tt.pattern, tt.subject); got != tt.want {
			t.Errorf("Matches(%q, %q) = %v, want %v", tt.pattern, tt.subject, got, tt.want)
		}
	}
}

func TestMemoryBus_Publish(t *testing.T) {
	bus := NewMemoryBus(DefaultConfig())
	defer bus.Close()

	// Publish without subscribers should not error
	if err := bus.Publish(context.Background(), "test", []byte("hello")); err != nil {
		t.Errorf("Publish error: %v", err)
	}
}

func TestMemoryBus_PublishInvalidSubject(t *testing.T) {
	bus := NewMemoryBus(DefaultConfig())
	defer bus.Close()

	if err := bus.Publish(context.Background(), "", []byte("hello")); err != ErrInvalidSubject {
		t.Errorf("expected ErrInvalidSubject, got %v", err)
	}
}

func TestMemoryBus_PublishCanceled(t *testing.T) {
	bus := NewMemoryBus(DefaultConfig())
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := bus.Publish(ctx, "test", nil); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// --- Integration Tests ---

func TestMemoryBus_Subscribe(t *testing.T) {
	bus := NewMemoryBus(DefaultConfig())
	defer bus.Close()

	sub, err := bus.Subscribe("todokit.>")
	if err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}
	defer sub.Unsubscribe()

	bus.Publish(context.Background(), "todokit.task.appended", []byte("hello"))
	bus.Publish(context.Background(), "other.subject", []byte("ignored"))

	select {
	case msg := <-sub.Messages():
		if string(msg.Data) != "hello" {
			t.Errorf("data = %q, want %q", msg.Data, "hello")
		}
		if msg.Subject != "todokit.task.appended" {
			t.Errorf("subject = %q", msg.Subject)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}

	select {
	case msg := <-sub.Messages():
		t.Errorf("unexpected message on %s", msg.Subject)
	default:
	}
}

func TestMemoryBus_FanOut(t *testing.T) {
	bus := NewMemoryBus(DefaultConfig())
	defer bus.Close()

	a, _ := bus.Subscribe("events")
	b, _ := bus.Subscribe("events")

	bus.Publish(context.Background(), "events", []byte("x"))

	for i, sub := range []Subscription{a, b} {
		select {
		case <-sub.Messages():
		case <-time.After(time.Second):
			t.Errorf("subscriber %d did not receive", i)
		}
	}
}

func TestMemoryBus_PayloadIsCopied(t *testing.T) {
	bus := NewMemoryBus(DefaultConfig())
	defer bus.Close()

	sub, _ := bus.Subscribe("events")
	data := []byte("abc")
	bus.Publish(context.Background(), "events", data)
	data[0] = 'z'

	msg := <-sub.Messages()
	if string(msg.Data) != "abc" {
		t.Errorf("payload aliased publisher buffer: %s", msg.Data)
	}
}

func TestMemoryBus_FullBufferDrops(t *testing.T) {
	bus := NewMemoryBus(Config{BufferSize: 1})
	defer bus.Close()

	sub, _ := bus.Subscribe("events")
	defer sub.Unsubscribe()

	ctx := context.Background()
	bus.Publish(ctx, "events", []byte("1"))
	if err := bus.Publish(ctx, "events", []byte("2")); err != nil {
		t.Fatalf("publish to full subscriber should not fail: %v", err)
	}
	if bus.Dropped() != 1 {
		t.Errorf("expected 1 dropped, got %d", bus.Dropped())
	}
}

func TestMemoryBus_Unsubscribe(t *testing.T) {
	bus := NewMemoryBus(DefaultConfig())
	defer bus.Close()

	sub, _ := bus.Subscribe("events")
	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("Unsubscribe error: %v", err)
	}
	if err := sub.Unsubscribe(); err != nil {
		t.Errorf("second Unsubscribe should be a no-op: %v", err)
	}

	if _, ok := <-sub.Messages(); ok {
		t.Error("channel should be closed")
	}
	bus.Publish(context.Background(), "events", []byte("after"))
}

func TestMemoryBus_Close(t *testing.T) {
	bus := NewMemoryBus(DefaultConfig())
	sub, _ := bus.Subscribe("events")

	bus.Close()

	if _, ok := <-sub.Messages(); ok {
		t.Error("channel should be closed after bus Close")
	}
	if err := bus.Publish(context.Background(), "events", nil); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if _, err := bus.Subscribe("events"); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	sub.Unsubscribe()
}

func TestMemoryBus_ConcurrentPublishUnsubscribe(t *testing.T) {
	bus := NewMemoryBus(Config{BufferSize: 4})
	defer bus.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		sub, _ := bus.Subscribe("events")
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				bus.Publish(context.Background(), "events", []byte("x"))
			}
		}()
		go func() {
			defer wg.Done()
			sub.Unsubscribe()
		}()
	}
	wg.Wait()
}

func TestNop(t *testing.T) {
	var b MessageBus = Nop{}

	if err := b.Publish(context.Background(), "todokit.account.onboarded", []byte("{}")); err != nil {
		t.Errorf("Publish error: %v", err)
	}
	if err := b.Publish(context.Background(), "", nil); err != ErrInvalidSubject {
		t.Errorf("expected ErrInvalidSubject, got %v", err)
	}

	sub, err := b.Subscribe("todokit.>")
	if err != nil {
		t.Fatal(err)
	}
	sub.Unsubscribe()
	if _, ok := <-sub.Messages(); ok {
		t.Error("channel should be closed")
	}
}

func TestSubject(t *testing.T) {
	if got := Subject("todokit", "heartbeat", "i-1"); got != "todokit.heartbeat.i-1" {
		t.Errorf("Subject = %q", got)
	}
	if err := ValidateSubject(Subject("todokit", "task", "appended")); err != nil {
		t.Errorf("joined subject rejected: %v", err)
	}
}
