package heartbeat

import (
	"context"
	"testing"
	"time"

	"github.com/vinayprograms/todokit/bus"
)

// --- Unit Tests ---

func TestHeartbeat_Unmarshal(t *testing.T) {
	data := []byte(`{"instance":"todo-1","timestamp":"2024-01-01T00:00:00Z","status":"serving","sessions":3,"metadata":{"transport":"websocket"}}`)

	hb, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if hb.Instance != "todo-1" || hb.Status != StatusServing || hb.Sessions != 3 {
		t.Errorf("heartbeat = %+v", hb)
	}
	if hb.Metadata["transport"] != "websocket" {
		t.Errorf("Metadata[transport] = %q", hb.Metadata["transport"])
	}
}

func TestUnmarshal_Invalid(t *testing.T) {
	if _, err := Unmarshal([]byte("not json")); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestSubject(t *testing.T) {
	if got := Subject("todokit", "todo-1"); got != "todokit.heartbeat.todo-1" {
		t.Errorf("Subject = %q", got)
	}
}

func TestSenderConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     SenderConfig
		wantErr bool
	}{
		{"valid", SenderConfig{Bus: bus.Nop{}, Instance: "todo-1"}, false},
		{"missing bus", SenderConfig{Instance: "todo-1"}, true},
		{"missing instance", SenderConfig{Bus: bus.Nop{}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewBusSender_Defaults(t *testing.T) {
	sender, err := NewBusSender(SenderConfig{Bus: bus.Nop{}, Instance: "todo-1"})
	if err != nil {
		t.Fatalf("NewBusSender error: %v", err)
	}
	if sender.interval != 15*time.Second {
		t.Errorf("interval = %v", sender.interval)
	}
	if sender.subject != "todokit.heartbeat.todo-1" {
		t.Errorf("subject = %q", sender.subject)
	}
	if sender.Instance() != "todo-1" {
		t.Errorf("Instance = %q", sender.Instance())
	}
}

// --- Integration Tests ---

func newSender(t *testing.T, sessions func() int) (*BusSender, bus.Subscription) {
	t.Helper()
	msgBus := bus.NewMemoryBus(bus.DefaultConfig())
	t.Cleanup(func() { msgBus.Close() })

	sub, err := msgBus.Subscribe("acme.heartbeat.*")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	sender, err := NewBusSender(SenderConfig{
		Bus:           msgBus,
		Instance:      "todo-1",
		SubjectPrefix: "acme",
		Interval:      50 * time.Millisecond,
		Sessions:      sessions,
	})
	if err != nil {
		t.Fatalf("NewBusSender error: %v", err)
	}
	return sender, sub
}

func next(t *testing.T, sub bus.Subscription) (*bus.Message, *Heartbeat) {
	t.Helper()
	select {
	case msg := <-sub.Messages():
		hb, err := Unmarshal(msg.Data)
		if err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		return msg, hb
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for heartbeat")
	}
	return nil, nil
}

func TestBusSender_StartStop(t *testing.T) {
	sender, sub := newSender(t, func() int { return 4 })
	sender.SetMetadata("transport", "websocket")

	if err := sender.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	msg, hb := next(t, sub)
	if msg.Subject != "acme.heartbeat.todo-1" {
		t.Errorf("subject = %q", msg.Subject)
	}
	if hb.Instance != "todo-1" || hb.Status != StatusServing || hb.Sessions != 4 {
		t.Errorf("heartbeat = %+v", hb)
	}
	if hb.Metadata["transport"] != "websocket" {
		t.Errorf("metadata = %v", hb.Metadata)
	}

	if err := sender.Stop(); err != nil {
		t.Fatalf("Stop error: %v", err)
	}

	// The last heartbeat announces the stop.
	var last *Heartbeat
	for {
		select {
		case msg := <-sub.Messages():
			last, _ = Unmarshal(msg.Data)
			continue
		case <-time.After(100 * time.Millisecond):
		}
		break
	}
	if last == nil || last.Status != StatusStopped {
		t.Errorf("last heartbeat = %+v, want status %q", last, StatusStopped)
	}
}

func TestBusSender_SetStatusPublishesImmediately(t *testing.T) {
	msgBus := bus.NewMemoryBus(bus.DefaultConfig())
	defer msgBus.Close()
	sub, _ := msgBus.Subscribe("todokit.heartbeat.>")
	defer sub.Unsubscribe()

	sender, _ := NewBusSender(SenderConfig{
		Bus:      msgBus,
		Instance: "todo-1",
		Interval: time.Hour,
	})
	sender.Start(context.Background())
	defer sender.Stop()

	if _, hb := next(t, sub); hb.Status != StatusServing {
		t.Errorf("first status = %q", hb.Status)
	}

	sender.SetStatus(StatusDraining)
	if _, hb := next(t, sub); hb.Status != StatusDraining {
		t.Errorf("status = %q, want %q", hb.Status, StatusDraining)
	}
}

func TestBusSender_Periodic(t *testing.T) {
	calls := 0
	sender, sub := newSender(t, func() int { calls++; return calls })
	sender.Start(context.Background())
	defer sender.Stop()

	for i := 1; i <= 3; i++ {
		if _, hb := next(t, sub); hb.Sessions != i {
			t.Errorf("heartbeat %d sessions = %d", i, hb.Sessions)
		}
	}
}

func TestBusSender_DoubleStart(t *testing.T) {
	sender, _ := newSender(t, nil)

	sender.Start(context.Background())
	defer sender.Stop()

	if err := sender.Start(context.Background()); err != ErrAlreadyStarted {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestBusSender_StopBeforeStart(t *testing.T) {
	sender, _ := newSender(t, nil)

	if err := sender.Stop(); err != ErrNotStarted {
		t.Errorf("expected ErrNotStarted, got %v", err)
	}
}

func TestBusSender_ContextCancel(t *testing.T) {
	sender, sub := newSender(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	sender.Start(ctx)
	next(t, sub)
	cancel()

	// Once the loop has noticed the cancel the sender can be started again.
	deadline := time.Now().Add(time.Second)
	err := sender.Start(context.Background())
	for err == ErrAlreadyStarted && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
		err = sender.Start(context.Background())
	}
	if err != nil {
		t.Fatalf("restart after cancel = %v", err)
	}
	if err := sender.Stop(); err != nil {
		t.Errorf("Stop after restart = %v", err)
	}
}
