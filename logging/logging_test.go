package logging

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)
	logger.SetLevel(LevelInfo)

	// Debug should be filtered
	logger.Debug("debug message")
	if buf.Len() > 0 {
		t.Error("debug message should be filtered at INFO level")
	}

	// Info should pass
	logger.Info("info message")
	if buf.Len() == 0 {
		t.Error("info message should be logged")
	}

	output := buf.String()
	if !strings.HasPrefix(output, "INFO ") {
		t.Errorf("log should start with INFO level, got: %s", output)
	}
	if !strings.Contains(output, "info message") {
		t.Error("log should contain the message")
	}
}

func TestLogger_WithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	logger.WithComponent("ledger").Info("test message")

	output := buf.String()
	if !strings.Contains(output, "[ledger] test message") {
		t.Errorf("expected component 'ledger' in log, got: %s", output)
	}
}

func TestLogger_WithTraceID(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	logger.WithTraceID("req-123").Info("test message")

	output := buf.String()
	if !strings.Contains(output, "trace=req-123") {
		t.Errorf("expected trace id in log, got: %s", output)
	}
}

func TestLogger_FieldsSorted(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	logger.Info("event", map[string]interface{}{
		"zeta":  1,
		"alpha": "a",
		"mid":   true,
	})

	output := buf.String()
	if !strings.Contains(output, "event alpha=a mid=true zeta=1") {
		t.Errorf("expected sorted fields, got: %s", output)
	}
}

func TestLogger_ConcurrentDerived(t *testing.T) {
	var buf bytes.Buffer
	root := New()
	root.SetOutput(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			root.WithComponent("worker").Info("line")
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 10 {
		t.Errorf("expected 10 lines, got %d", len(lines))
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{" error ", LevelError, false},
		{"verbose", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestLogger_Operation(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	logger.Operation("get_my_tasks", "alice", 200, false)
	if buf.Len() > 0 {
		t.Error("read operations should log at DEBUG")
	}

	logger.Operation("add_task", "alice", 201, true)
	output := buf.String()
	if !strings.Contains(output, "account=alice op=add_task status=201") {
		t.Errorf("unexpected operation line: %s", output)
	}
}

func TestLogger_StoreError(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	logger.StoreError("append", "tasks.YWxpY2U", errors.New("connection refused"))

	output := buf.String()
	if !strings.HasPrefix(output, "ERROR") {
		t.Errorf("store errors should log at ERROR, got: %s", output)
	}
	if !strings.Contains(output, "error=connection refused") {
		t.Errorf("expected error field, got: %s", output)
	}
}

func TestLogger_DomainEvents(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	logger.AccountOnboarded("bob", 1)
	logger.TaskAppended("bob", 2)
	logger.EventDropped("todokit.task.appended", errors.New("nats: timeout"))

	output := buf.String()
	for _, want := range []string{
		"account_onboarded account=bob tasks=1",
		"task_appended account=bob length=2",
		"WARN",
		"subject=todokit.task.appended",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
}

func TestNop(t *testing.T) {
	// Should not panic and should not write anywhere visible.
	Nop().Error("discarded")
}
