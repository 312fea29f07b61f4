package ratelimit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vinayprograms/todokit/identity"
	"github.com/vinayprograms/todokit/logging"
	"github.com/vinayprograms/todokit/transport"
)

func echoHandler(calls *int) transport.Handler {
	return transport.HandlerFunc(func(ctx context.Context, method string, params json.RawMessage) (interface{}, error) {
		*calls++
		return method, nil
	})
}

func TestHandler_LimitsPerCaller(t *testing.T) {
	limiter, _ := newTestLimiter(t, 2, time.Minute)

	var buf bytes.Buffer
	logger := logging.New()
	logger.SetOutput(&buf)

	calls := 0
	h := Handler(echoHandler(&calls), limiter, logger)
	alice := identity.WithCaller(context.Background(), "alice")
	bob := identity.WithCaller(context.Background(), "bob")

	for i := 0; i < 2; i++ {
		got, err := h.Handle(alice, "get_name", nil)
		if err != nil || got != "get_name" {
			t.Fatalf("call %d: got %v, %v", i+1, got, err)
		}
	}

	_, err := h.Handle(alice, "add_task", nil)
	var rpcErr *transport.Error
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected *transport.Error, got %v", err)
	}
	if rpcErr.Code != RateLimited || rpcErr.Message != "Rate limited" || rpcErr.Data != "alice" {
		t.Errorf("error = %+v", rpcErr)
	}
	if calls != 2 {
		t.Errorf("inner handler ran %d times, want 2", calls)
	}

	if _, err := h.Handle(bob, "get_name", nil); err != nil {
		t.Errorf("bob refused: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "rate_limited") || !strings.Contains(out, "account=alice") || !strings.Contains(out, "method=add_task") {
		t.Errorf("log missing refusal: %q", out)
	}
}

func TestHandler_AnonymousCallersShareABucket(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, time.Minute)

	calls := 0
	h := Handler(echoHandler(&calls), limiter, nil)

	if _, err := h.Handle(context.Background(), "get_name", nil); err != nil {
		t.Fatalf("first call: %v", err)
	}
	_, err := h.Handle(context.Background(), "get_name", nil)
	if err == nil {
		t.Fatal("second anonymous call admitted")
	}
	if rpcErr := transport.AsError(err); rpcErr.Code != RateLimited || rpcErr.Data != anonymous {
		t.Errorf("second anonymous call = %v", err)
	}
}

func TestHandler_AnonymousBucketIsNotAnAccount(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, time.Minute)

	calls := 0
	h := Handler(echoHandler(&calls), limiter, nil)

	if _, err := h.Handle(context.Background(), "get_name", nil); err != nil {
		t.Fatalf("anonymous call: %v", err)
	}
	for _, account := range []identity.AccountID{"-", "anonymous"} {
		ctx := identity.WithCaller(context.Background(), account)
		if _, err := h.Handle(ctx, "get_name", nil); err != nil {
			t.Errorf("%q refused after an anonymous call: %v", account, err)
		}
	}
	if calls != 3 {
		t.Errorf("expected 3 calls to reach the handler, got %d", calls)
	}
}

func TestHandler_OverStdio(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, time.Minute)

	calls := 0
	h := Handler(echoHandler(&calls), limiter, nil)

	in := strings.NewReader(
		`{"jsonrpc":"2.0","id":1,"method":"get_name"}` + "\n" +
			`{"jsonrpc":"2.0","id":2,"method":"get_name"}` + "\n")
	var out bytes.Buffer
	tr := transport.NewStdioTransport(in, &out, transport.DefaultConfig())

	ctx := identity.WithCaller(context.Background(), "alice")
	if err := transport.Serve(ctx, tr, h); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	want := []string{
		`{"jsonrpc":"2.0","id":1,"result":"get_name"}`,
		`{"jsonrpc":"2.0","id":2,"error":{"code":-32029,"message":"Rate limited","data":"alice"}}`,
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines: %q", len(lines), out.String())
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %s, want %s", i, lines[i], want[i])
		}
	}
}
