package state

import (
	"context"
	"testing"
	"time"
)

func TestNewNATSStore_RequiresConn(t *testing.T) {
	if _, err := NewNATSStore(context.Background(), NATSStoreConfig{}); err == nil {
		t.Error("expected error for nil connection")
	}
}

func TestDefaultNATSStoreConfig(t *testing.T) {
	cfg := DefaultNATSStoreConfig()

	if cfg.Bucket != "todokit" {
		t.Errorf("expected bucket todokit, got %s", cfg.Bucket)
	}
	if cfg.History != 1 {
		t.Errorf("expected history 1, got %d", cfg.History)
	}
	if cfg.MaxValueSize != 1024*1024 {
		t.Errorf("expected 1MB max value, got %d", cfg.MaxValueSize)
	}
	if cfg.OpTimeout != 5*time.Second {
		t.Errorf("expected 5s op timeout, got %v", cfg.OpTimeout)
	}
}

func TestExpiryEncoding(t *testing.T) {
	now := time.Now()
	got := decodeExpiry(encodeExpiry(now))
	if !got.Equal(time.Unix(0, now.UnixNano())) {
		t.Errorf("expiry round trip: got %v, want %v", got, now)
	}

	if !decodeExpiry([]byte("garbage")).IsZero() {
		t.Error("unreadable expiry should decode as zero time")
	}
}

func TestMigrateURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"postgres://u:p@localhost:5432/todo?sslmode=disable", "pgx5://u:p@localhost:5432/todo?sslmode=disable"},
		{"postgresql://localhost/todo", "pgx5://localhost/todo"},
		{"pgx5://localhost/todo", "pgx5://localhost/todo"},
	}

	for _, tt := range tests {
		if got := migrateURL(tt.in); got != tt.want {
			t.Errorf("migrateURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewPostgresStore_RequiresDSN(t *testing.T) {
	if _, err := NewPostgresStore(context.Background(), PostgresStoreConfig{}); err == nil {
		t.Error("expected error without DSN or pool")
	}
}
