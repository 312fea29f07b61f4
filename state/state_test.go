package state

import (
	"strings"
	"testing"
	"time"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		key     string
		wantErr bool
	}{
		{"profiles.YWxpY2U", false},
		{"tasks.a-b_c", false},
		{"_lock.ledger.account.x", false},
		{"", true},
		{"has space", true},
		{".leading", true},
		{"trailing.", true},
		{"double..dot", true},
		{"wild.*", true},
		{"wild.>", true},
		{strings.Repeat("k", 1025), true},
	}

	for _, tt := range tests {
		err := ValidateKey(tt.key)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
		}
	}
}

func TestValidateTTL(t *testing.T) {
	if err := ValidateTTL(time.Second); err != nil {
		t.Errorf("positive TTL should be valid: %v", err)
	}
	if err := ValidateTTL(0); err != ErrInvalidTTL {
		t.Errorf("zero TTL: got %v, want ErrInvalidTTL", err)
	}
	if err := ValidateTTL(-time.Second); err != ErrInvalidTTL {
		t.Errorf("negative TTL: got %v, want ErrInvalidTTL", err)
	}
}

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		pattern string
		key     string
		want    bool
	}{
		{"*", "anything", true},
		{"profiles.*", "profiles.abc", true},
		{"profiles.*", "tasks.abc", false},
		{"profiles.abc", "profiles.abc", true},
		{"profiles.abc", "profiles.abcd", false},
	}

	for _, tt := range tests {
		if got := MatchPattern(tt.pattern, tt.key); got != tt.want {
			t.Errorf("MatchPattern(%q, %q) = %v, want %v", tt.pattern, tt.key, got, tt.want)
		}
	}
}

func TestEncodeToken(t *testing.T) {
	ids := []string{
		"alice",
		"5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY",
		"user with spaces.and.dots*>",
		"ünïcödé",
		"",
	}

	for _, id := range ids {
		token := EncodeToken(id)
		if err := ValidateKey(Key("profiles", token)); err != nil {
			t.Errorf("EncodeToken(%q) = %q is not a valid key token: %v", id, token, err)
		}
		got, err := DecodeToken(token)
		if err != nil {
			t.Fatalf("DecodeToken(%q): %v", token, err)
		}
		if got != id {
			t.Errorf("round trip of %q gave %q", id, got)
		}
	}

	if _, err := DecodeToken("!!!"); err != ErrInvalidKey {
		t.Errorf("DecodeToken of garbage: got %v, want ErrInvalidKey", err)
	}
}

func TestKey(t *testing.T) {
	if got := Key("tasks", "abc"); got != "tasks.abc" {
		t.Errorf("Key() = %q", got)
	}
}
