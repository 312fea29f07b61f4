package identity

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestContextResolver(t *testing.T) {
	var r ContextResolver

	if _, err := r.Caller(context.Background()); err != ErrNoCaller {
		t.Errorf("expected ErrNoCaller, got %v", err)
	}

	ctx := WithCaller(context.Background(), "alice")
	id, err := r.Caller(ctx)
	if err != nil {
		t.Fatalf("Caller failed: %v", err)
	}
	if id != "alice" {
		t.Errorf("expected alice, got %s", id)
	}
}

func TestFixedAndFuncResolvers(t *testing.T) {
	id, _ := Fixed("admin").Caller(context.Background())
	if id != "admin" {
		t.Errorf("Fixed resolved %s", id)
	}

	boom := errors.New("directory down")
	_, err := ResolverFunc(func(context.Context) (AccountID, error) { return "", boom }).Caller(context.Background())
	if err != boom {
		t.Errorf("expected resolver error, got %v", err)
	}
}

func TestToken_RoundTrip(t *testing.T) {
	cfg := TokenConfig{Secret: []byte("s3cret"), Issuer: "todokit", TTL: time.Minute}
	issuer, err := NewIssuer(cfg)
	if err != nil {
		t.Fatal(err)
	}
	verifier, err := NewVerifier(cfg)
	if err != nil {
		t.Fatal(err)
	}

	token, err := issuer.Issue("5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	id, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if id != "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY" {
		t.Errorf("unexpected subject %s", id)
	}
}

func TestToken_Rejections(t *testing.T) {
	cfg := TokenConfig{Secret: []byte("s3cret"), Issuer: "todokit", TTL: time.Minute}
	issuer, _ := NewIssuer(cfg)
	verifier, _ := NewVerifier(cfg)

	good, _ := issuer.Issue("alice")

	otherKey, _ := NewIssuer(TokenConfig{Secret: []byte("other"), Issuer: "todokit"})
	forged, _ := otherKey.Issue("alice")

	otherIssuer, _ := NewIssuer(TokenConfig{Secret: []byte("s3cret"), Issuer: "someone-else"})
	wrongIss, _ := otherIssuer.Issue("alice")

	expiredIssuer, _ := NewIssuer(cfg)
	expiredIssuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, _ := expiredIssuer.Issue("alice")

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", ErrMissingToken},
		{"garbage", "not-a-jwt", ErrInvalidToken},
		{"wrong key", forged, ErrInvalidToken},
		{"wrong issuer", wrongIss, ErrInvalidToken},
		{"expired", expired, ErrInvalidToken},
		{"tampered", good + "x", ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(tt.token)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestNewIssuer_RequiresSecret(t *testing.T) {
	if _, err := NewIssuer(TokenConfig{}); err == nil {
		t.Error("expected error for empty secret")
	}
	if _, err := NewVerifier(TokenConfig{}); err == nil {
		t.Error("expected error for empty secret")
	}
	i, _ := NewIssuer(TokenConfig{Secret: []byte("k")})
	if _, err := i.Issue(""); err == nil {
		t.Error("expected error for empty account")
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{"Bearer abc.def", "abc.def", false},
		{"bearer abc", "abc", false},
		{"Bearer ", "", true},
		{"Basic dXNlcg==", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := BearerToken(tt.header)
		if (err != nil) != tt.wantErr {
			t.Errorf("BearerToken(%q) error = %v", tt.header, err)
		}
		if got != tt.want {
			t.Errorf("BearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}
