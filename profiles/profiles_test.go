package profiles

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/vinayprograms/todokit/errors"
	"github.com/vinayprograms/todokit/state"
)

var ada = User{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Age: 36}

func TestStore_CreateGet(t *testing.T) {
	s := NewStore(state.NewMemoryStore())
	ctx := context.Background()

	if err := s.Create(ctx, "ada", ada); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := s.Get(ctx, "ada")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != ada {
		t.Errorf("expected %+v, got %+v", ada, got)
	}
}

func TestStore_CreateDuplicate(t *testing.T) {
	s := NewStore(state.NewMemoryStore())
	ctx := context.Background()

	s.Create(ctx, "ada", ada)
	other := User{FirstName: "Other"}

	err := s.Create(ctx, "ada", other)
	if !stderrors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if !errors.Is(err, errors.ErrCodeAlreadyExists) {
		t.Errorf("expected ALREADY_EXISTS code, got %s", errors.Code(err))
	}

	got, _ := s.Get(ctx, "ada")
	if got != ada {
		t.Errorf("duplicate create overwrote the profile: %+v", got)
	}
}

func TestStore_GetNotFound(t *testing.T) {
	s := NewStore(state.NewMemoryStore())

	_, err := s.Get(context.Background(), "nobody")
	if !stderrors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND code, got %s", errors.Code(err))
	}
}

func TestStore_InitializeAdminOverwrites(t *testing.T) {
	s := NewStore(state.NewMemoryStore())
	ctx := context.Background()

	s.InitializeAdmin(ctx, "admin", User{FirstName: "Old"})
	if err := s.InitializeAdmin(ctx, "admin", User{FirstName: "New"}); err != nil {
		t.Fatalf("InitializeAdmin failed: %v", err)
	}

	got, _ := s.Get(ctx, "admin")
	if got.FirstName != "New" {
		t.Errorf("expected admin profile to be replaced, got %+v", got)
	}
}

func TestStore_Exists(t *testing.T) {
	s := NewStore(state.NewMemoryStore())
	ctx := context.Background()

	ok, err := s.Exists(ctx, "ada")
	if err != nil || ok {
		t.Errorf("Exists before create = %v, %v", ok, err)
	}
	s.Create(ctx, "ada", ada)
	ok, err = s.Exists(ctx, "ada")
	if err != nil || !ok {
		t.Errorf("Exists after create = %v, %v", ok, err)
	}
}

func TestStore_ClosedBackend(t *testing.T) {
	mem := state.NewMemoryStore()
	s := NewStore(mem)
	mem.Close()

	_, err := s.Get(context.Background(), "ada")
	if !errors.Is(err, errors.ErrCodeUnavailable) {
		t.Errorf("expected UNAVAILABLE, got %v", err)
	}
}

func TestStore_CorruptRecord(t *testing.T) {
	mem := state.NewMemoryStore()
	mem.Put(context.Background(), Key("ada"), []byte("{not json"))

	_, err := NewStore(mem).Get(context.Background(), "ada")
	if !errors.Is(err, errors.ErrCodeCorruption) {
		t.Errorf("expected CORRUPTION, got %v", err)
	}
}

func TestUser_JSONFieldNames(t *testing.T) {
	e, err := Entry("ada", ada)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"first_name":"Ada","last_name":"Lovelace","email":"ada@example.com","age":36}`
	if string(e.Value) != want {
		t.Errorf("got %s, want %s", e.Value, want)
	}
	if e.Key != Key("ada") {
		t.Errorf("entry key %q, want %q", e.Key, Key("ada"))
	}
}
