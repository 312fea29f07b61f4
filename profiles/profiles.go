// Package profiles stores one User profile per account.
//
// Profiles are insert-only: once an account has a profile it is never
// replaced or removed, except for the administrator profile written at
// bring-up.
package profiles

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/vinayprograms/todokit/errors"
	"github.com/vinayprograms/todokit/identity"
	"github.com/vinayprograms/todokit/state"
)

// Key prefix for profile records.
const keyPrefix = "profiles"

var (
	// ErrNotFound indicates the account has no profile.
	ErrNotFound = stderrors.New("profile not found")

	// ErrExists indicates the account already has a profile.
	ErrExists = stderrors.New("profile already exists")
)

// User is a registered account's profile.
type User struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Age       uint32 `json:"age"`
}

// Key returns the state key holding account's profile.
func Key(account identity.AccountID) string {
	return state.Key(keyPrefix, state.EncodeToken(string(account)))
}

// Store reads and writes profiles in a state store.
type Store struct {
	store state.StateStore
}

// NewStore returns a profile store over s.
func NewStore(s state.StateStore) *Store {
	return &Store{store: s}
}

// InitializeAdmin writes the administrator profile unconditionally.
func (s *Store) InitializeAdmin(ctx context.Context, account identity.AccountID, user User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return errors.Wrap(err, "encode admin profile", errors.WithAccount(string(account)))
	}
	if _, err := s.store.Put(ctx, Key(account), data); err != nil {
		return storeError(err, "write admin profile", account)
	}
	return nil
}

// Create stores user for account if it has no profile yet.
// It returns an error wrapping ErrExists otherwise and leaves the stored
// profile untouched.
func (s *Store) Create(ctx context.Context, account identity.AccountID, user User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return errors.Wrap(err, "encode profile", errors.WithAccount(string(account)))
	}
	if _, err := s.store.Create(ctx, Key(account), data); err != nil {
		if stderrors.Is(err, state.ErrKeyExists) {
			return errors.AlreadyExists("profile already exists",
				errors.WithAccount(string(account)), errors.WithCause(ErrExists))
		}
		return storeError(err, "create profile", account)
	}
	return nil
}

// Get returns account's profile or an error wrapping ErrNotFound.
func (s *Store) Get(ctx context.Context, account identity.AccountID) (User, error) {
	data, err := s.store.Get(ctx, Key(account))
	if err != nil {
		if stderrors.Is(err, state.ErrNotFound) {
			return User{}, errors.NotFound("profile not found",
				errors.WithAccount(string(account)), errors.WithCause(ErrNotFound))
		}
		return User{}, storeError(err, "read profile", account)
	}

	var user User
	if err := json.Unmarshal(data, &user); err != nil {
		return User{}, errors.WrapWithCode(err, errors.ErrCodeCorruption, "decode profile",
			errors.WithAccount(string(account)))
	}
	return user, nil
}

// Exists reports whether account has a profile.
func (s *Store) Exists(ctx context.Context, account identity.AccountID) (bool, error) {
	_, err := s.store.GetKeyValue(ctx, Key(account))
	if err == nil {
		return true, nil
	}
	if stderrors.Is(err, state.ErrNotFound) {
		return false, nil
	}
	return false, storeError(err, "check profile", account)
}

// Entry returns the raw record for account's profile, for use in a batch.
func Entry(account identity.AccountID, user User) (state.Entry, error) {
	data, err := json.Marshal(user)
	if err != nil {
		return state.Entry{}, errors.Wrap(err, "encode profile", errors.WithAccount(string(account)))
	}
	return state.Entry{Key: Key(account), Value: data}, nil
}

func storeError(err error, msg string, account identity.AccountID) error {
	if stderrors.Is(err, state.ErrClosed) {
		return errors.WrapWithCode(err, errors.ErrCodeUnavailable, msg, errors.WithAccount(string(account)))
	}
	return errors.Wrap(err, msg, errors.WithAccount(string(account)))
}
