package tasks

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/vinayprograms/todokit/errors"
	"github.com/vinayprograms/todokit/identity"
	"github.com/vinayprograms/todokit/state"
)

// DefaultMaxAttempts bounds the compare-and-swap loop in Append.
const DefaultMaxAttempts = 16

// Store reads and appends task lists in a state store.
type Store struct {
	store       state.StateStore
	maxAttempts int
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithMaxAttempts sets how many compare-and-swap rounds Append tries.
func WithMaxAttempts(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// NewStore returns a task store over s.
func NewStore(s state.StateStore, opts ...StoreOption) *Store {
	ts := &Store{
		store:       s,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(ts)
	}
	return ts
}

// Get returns account's list in insertion order, or an error wrapping
// ErrNotFound.
func (s *Store) Get(ctx context.Context, account identity.AccountID) ([]Task, error) {
	list, _, err := s.load(ctx, account)
	return list, err
}

// Create stores list for account if it has none yet.
func (s *Store) Create(ctx context.Context, account identity.AccountID, list []Task) error {
	e, err := Entry(account, list)
	if err != nil {
		return err
	}
	if _, err := s.store.Create(ctx, e.Key, e.Value); err != nil {
		if stderrors.Is(err, state.ErrKeyExists) {
			return errors.AlreadyExists("task list already exists",
				errors.WithAccount(string(account)), errors.WithCause(ErrExists))
		}
		return storeError(err, "create task list", account)
	}
	return nil
}

// Append adds task to the end of account's list and returns the new length.
func (s *Store) Append(ctx context.Context, account identity.AccountID, task Task) (int, error) {
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		list, revision, err := s.load(ctx, account)
		if err != nil {
			return 0, err
		}

		list = append(list, task)
		data, err := json.Marshal(list)
		if err != nil {
			return 0, errors.Wrap(err, "encode task list", errors.WithAccount(string(account)))
		}

		_, err = s.store.Update(ctx, Key(account), data, revision)
		switch {
		case err == nil:
			return len(list), nil
		case stderrors.Is(err, state.ErrRevisionMismatch):
			if ctx.Err() != nil {
				return 0, errors.Wrap(ctx.Err(), "append task", errors.WithAccount(string(account)))
			}
			continue
		case stderrors.Is(err, state.ErrNotFound):
			return 0, notFound(account)
		default:
			return 0, storeError(err, "write task list", account)
		}
	}

	return 0, errors.Conflict("task list kept changing during append",
		errors.WithAccount(string(account)), errors.WithCause(ErrConflict))
}

func (s *Store) load(ctx context.Context, account identity.AccountID) ([]Task, uint64, error) {
	kv, err := s.store.GetKeyValue(ctx, Key(account))
	if err != nil {
		if stderrors.Is(err, state.ErrNotFound) {
			return nil, 0, notFound(account)
		}
		return nil, 0, storeError(err, "read task list", account)
	}

	var list []Task
	if err := json.Unmarshal(kv.Value, &list); err != nil {
		return nil, 0, errors.WrapWithCode(err, errors.ErrCodeCorruption, "decode task list",
			errors.WithAccount(string(account)))
	}
	if list == nil {
		list = []Task{}
	}
	return list, kv.Revision, nil
}

// Entry returns the raw record for account's list, for use in a batch.
func Entry(account identity.AccountID, list []Task) (state.Entry, error) {
	if list == nil {
		list = []Task{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return state.Entry{}, errors.Wrap(err, "encode task list", errors.WithAccount(string(account)))
	}
	return state.Entry{Key: Key(account), Value: data}, nil
}

func notFound(account identity.AccountID) error {
	return errors.NotFound("task list not found",
		errors.WithAccount(string(account)), errors.WithCause(ErrNotFound))
}

func storeError(err error, msg string, account identity.AccountID) error {
	if stderrors.Is(err, state.ErrClosed) {
		return errors.WrapWithCode(err, errors.ErrCodeUnavailable, msg, errors.WithAccount(string(account)))
	}
	return errors.Wrap(err, msg, errors.WithAccount(string(account)))
}
