package tasks

import (
	stderrors "errors"

	"github.com/vinayprograms/todokit/identity"
	"github.com/vinayprograms/todokit/state"
)

// Key prefix for task list records.
const keyPrefix = "tasks"

// Common errors.
var (
	// ErrNotFound indicates the account has no task list.
	ErrNotFound = stderrors.New("task list not found")

	// ErrExists indicates the account already has a task list.
	ErrExists = stderrors.New("task list already exists")

	// ErrConflict indicates an append kept losing to concurrent writers.
	ErrConflict = stderrors.New("task list modified concurrently")
)

// Task is one entry in an account's list.
type Task struct {
	Name string `json:"task_name"`
	Date string `json:"task_date"`
	Done bool   `json:"is_done"`
}

// NewTask returns a task that is not done.
func NewTask(name, date string) Task {
	return Task{Name: name, Date: date}
}

// DefaultTask is the entry every new list starts with.
func DefaultTask() Task {
	return NewTask("Init", "Init")
}

// Key returns the state key holding account's task list.
func Key(account identity.AccountID) string {
	return state.Key(keyPrefix, state.EncodeToken(string(account)))
}
