package errors

import (
	"fmt"
	"maps"
	"time"
)

// Error is a coded failure raised by the todo stores. The code drives both
// the status returned to the caller and whether a retry makes sense.
type Error struct {
	code     ErrorCode
	category ErrorCategory
	msg      string
	cause    error
	account  string
	meta     map[string]string
	at       time.Time
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return e.msg + ": " + e.cause.Error()
}

func (e *Error) Unwrap() error           { return e.cause }
func (e *Error) Code() ErrorCode         { return e.code }
func (e *Error) Category() ErrorCategory { return e.category }
func (e *Error) Retryable() bool         { return e.category.IsRetryable() }

// Message is the error text without the cause.
func (e *Error) Message() string { return e.msg }

// Account is the caller the failure concerns, or "".
func (e *Error) Account() string { return e.account }

// Timestamp is when the error was created.
func (e *Error) Timestamp() time.Time { return e.at }

// Metadata returns a copy of the attached key/value pairs.
func (e *Error) Metadata() map[string]string {
	out := make(map[string]string, len(e.meta))
	maps.Copy(out, e.meta)
	return out
}

// Option adjusts an Error at construction.
type Option func(*Error)

// WithCategory overrides the category implied by the code.
func WithCategory(cat ErrorCategory) Option {
	return func(e *Error) { e.category = cat }
}

// WithMetadata attaches one key/value pair.
func WithMetadata(key, value string) Option {
	return func(e *Error) {
		if e.meta == nil {
			e.meta = map[string]string{}
		}
		e.meta[key] = value
	}
}

// WithAccount names the caller the failure concerns.
func WithAccount(account string) Option {
	return func(e *Error) { e.account = account }
}

func WithCause(cause error) Option {
	return func(e *Error) { e.cause = cause }
}

// New builds an Error whose category defaults from code.
func New(code ErrorCode, message string, opts ...Option) *Error {
	e := &Error{code: code, category: code.DefaultCategory(), msg: message, at: time.Now()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// FromCode uses the code's description as the message.
func FromCode(code ErrorCode, opts ...Option) *Error {
	return New(code, code.Description(), opts...)
}

func NotFound(message string, opts ...Option) *Error {
	return New(ErrCodeNotFound, message, opts...)
}

func AlreadyExists(message string, opts ...Option) *Error {
	return New(ErrCodeAlreadyExists, message, opts...)
}

func Conflict(message string, opts ...Option) *Error {
	return New(ErrCodeConflict, message, opts...)
}

func InvalidInput(message string, opts ...Option) *Error {
	return New(ErrCodeInvalidInput, message, opts...)
}

func Internal(message string, opts ...Option) *Error {
	return New(ErrCodeInternal, message, opts...)
}
