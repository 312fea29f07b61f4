package status

// Result is the outcome of one operation: a status and, for some statuses,
// a value. Failures also keep the error that produced them for logging; the
// error is never rendered into the envelope.
type Result[T any] struct {
	status Status
	value  *T
	err    error
}

// Ok builds a Success result carrying v.
func Ok[T any](v T) Result[T] {
	return Result[T]{status: Success, value: &v}
}

// Done builds a Created result with no value.
func Done[T any]() Result[T] {
	return Result[T]{status: Created}
}

// Exists builds a Duplicate result.
func Exists[T any]() Result[T] {
	return Result[T]{status: Duplicate}
}

// Missing builds a NotFound result with no value.
func Missing[T any]() Result[T] {
	return Result[T]{status: NotFound}
}

// MissingWith builds a NotFound result that still carries v.
func MissingWith[T any](v T) Result[T] {
	return Result[T]{status: NotFound, value: &v}
}

// Internal builds an InternalError result.
func Internal[T any](err error) Result[T] {
	return Result[T]{status: InternalError, err: err}
}

// BadArgument builds a NullArgument result.
func BadArgument[T any](err error) Result[T] {
	return Result[T]{status: NullArgument, err: err}
}

// Fail builds the result FromError chooses for err.
func Fail[T any](err error) Result[T] {
	return Result[T]{status: FromError(err), err: err}
}

// Status returns the result's status.
func (r Result[T]) Status() Status {
	return r.status
}

// Value returns the carried value, if any.
func (r Result[T]) Value() (T, bool) {
	if r.value == nil {
		var zero T
		return zero, false
	}
	return *r.value, true
}

// Err returns the error behind a failed result, or nil.
func (r Result[T]) Err() error {
	return r.err
}

// Envelope renders the result for the API boundary.
func (r Result[T]) Envelope() Envelope[T] {
	return Envelope[T]{
		Code:    r.status.Code(),
		Message: r.status.Message(),
		Data:    r.value,
	}
}

// Envelope is the uniform response wrapper returned by every fallible
// operation. Data is omitted when the result carries no value.
type Envelope[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    *T     `json:"data,omitempty"`
}
