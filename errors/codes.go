package errors

// ErrorCategory classifies errors by their nature and retry semantics.
type ErrorCategory string

const (
	// CategoryTransient indicates temporary failures where retry may succeed.
	// Examples: backend unreachable, lock contention, revision races.
	CategoryTransient ErrorCategory = "transient"

	// CategoryPermanent indicates failures where retry will not help.
	// Examples: record not found, record already exists, invalid input.
	CategoryPermanent ErrorCategory = "permanent"

	// CategoryInternal indicates unexpected errors or violated invariants.
	CategoryInternal ErrorCategory = "internal"
)

// String returns the string representation of the category.
func (c ErrorCategory) String() string {
	return string(c)
}

// IsRetryable returns true if errors in this category may succeed on retry.
func (c ErrorCategory) IsRetryable() bool {
	return c == CategoryTransient
}

// ErrorCode identifies specific error types within categories.
type ErrorCode string

const (
	// Transient errors
	ErrCodeTimeout      ErrorCode = "TIMEOUT"       // Operation timed out
	ErrCodeUnavailable  ErrorCode = "UNAVAILABLE"   // Backend temporarily unavailable
	ErrCodeResourceBusy ErrorCode = "RESOURCE_BUSY" // Account lock held elsewhere
	ErrCodeConflict     ErrorCode = "CONFLICT"      // Concurrent modification detected

	// Permanent errors
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"      // Record does not exist
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS" // Record already exists
	ErrCodeInvalidInput  ErrorCode = "INVALID_INPUT"  // Malformed or missing input
	ErrCodeUnauthorized  ErrorCode = "UNAUTHORIZED"   // Caller could not be identified
	ErrCodeCanceled      ErrorCode = "CANCELED"       // Operation was canceled

	// Internal errors
	ErrCodeInternal   ErrorCode = "INTERNAL"   // Unexpected internal error
	ErrCodeCorruption ErrorCode = "CORRUPTION" // Stored record could not be decoded
	ErrCodeAssertion  ErrorCode = "ASSERTION"  // Invariant violation
)

// String returns the string representation of the error code.
func (c ErrorCode) String() string {
	return string(c)
}

// DefaultCategory returns the default category for an error code.
func (c ErrorCode) DefaultCategory() ErrorCategory {
	switch c {
	case ErrCodeTimeout, ErrCodeUnavailable, ErrCodeResourceBusy, ErrCodeConflict:
		return CategoryTransient
	case ErrCodeNotFound, ErrCodeAlreadyExists, ErrCodeInvalidInput,
		ErrCodeUnauthorized, ErrCodeCanceled:
		return CategoryPermanent
	default:
		return CategoryInternal
	}
}

var codeDescriptions = map[ErrorCode]string{
	ErrCodeTimeout:       "operation timed out",
	ErrCodeUnavailable:   "backend temporarily unavailable",
	ErrCodeResourceBusy:  "resource is busy",
	ErrCodeConflict:      "concurrent modification",
	ErrCodeNotFound:      "record not found",
	ErrCodeAlreadyExists: "record already exists",
	ErrCodeInvalidInput:  "invalid input provided",
	ErrCodeUnauthorized:  "caller not identified",
	ErrCodeCanceled:      "operation canceled",
	ErrCodeInternal:      "internal error",
	ErrCodeCorruption:    "stored record is corrupt",
	ErrCodeAssertion:     "invariant violated",
}

// Description returns a human-readable description for the error code.
func (c ErrorCode) Description() string {
	if desc, ok := codeDescriptions[c]; ok {
		return desc
	}
	return "unknown error"
}
