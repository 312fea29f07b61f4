// Package errors provides the structured error taxonomy used by todokit's
// storage backends and core stores.
//
// Every failure that crosses a package boundary is an *Error carrying a code
// and a category. Codes decide how the ledger reports the failure to a caller
// (NOT_FOUND becomes a NotFound envelope, ALREADY_EXISTS becomes Duplicate,
// everything else is an internal error); categories decide whether the
// operation may be retried.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeNotFound, "profile not found",
//	    errors.WithAccount(string(account)),
//	    errors.WithCause(profiles.ErrNotFound))
//
//	if errors.Is(err, errors.ErrCodeNotFound) {
//	    // ...
//	}
//
// Because *Error unwraps to its cause, the standard library errors.Is keeps
// working against package sentinels such as state.ErrNotFound.
package errors
