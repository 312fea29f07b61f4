// Package status defines the closed set of outcomes an operation can report
// and the envelope those outcomes are rendered into at the API boundary.
package status

import (
	"fmt"

	"github.com/vinayprograms/todokit/errors"
)

// Status is one of the fixed operation outcomes.
type Status int

const (
	Success Status = iota
	Created
	Updated
	NullArgument
	NotFound
	Duplicate
	InternalError
)

var statusInfo = map[Status]struct {
	code    int
	message string
}{
	Success:       {200, "Success"},
	Created:       {201, "Created"},
	Updated:       {204, "Updated"},
	NullArgument:  {400, "Null argument"},
	NotFound:      {404, "Not found"},
	Duplicate:     {409, "Duplicate"},
	InternalError: {500, "Internal error"},
}

// Code returns the numeric code carried in the envelope.
func (s Status) Code() int {
	if info, ok := statusInfo[s]; ok {
		return info.code
	}
	return statusInfo[InternalError].code
}

// Message returns the canonical message for the status.
func (s Status) Message() string {
	if info, ok := statusInfo[s]; ok {
		return info.message
	}
	return statusInfo[InternalError].message
}

func (s Status) String() string {
	return fmt.Sprintf("%d %s", s.Code(), s.Message())
}

// FromCode returns the status with the given numeric code.
func FromCode(code int) (Status, bool) {
	for s, info := range statusInfo {
		if info.code == code {
			return s, true
		}
	}
	return InternalError, false
}

// FromError maps an error to the status reported for it.
// Errors without a recognised code are internal errors.
func FromError(err error) Status {
	if err == nil {
		return Success
	}
	switch errors.Code(err) {
	case errors.ErrCodeNotFound:
		return NotFound
	case errors.ErrCodeAlreadyExists:
		return Duplicate
	case errors.ErrCodeInvalidInput:
		return NullArgument
	}
	return InternalError
}
