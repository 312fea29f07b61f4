package shutdown

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Phase orders teardown steps. Lower phases run first.
type Phase int

// Phases used by todokit. Client-facing listeners stop first so no new
// operation starts, then the event publisher, then the state store that
// in-flight operations were still writing to.
const (
	PhaseTransport Phase = 10
	PhaseEvents    Phase = 20
	PhaseStore     Phase = 30
)

func (p Phase) String() string {
	switch p {
	case PhaseTransport:
		return "transport"
	case PhaseEvents:
		return "events"
	case PhaseStore:
		return "store"
	}
	return fmt.Sprintf("phase-%d", int(p))
}

var (
	// ErrTimeout means the deadline passed before every phase ran.
	ErrTimeout = errors.New("shutdown timeout exceeded")

	// ErrStepFailed means at least one step returned an error.
	ErrStepFailed = errors.New("one or more shutdown steps failed")
)

// Func is one teardown step. ctx carries the overall deadline.
type Func func(ctx context.Context) error

// Closer adapts an io.Closer, which cannot observe the deadline.
func Closer(c io.Closer) Func {
	return func(context.Context) error {
		return c.Close()
	}
}

// Step is the outcome of one registered Func.
type Step struct {
	Name     string
	Phase    Phase
	Duration time.Duration
	Err      error
}

// Report summarises a completed shutdown.
type Report struct {
	Duration time.Duration
	Steps    []Step

	// Err is nil, ErrStepFailed or ErrTimeout.
	Err error
}

// Failed reports whether shutdown was not clean.
func (r *Report) Failed() bool {
	return r.Err != nil
}

// FailedSteps returns the names of steps that returned an error.
func (r *Report) FailedSteps() []string {
	var failed []string
	for _, s := range r.Steps {
		if s.Err != nil {
			failed = append(failed, s.Name)
		}
	}
	return failed
}
