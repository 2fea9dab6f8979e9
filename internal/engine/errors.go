package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition indicates a status change the state machine does not allow.
	ErrInvalidTransition = errors.New("engine: invalid status transition")

	// ErrExhausted indicates the run reached its tick budget or finished; Reset first.
	ErrExhausted = errors.New("engine: run exhausted, reset to start again")

	// ErrClosed indicates the scheduler was closed.
	ErrClosed = errors.New("engine: scheduler closed")

	// ErrInvalidConfig indicates a loop configuration that cannot run.
	ErrInvalidConfig = errors.New("engine: invalid config")

	// ErrUnknownParam indicates a parameter name the model does not expose.
	ErrUnknownParam = errors.New("engine: unknown parameter")
)

// TransitionError records the rejected status change.
type TransitionError struct {
	From   Status
	Action string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("engine: cannot %s while %s", e.Action, e.From)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
