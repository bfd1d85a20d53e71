package engine

import (
	"errors"
	"fmt"
)

// ErrPoisoned is returned by Snapshot once an engine has been aborted because
// a hook failed while the engine's state lock was held.
var ErrPoisoned = errors.New("engine state poisoned")

// RuntimeError represents a fatal condition detected while an engine ran.
//
// Discards and disconnections are never RuntimeErrors: they are outcomes.
// A RuntimeError means the engine stopped with possibly inconsistent state and
// must not be resumed.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Engine names the engine that failed.
	Engine string

	// Message is a human-readable description.
	Message string

	// State and Event locate the failing step.
	State string
	Event string

	// Cause is the recovered panic value or wrapped error.
	Cause error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodePoisoned indicates a hook panicked inside ProcessEvent.
	ErrCodePoisoned RuntimeErrorCode = "ENGINE_POISONED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.State != "" {
		return fmt.Sprintf("%s: %s (engine=%s, state=%s, event=%s): %v", e.Code, e.Message, e.Engine, e.State, e.Event, e.Cause)
	}
	return fmt.Sprintf("%s: %s (engine=%s): %v", e.Code, e.Message, e.Engine, e.Cause)
}

// Unwrap returns the cause.
func (e *RuntimeError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is(err, ErrPoisoned) match a poisoning RuntimeError.
func (e *RuntimeError) Is(target error) bool {
	return target == ErrPoisoned && e.Code == ErrCodePoisoned
}

// IsFatal returns true if err is (or wraps) a RuntimeError.
// Uses errors.As to handle wrapped errors.
func IsFatal(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re)
}

func newPoisonedError(engine, state, event string, recovered any) *RuntimeError {
	cause, ok := recovered.(error)
	if !ok {
		cause = fmt.Errorf("%v", recovered)
	}
	return &RuntimeError{
		Code:    ErrCodePoisoned,
		Engine:  engine,
		Message: "hook failed while holding engine state",
		State:   state,
		Event:   event,
		Cause:   cause,
	}
}
